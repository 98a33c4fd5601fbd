package factory

import (
	"fmt"
	"strings"
)

type GraphNode struct {
	ID    string `json:"id"`
	Class string `json:"class"`
}

// GraphEdge means "From needs To built first"; Via is the key holding the nested
// Description, e.g. "__construct().engine" or "driver".
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Via  string `json:"via"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Inspect returns the tree of objects a Build of description would create. Only
// Descriptions at the positions the Builder resolves are followed: top-level
// constructor arguments and top-level directive arguments.
func Inspect(description any) (Graph, error) {
	var g Graph
	if _, err := g.walk(description, "root"); err != nil {
		return Graph{}, err
	}
	return g, nil
}

func (g *Graph) walk(description any, id string) (string, error) {
	if d, ok := description.(Description); ok {
		description = d.value
	}
	if class, ok := description.(string); ok {
		g.Nodes = append(g.Nodes, GraphNode{ID: id, Class: class})
		return id, nil
	}

	m, ok := asMap(description)
	if !ok {
		return "", InvalidDescriptionError{Reason: fmt.Sprintf("unsupported description type %T", description)}
	}
	rawClass, found, rest := m.Pull(KeyClass)
	if !found {
		return "", MissingClassError{}
	}
	class, ok := rawClass.(string)
	if !ok {
		return "", InvalidDescriptionError{Reason: fmt.Sprintf("%s must be a string, got %T", KeyClass, rawClass)}
	}
	g.Nodes = append(g.Nodes, GraphNode{ID: id, Class: class})

	for _, e := range rest {
		args := ArgsOf(e.Value)
		if e.Key != KeyConstruct && !strings.HasSuffix(e.Key, callMarker) {
			args = Args{Positional: []any{e.Value}}
		}
		for i, v := range args.Positional {
			via := e.Key
			if len(args.Positional) > 1 {
				via = fmt.Sprintf("%s[%d]", e.Key, i)
			}
			if err := g.child(id, via, v); err != nil {
				return "", err
			}
		}
		for _, named := range args.Named {
			if err := g.child(id, e.Key+"."+named.Key, named.Value); err != nil {
				return "", err
			}
		}
	}
	return id, nil
}

func (g *Graph) child(parent string, via string, v any) error {
	d, ok := v.(Description)
	if !ok {
		return nil
	}
	to, err := g.walk(d, parent+"/"+via)
	if err != nil {
		return fmt.Errorf("%s: %w", via, err)
	}
	g.Edges = append(g.Edges, GraphEdge{From: parent, To: to, Via: via})
	return nil
}

// DOT exports Graphviz DOT text.
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph factory {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.ID] = alias
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", alias, escapeDOT(n.Class)))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s -> %s [label=\"%s\"];\n", from, to, escapeDOT(e.Via)))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.ID] = alias
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, escapeMermaid(n.Class)))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("    %s -->|\"%s\"| %s\n", from, escapeMermaid(e.Via), to))
	}
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
