package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	g, err := Inspect(New(M(
		"__class", "CarRent",
		"__construct()", M(
			"person", New(M("__class", "Person", "__construct()", []any{"John", "j@example.com"})),
			"car", New("Car"),
		),
		"car", New(M(
			"__class", "Car",
			"engine", New("Engine"),
		)),
		"rentCar()", []any{New("Car"), 10},
		"items", []any{New("Ignored")},
	)))
	require.NoError(t, err)

	classes := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		classes[i] = n.Class
	}
	assert.Equal(t, []string{"CarRent", "Person", "Car", "Car", "Engine", "Car"}, classes)

	vias := make([]string, len(g.Edges))
	for i, e := range g.Edges {
		vias[i] = e.Via
	}
	assert.ElementsMatch(t, []string{
		"__construct().person",
		"__construct().car",
		"car",
		"engine",
		"rentCar()[0]",
	}, vias)

	dot := g.DOT()
	assert.Contains(t, dot, "digraph factory")
	assert.Contains(t, dot, `[label="CarRent"]`)
	assert.Contains(t, dot, `[label="__construct().person"]`)
	assert.Contains(t, g.Mermaid(), "graph TD")
}

func TestInspectMissingClass(t *testing.T) {
	_, err := Inspect(M("__class", "Car", "owner", New(M("name", "x"))))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "owner")
}
