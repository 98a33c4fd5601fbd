package factory

import (
	"context"
	"fmt"
	"sort"
)

// Reserved keys of an object description.
const (
	KeyClass     = "__class"
	KeyConstruct = "__construct()"
	KeyFinal     = "()"

	callMarker = "()"
)

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   string
	Value any
}

// Map is an ordered mapping. Object descriptions and configuration mappings are
// Maps so that directives run in the order they were written.
type Map []Entry

// M builds a Map from alternating keys and values. It panics on an odd number of
// arguments or a non-string key; intended for literals in code and tests.
func M(kv ...any) Map {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("factory.M: odd number of arguments: %d", len(kv)))
	}
	m := make(Map, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("factory.M: key at %d is %T, want string", i, kv[i]))
		}
		m = m.Set(key, kv[i+1])
	}
	return m
}

func (m Map) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// Set replaces the value of key, keeping its position, or appends it.
func (m Map) Set(key string, value any) Map {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = value
			return m
		}
	}
	return append(m, Entry{Key: key, Value: value})
}

// Pull returns the value of key and a copy of m without it. m is not modified.
func (m Map) Pull(key string) (any, bool, Map) {
	rest := make(Map, 0, len(m))
	var (
		value any
		found bool
	)
	for _, e := range m {
		if e.Key == key {
			value, found = e.Value, true
			continue
		}
		rest = append(rest, e)
	}
	return value, found, rest
}

// Pairs exposes the entries to value conversion.
func (m Map) Pairs() ([]string, []any) {
	values := make([]any, len(m))
	for i, e := range m {
		values[i] = e.Value
	}
	return m.Keys(), values
}

// asMap accepts a Map or a plain map[string]any. Plain maps have no insertion
// order, so their keys are taken sorted.
func asMap(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Map, len(keys))
		for i, k := range keys {
			out[i] = Entry{Key: k, Value: m[k]}
		}
		return out, true
	}
	return nil, false
}

// Args are the arguments of a constructor or method call, bound by position or by
// parameter name.
type Args struct {
	Positional []any
	Named      Map
}

func (a Args) Len() int {
	return len(a.Positional) + len(a.Named)
}

// ArgsOf interprets a description value as call arguments: a list is positional, a
// mapping is named, nil is empty and any other value is a single positional argument.
func ArgsOf(v any) Args {
	if v == nil {
		return Args{}
	}
	if m, ok := asMap(v); ok {
		return Args{Named: m}
	}
	if list, ok := v.([]any); ok {
		return Args{Positional: list}
	}
	return Args{Positional: []any{v}}
}

// Container instantiates types and invokes methods on behalf of the Builder.
// Errors returned by a Container are passed through the Builder unchanged.
type Container interface {
	// Instantiate creates an instance of class, binding args to its constructor.
	Instantiate(ctx context.Context, class string, args Args) (any, error)
	// Invoke calls method on target and returns its first non-error result.
	Invoke(ctx context.Context, target any, method string, args Args) (any, error)
	// Call calls fn and returns its first non-error result.
	Call(ctx context.Context, fn any, args Args) (any, error)
}
