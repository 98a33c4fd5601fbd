package factory

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/chenyanchen/factory/internal/reflectx"
)

// DirectiveKind tells how one configuration key is applied to an object.
type DirectiveKind int

const (
	ConstructorArgs DirectiveKind = iota
	MethodCall
	Setter
	Field
	DynamicField
	FinalCallback
)

func (k DirectiveKind) String() string {
	switch k {
	case ConstructorArgs:
		return "constructor"
	case MethodCall:
		return "method"
	case Setter:
		return "setter"
	case Field:
		return "field"
	case DynamicField:
		return "dynamic-field"
	case FinalCallback:
		return "callback"
	}
	return fmt.Sprintf("DirectiveKind(%d)", int(k))
}

// FieldSetter is implemented by types accepting assignment of arbitrary fields.
// Keys that match no setter and no struct field are passed to SetField.
type FieldSetter interface {
	SetField(name string, value any) error
}

var fieldSetterType = reflect.TypeOf((*FieldSetter)(nil)).Elem()

// Directive is one classified configuration entry.
type Directive struct {
	Kind DirectiveKind
	// Key is the configuration key as written.
	Key string
	// Name is the Go member addressed: method name for MethodCall and Setter, field
	// name for Field, the key itself for DynamicField.
	Name  string
	Value any
	// Index is the struct field index of a Field directive.
	Index []int
	// Chains is set when the addressed method or callback declares the object's own
	// type as its first result, meaning its result may replace the object.
	Chains bool
}

// Plan classifies every key of config against type t and returns the directives
// in execution order. The final callback, if any, is moved last.
func Plan(t reflect.Type, config any) ([]Directive, error) {
	if config == nil {
		return nil, nil
	}
	m, ok := asMap(config)
	if !ok {
		return nil, InvalidDescriptionError{Reason: fmt.Sprintf("configuration must be a mapping, got %T", config)}
	}

	plan := make([]Directive, 0, len(m))
	var final *Directive
	for _, e := range m {
		d, err := classify(t, e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		if d.Kind == ConstructorArgs {
			return nil, InvalidDescriptionError{Reason: fmt.Sprintf("%q is only valid in an object description", KeyConstruct)}
		}
		if d.Kind == FinalCallback {
			final = &d
			continue
		}
		plan = append(plan, d)
	}
	if final != nil {
		plan = append(plan, *final)
	}
	return plan, nil
}

func classify(t reflect.Type, key string, value any) (Directive, error) {
	d := Directive{Key: key, Value: value}

	switch {
	case key == KeyFinal:
		d.Kind = FinalCallback
		if fn := reflect.ValueOf(value); fn.Kind() == reflect.Func {
			d.Chains = returnsSelf(fn.Type(), t)
		}
		return d, nil
	case key == KeyConstruct:
		d.Kind = ConstructorArgs
		return d, nil
	case strings.HasSuffix(key, callMarker):
		d.Kind = MethodCall
		d.Name = reflectx.ExportName(strings.TrimSuffix(key, callMarker))
		if method, ok := t.MethodByName(d.Name); ok {
			d.Chains = returnsSelf(method.Type, t)
		}
		return d, nil
	}

	setter := "Set" + reflectx.ExportName(key)
	if method, ok := t.MethodByName(setter); ok && arity(method.Type, 1) == 1 {
		d.Kind = Setter
		d.Name = setter
		d.Chains = returnsSelf(method.Type, t)
		return d, nil
	}

	structType := t
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if index, ok := reflectx.FieldIndex(structType, key); ok {
		d.Kind = Field
		d.Name = structType.FieldByIndex(index).Name
		d.Index = index
		return d, nil
	}

	if t.Implements(fieldSetterType) {
		d.Kind = DynamicField
		d.Name = key
		return d, nil
	}
	return d, UnknownDirectiveError{Type: t.String(), Key: key}
}

// arity counts the parameters of fn that take description values, skipping the
// receiver (first skip parameters) and a leading context.Context.
func arity(fn reflect.Type, skip int) int {
	n := fn.NumIn() - skip
	if n > 0 && reflectx.IsContext(fn.In(skip)) {
		n--
	}
	return n
}

func returnsSelf(fn reflect.Type, self reflect.Type) bool {
	for i := 0; i < fn.NumOut(); i++ {
		out := fn.Out(i)
		if reflectx.IsError(out) {
			continue
		}
		return out == self
	}
	return false
}
