package container

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/chenyanchen/factory"
	"github.com/chenyanchen/factory/internal/reflectx"
)

// call binds args to fn's parameters, calls it and splits the results into the
// first non-error value and the error.
func call(ctx context.Context, fn reflect.Value, names []string, args factory.Args, target string) (any, error) {
	in, err := bind(ctx, fn.Type(), names, args)
	if err != nil {
		return nil, BindError{Target: target, Reason: err.Error()}
	}
	return split(fn.Call(in))
}

// arity counts the parameters that take arguments, a leading context excluded.
func arity(fn reflect.Type) int {
	n := fn.NumIn()
	if n > 0 && reflectx.IsContext(fn.In(0)) {
		n--
	}
	return n
}

// bind lays out call arguments. Positional arguments fill parameters in order,
// surplus ones go to a variadic tail. Named arguments bind by names when known,
// otherwise in mapping order to the parameters left after the positional ones.
func bind(ctx context.Context, fn reflect.Type, names []string, args factory.Args) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, fn.NumIn())
	start := 0
	if fn.NumIn() > 0 && reflectx.IsContext(fn.In(0)) {
		in = append(in, reflect.ValueOf(ctx))
		start = 1
	}

	n := fn.NumIn() - start
	fixed := n
	if fn.IsVariadic() {
		fixed--
	}
	param := func(i int) reflect.Type { return fn.In(start + i) }
	name := func(i int) string {
		if i < len(names) {
			return names[i]
		}
		return fmt.Sprintf("#%d", i)
	}

	values := make([]reflect.Value, fixed)
	var extras []any

	for i, v := range args.Positional {
		if i >= fixed {
			if !fn.IsVariadic() {
				return nil, fmt.Errorf("too many arguments: got %d, want %d", len(args.Positional), fixed)
			}
			extras = append(extras, v)
			continue
		}
		converted, err := reflectx.Convert(v, param(i))
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name(i), err)
		}
		values[i] = converted
	}

	if len(args.Named) > 0 {
		if len(names) == 0 {
			if len(args.Positional)+len(args.Named) != fixed {
				return nil, fmt.Errorf("cannot bind %d named arguments without parameter names", len(args.Named))
			}
			for j, e := range args.Named {
				i := len(args.Positional) + j
				converted, err := reflectx.Convert(e.Value, param(i))
				if err != nil {
					return nil, fmt.Errorf("argument %s: %w", e.Key, err)
				}
				values[i] = converted
			}
		} else {
			for _, e := range args.Named {
				i := slices.Index(names, e.Key)
				switch {
				case i < 0:
					return nil, fmt.Errorf("unknown parameter %q", e.Key)
				case i >= fixed:
					list, ok := e.Value.([]any)
					if !ok {
						return nil, fmt.Errorf("variadic parameter %q needs a list, got %T", e.Key, e.Value)
					}
					extras = append(extras, list...)
					continue
				case values[i].IsValid():
					return nil, fmt.Errorf("parameter %q given twice", e.Key)
				}
				converted, err := reflectx.Convert(e.Value, param(i))
				if err != nil {
					return nil, fmt.Errorf("argument %s: %w", e.Key, err)
				}
				values[i] = converted
			}
		}
	}

	for i, v := range values {
		if !v.IsValid() {
			return nil, fmt.Errorf("missing argument %s", name(i))
		}
	}
	in = append(in, values...)

	if len(extras) > 0 {
		elem := fn.In(fn.NumIn() - 1).Elem()
		for i, v := range extras {
			converted, err := reflectx.Convert(v, elem)
			if err != nil {
				return nil, fmt.Errorf("variadic argument %d: %w", i, err)
			}
			in = append(in, converted)
		}
	}
	return in, nil
}

func split(out []reflect.Value) (any, error) {
	var (
		result any
		found  bool
	)
	for _, v := range out {
		if reflectx.IsError(v.Type()) {
			if !v.IsNil() {
				return nil, v.Interface().(error)
			}
			continue
		}
		if !found {
			result, found = v.Interface(), true
		}
	}
	return result, nil
}
