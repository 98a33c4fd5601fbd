// Package reflectx converts loosely typed description values into the Go types
// expected by constructors, methods and fields.
package reflectx

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Pairs is implemented by ordered mappings (factory.Map) so they can be
// converted without importing the root package.
type Pairs interface {
	Pairs() (keys []string, values []any)
}

// ExportName upper-cases the first rune of name so that description keys
// written in lowerCamelCase address exported Go members.
func ExportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// IsError reports whether t is the error interface.
func IsError(t reflect.Type) bool {
	return t == errorType
}

// Convert turns v into a value assignable to t.
func Convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	if p, ok := v.(Pairs); ok {
		keys, values := p.Pairs()
		return convertPairs(keys, values, t)
	}

	switch {
	case isNumber(rv.Kind()) && isNumber(t.Kind()):
		return convertNumber(rv, t)
	case rv.Kind() == reflect.String && t.Kind() == reflect.String:
		return rv.Convert(t), nil
	case rv.Kind() == reflect.Bool && t.Kind() == reflect.Bool:
		return rv.Convert(t), nil
	case rv.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		out := reflect.MakeSlice(t, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := Convert(rv.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
		}
		return convertPairs(keys, values, t)
	case rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind():
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), t)
}

func convertPairs(keys []string, values []any, t reflect.Type) (reflect.Value, error) {
	switch {
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		out := reflect.MakeMapWithSize(t, len(keys))
		for i, k := range keys {
			elem, err := Convert(values[i], t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
		}
		return out, nil
	case t.Kind() == reflect.Struct:
		out := reflect.New(t).Elem()
		for i, k := range keys {
			index, ok := FieldIndex(t, k)
			if !ok {
				return reflect.Value{}, fmt.Errorf("%s has no field %q", t, k)
			}
			field, err := FieldByIndex(out, index)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			elem, err := Convert(values[i], field.Type())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			field.Set(elem)
		}
		return out, nil
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		elem, err := convertPairs(keys, values, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use mapping as %s", t)
}

// FieldIndex finds the exported field of struct type t addressed by name:
// a field tagged `factory:"name"` wins, then the field whose name is
// ExportName(name).
func FieldIndex(t reflect.Type, name string) ([]int, bool) {
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("factory"), ",")
		if tag != "" && tag == name {
			return f.Index, true
		}
	}
	f, ok := t.FieldByName(ExportName(name))
	if !ok || !f.IsExported() {
		return nil, false
	}
	return f.Index, true
}

// FieldByIndex is reflect.Value.FieldByIndex for an addressable struct v that
// allocates nil embedded struct pointers on the way to the field. It fails when such
// a pointer cannot be set, as for an unexported embedded type.
func FieldByIndex(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("nil embedded pointer %s cannot be allocated", v.Type())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

// convertNumber converts between numeric kinds, rejecting values the target type
// cannot hold exactly: overflow, negative to unsigned, fractional to integer.
func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	fail := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("cannot use %v (%s) as %s", rv.Interface(), rv.Type(), t)
	}

	switch {
	case isInt(rv.Kind()):
		i := rv.Int()
		switch {
		case isInt(t.Kind()):
			if out.OverflowInt(i) {
				return fail()
			}
		case isUint(t.Kind()):
			if i < 0 || out.OverflowUint(uint64(i)) {
				return fail()
			}
		}
	case isUint(rv.Kind()):
		u := rv.Uint()
		switch {
		case isInt(t.Kind()):
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return fail()
			}
		case isUint(t.Kind()):
			if out.OverflowUint(u) {
				return fail()
			}
		}
	default:
		f := rv.Float()
		switch {
		case isInt(t.Kind()):
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
				return fail()
			}
		case isUint(t.Kind()):
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return fail()
			}
		default:
			if !math.IsInf(f, 0) && !math.IsNaN(f) && out.OverflowFloat(f) {
				return fail()
			}
		}
	}
	out.Set(rv.Convert(t))
	return out, nil
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// IsContext reports whether t is context.Context.
func IsContext(t reflect.Type) bool {
	return t == contextType
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
