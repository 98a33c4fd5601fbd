package factory

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/chenyanchen/factory/internal/reflectx"
)

// Builder creates and configures objects from descriptions.
// It holds no mutable state and is safe for concurrent use when its Container is.
type Builder struct {
	container Container
	logger    *slog.Logger
	maxDepth  int
}

type Option func(*Builder)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMaxDepth limits how deep nested Descriptions may go. Zero means unlimited.
func WithMaxDepth(n int) Option {
	return func(b *Builder) {
		b.maxDepth = n
	}
}

func NewBuilder(container Container, opts ...Option) (*Builder, error) {
	if container == nil {
		return nil, fmt.Errorf("new builder: container is nil")
	}
	b := &Builder{
		container: container,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Container returns the container the Builder was created with.
func (b *Builder) Container() Container {
	return b.container
}

type containerContextKey struct{}

// WithContainer overrides the Builder's container for every build and apply made
// with the returned context, nested descriptions included.
func WithContainer(ctx context.Context, c Container) context.Context {
	return context.WithValue(ctx, containerContextKey{}, c)
}

func (b *Builder) containerFor(ctx context.Context) Container {
	if c, ok := ctx.Value(containerContextKey{}).(Container); ok && c != nil {
		return c
	}
	return b.container
}

// Build creates an object from a description: a type identifier, a Map with the
// reserved keys __class and __construct(), or a Description wrapping either.
// Description values among the constructor arguments are built first.
func (b *Builder) Build(ctx context.Context, description any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d, ok := description.(Description); ok {
		description = d.value
	}

	var (
		class     string
		construct any
		config    Map
	)
	switch x := description.(type) {
	case string:
		class = x
	default:
		m, ok := asMap(description)
		if !ok {
			return nil, InvalidDescriptionError{Reason: fmt.Sprintf("unsupported description type %T", description)}
		}
		rawClass, found, rest := m.Pull(KeyClass)
		if !found {
			return nil, MissingClassError{}
		}
		if class, ok = rawClass.(string); !ok {
			return nil, InvalidDescriptionError{Reason: fmt.Sprintf("%s must be a string, got %T", KeyClass, rawClass)}
		}
		construct, _, config = rest.Pull(KeyConstruct)
	}

	ctx, err := b.enter(ctx, class)
	if err != nil {
		return nil, err
	}
	b.logger.DebugContext(ctx, "build object", "class", class)

	args, err := b.resolveArgs(ctx, ArgsOf(construct))
	if err != nil {
		return nil, err
	}
	object, err := b.containerFor(ctx).Instantiate(ctx, class, args)
	if err != nil {
		return nil, err
	}
	return b.Apply(ctx, object, config)
}

// BuildAs is a typed wrapper around Build.
func BuildAs[T any](ctx context.Context, b *Builder, description any) (T, error) {
	var zero T
	v, err := b.Build(ctx, description)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Actual:   fmt.Sprintf("%T", v),
		}
	}
	return typed, nil
}

// Apply configures object with an ordered mapping of directives and returns the
// configured object, which differs from object when a method returned a new
// instance of the same type.
//
// Keys are applied in order: "name()" calls method Name, "name" calls SetName when
// it exists or else assigns field Name, and "()" is called last with the object.
// Directives applied before a failing one stay applied.
func (b *Builder) Apply(ctx context.Context, object any, config any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if object == nil {
		return nil, InvalidDescriptionError{Reason: "cannot configure a nil object"}
	}
	plan, err := Plan(reflect.TypeOf(object), config)
	if err != nil {
		return nil, err
	}
	for _, d := range plan {
		b.logger.DebugContext(ctx, "apply directive", "type", fmt.Sprintf("%T", object), "key", d.Key, "kind", d.Kind)
		object, err = b.apply(ctx, object, d)
		if err != nil {
			return nil, err
		}
	}
	return object, nil
}

func (b *Builder) apply(ctx context.Context, object any, d Directive) (any, error) {
	c := b.containerFor(ctx)

	switch d.Kind {
	case MethodCall:
		args, err := b.resolveArgs(ctx, ArgsOf(d.Value))
		if err != nil {
			return nil, err
		}
		result, err := c.Invoke(ctx, object, d.Name, args)
		if err != nil {
			return nil, err
		}
		return chooseObject(object, result, d.Chains), nil

	case Setter:
		value, err := b.resolveValue(ctx, d.Value)
		if err != nil {
			return nil, err
		}
		result, err := c.Invoke(ctx, object, d.Name, Args{Positional: []any{value}})
		if err != nil {
			return nil, err
		}
		return chooseObject(object, result, d.Chains), nil

	case Field:
		value, err := b.resolveValue(ctx, d.Value)
		if err != nil {
			return nil, err
		}
		return assignField(object, d, value)

	case DynamicField:
		value, err := b.resolveValue(ctx, d.Value)
		if err != nil {
			return nil, err
		}
		if err := object.(FieldSetter).SetField(d.Name, value); err != nil {
			return nil, err
		}
		return object, nil

	case FinalCallback:
		args := []any{object, b}
		if fn := reflect.TypeOf(d.Value); fn != nil && fn.Kind() == reflect.Func {
			args = args[:min(arity(fn, 0), len(args))]
		} else {
			args = args[:1]
		}
		result, err := c.Call(ctx, d.Value, Args{Positional: args})
		if err != nil {
			return nil, err
		}
		return chooseObject(object, result, d.Chains), nil
	}
	return nil, fmt.Errorf("apply %q: unexpected directive kind %s", d.Key, d.Kind)
}

// Resolve returns reference itself when it is already an object, or builds it when
// it is a type identifier, a mapping or a Description. A non-nil expected type is
// checked against the result: interfaces must be implemented, other types must match.
func (b *Builder) Resolve(ctx context.Context, reference any, expected reflect.Type) (any, error) {
	if reference == nil {
		return nil, InvalidDescriptionError{Reason: "reference is nil"}
	}
	object := reference
	if buildable(reference) {
		var err error
		if object, err = b.Build(ctx, reference); err != nil {
			return nil, err
		}
	}
	if expected != nil && !satisfies(object, expected) {
		return nil, TypeMismatchError{
			Expected: expected.String(),
			Actual:   fmt.Sprintf("%T", object),
		}
	}
	return object, nil
}

// ResolveAs is a typed wrapper around Resolve.
func ResolveAs[T any](ctx context.Context, b *Builder, reference any) (T, error) {
	var zero T
	v, err := b.Resolve(ctx, reference, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// resolveArgs builds the Description values found at the top level of args.
// Values nested inside lists or mappings are passed through untouched.
func (b *Builder) resolveArgs(ctx context.Context, args Args) (Args, error) {
	out := Args{}
	if args.Positional != nil {
		out.Positional = make([]any, len(args.Positional))
		for i, v := range args.Positional {
			resolved, err := b.resolveValue(ctx, v)
			if err != nil {
				return Args{}, err
			}
			out.Positional[i] = resolved
		}
	}
	if args.Named != nil {
		out.Named = make(Map, len(args.Named))
		for i, e := range args.Named {
			resolved, err := b.resolveValue(ctx, e.Value)
			if err != nil {
				return Args{}, err
			}
			out.Named[i] = Entry{Key: e.Key, Value: resolved}
		}
	}
	return out, nil
}

func (b *Builder) resolveValue(ctx context.Context, v any) (any, error) {
	if d, ok := v.(Description); ok {
		return b.Build(ctx, d)
	}
	return v, nil
}

type depthContextKey struct{}

func (b *Builder) enter(ctx context.Context, class string) (context.Context, error) {
	depth, _ := ctx.Value(depthContextKey{}).(int)
	depth++
	if b.maxDepth > 0 && depth > b.maxDepth {
		return nil, DepthExceededError{Class: class, Max: b.maxDepth}
	}
	return context.WithValue(ctx, depthContextKey{}, depth), nil
}

func assignField(object any, d Directive, value any) (any, error) {
	rv := reflect.ValueOf(object)
	var target reflect.Value
	switch {
	case rv.Kind() == reflect.Ptr:
		if rv.IsNil() {
			return nil, fmt.Errorf("assign %s: %T is nil", d.Name, object)
		}
		target = rv.Elem()
	default:
		// Values are not addressable; assign into a copy and track the copy.
		target = reflect.New(rv.Type()).Elem()
		target.Set(rv)
	}

	field, err := reflectx.FieldByIndex(target, d.Index)
	if err != nil {
		return nil, fmt.Errorf("assign %T.%s: %w", object, d.Name, err)
	}
	converted, err := reflectx.Convert(value, field.Type())
	if err != nil {
		return nil, fmt.Errorf("assign %T.%s: %w", object, d.Name, err)
	}
	field.Set(converted)

	if rv.Kind() == reflect.Ptr {
		return object, nil
	}
	return target.Interface(), nil
}

// chooseObject picks the object to track after a call: result replaces object only
// when the callee declares the object's type as its result and returned a
// different, non-nil instance.
func chooseObject(object, result any, chains bool) any {
	if !chains || result == nil {
		return object
	}
	t := reflect.TypeOf(object)
	if reflect.TypeOf(result) != t {
		return object
	}
	// Only reference kinds have an identity; a value result always replaces.
	rv, ov := reflect.ValueOf(result), reflect.ValueOf(object)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() || rv.Pointer() == ov.Pointer() {
			return object
		}
	case reflect.Slice:
		if rv.IsNil() || (rv.Pointer() == ov.Pointer() && rv.Len() == ov.Len()) {
			return object
		}
	}
	return result
}

func buildable(reference any) bool {
	switch reference.(type) {
	case string, Map, map[string]any, Description:
		return true
	}
	return false
}

func satisfies(object any, expected reflect.Type) bool {
	if object == nil {
		return false
	}
	t := reflect.TypeOf(object)
	if expected.Kind() == reflect.Interface {
		return t.Implements(expected)
	}
	return t == expected
}
