package container

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/chenyanchen/factory"
	"github.com/chenyanchen/factory/internal/reflectx"
)

// Definition describes how one class is constructed.
//
// New is the constructor, a func returning the object or (object, error). A leading
// context.Context parameter receives the build context.
// Params names the remaining parameters, in order, for named argument binding.
// Shared makes the class a singleton: built once, then the same instance is returned.
type Definition struct {
	New    any
	Params []string
	Shared bool
}

type compiledDefinition struct {
	ctor   reflect.Value
	params []string
	shared bool
}

type methodKey struct {
	typ    reflect.Type
	method string
}

// Registry maps class names to constructors and implements factory.Container.
type Registry struct {
	mu           sync.RWMutex
	defs         map[string]compiledDefinition
	methodParams map[methodKey][]string
	instances    map[string]any

	sf singleflight.Group
}

var _ factory.Container = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		defs:         make(map[string]compiledDefinition),
		methodParams: make(map[methodKey][]string),
		instances:    make(map[string]any),
	}
}

// Register registers the constructor of class.
func Register(r *Registry, class string, def Definition) error {
	if r == nil {
		return fmt.Errorf("register class: registry is nil")
	}
	if class == "" {
		return fmt.Errorf("register class: class is empty")
	}
	ctor := reflect.ValueOf(def.New)
	if ctor.Kind() != reflect.Func {
		return fmt.Errorf("register class %s: constructor is %T, want func", class, def.New)
	}
	if err := checkResults(ctor.Type()); err != nil {
		return fmt.Errorf("register class %s: %w", class, err)
	}
	if n := arity(ctor.Type()); len(def.Params) > n {
		return fmt.Errorf("register class %s: %d parameter names for %d parameters", class, len(def.Params), n)
	}
	return r.add(class, compiledDefinition{
		ctor:   ctor,
		params: append([]string(nil), def.Params...),
		shared: def.Shared,
	})
}

// MustRegister panics on registration error; intended for bootstrap code paths.
func MustRegister(r *Registry, class string, def Definition) {
	if err := Register(r, class, def); err != nil {
		panic(err)
	}
}

// RegisterType registers class as a zero-valued *T.
func RegisterType[T any](r *Registry, class string) error {
	return Register(r, class, Definition{
		New: func() *T { return new(T) },
	})
}

// Instance registers a prebuilt shared instance under class.
func Instance(r *Registry, class string, instance any) error {
	if r == nil {
		return fmt.Errorf("register instance: registry is nil")
	}
	if class == "" {
		return fmt.Errorf("register instance: class is empty")
	}
	if instance == nil {
		return fmt.Errorf("register instance %s: instance is nil", class)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[class]; exists {
		return DuplicateClassError{Class: class}
	}
	r.defs[class] = compiledDefinition{shared: true}
	r.instances[class] = instance
	return nil
}

// MethodParams names the parameters of method on type t so that it can be called
// with named arguments.
func (r *Registry) MethodParams(t reflect.Type, method string, params ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methodParams[methodKey{typ: t, method: method}] = append([]string(nil), params...)
}

// Has reports whether class is registered.
func (r *Registry) Has(class string) bool {
	_, ok := r.get(class)
	return ok
}

// Instantiate builds class with args. Shared classes are built once; concurrent
// first builds are deduplicated and later args are ignored.
func (r *Registry) Instantiate(ctx context.Context, class string, args factory.Args) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	def, ok := r.get(class)
	if !ok {
		return nil, ClassNotFoundError{Class: class}
	}
	if !def.shared {
		return call(ctx, def.ctor, def.params, args, class)
	}

	r.mu.RLock()
	cached, ok := r.instances[class]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := r.sf.Do(class, func() (any, error) {
		r.mu.RLock()
		cachedAgain, ok := r.instances[class]
		r.mu.RUnlock()
		if ok {
			return cachedAgain, nil
		}

		instance, err := call(ctx, def.ctor, def.params, args, class)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.instances[class] = instance
		r.mu.Unlock()
		return instance, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invoke calls the exported method of target.
func (r *Registry) Invoke(ctx context.Context, target any, method string, args factory.Args) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if target == nil {
		return nil, MethodNotFoundError{Type: "<nil>", Method: method}
	}
	m := reflect.ValueOf(target).MethodByName(method)
	if !m.IsValid() {
		return nil, MethodNotFoundError{Type: fmt.Sprintf("%T", target), Method: method}
	}

	r.mu.RLock()
	params := r.methodParams[methodKey{typ: reflect.TypeOf(target), method: method}]
	r.mu.RUnlock()

	return call(ctx, m, params, args, fmt.Sprintf("%T.%s", target, method))
}

// Call calls fn, which must be a func.
func (r *Registry) Call(ctx context.Context, fn any, args factory.Args) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, NotCallableError{Type: fmt.Sprintf("%T", fn)}
	}
	return call(ctx, rv, nil, args, rv.Type().String())
}

func (r *Registry) add(class string, def compiledDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[class]; exists {
		return DuplicateClassError{Class: class}
	}
	r.defs[class] = def
	return nil
}

func (r *Registry) get(class string) (compiledDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[class]
	return def, ok
}

func checkResults(fn reflect.Type) error {
	switch fn.NumOut() {
	case 1:
		if reflectx.IsError(fn.Out(0)) {
			return fmt.Errorf("constructor returns only an error")
		}
		return nil
	case 2:
		if reflectx.IsError(fn.Out(0)) || !reflectx.IsError(fn.Out(1)) {
			return fmt.Errorf("constructor must return (T, error)")
		}
		return nil
	}
	return fmt.Errorf("constructor must return T or (T, error), got %d results", fn.NumOut())
}
