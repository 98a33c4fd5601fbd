// Package bootstrap owns the process-wide Builder and registers Builders under a
// well-known class so that other components can look them up from a Registry.
package bootstrap

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/chenyanchen/factory"
	"github.com/chenyanchen/factory/container"
)

// Contract is the class a Builder is registered under.
const Contract = "factory"

// Register creates a Builder over r and registers it as the shared Contract
// instance of r.
func Register(r *container.Registry, opts ...factory.Option) (*factory.Builder, error) {
	b, err := factory.NewBuilder(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := container.Instance(r, Contract, b); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return b, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *container.Registry
	defaultBuilder  *factory.Builder
)

func initDefault() {
	defaultOnce.Do(func() {
		defaultRegistry = container.NewRegistry()
		b, err := Register(defaultRegistry)
		if err != nil {
			panic(err)
		}
		defaultBuilder = b
	})
}

// Default returns the process-wide Builder, created on first use.
func Default() *factory.Builder {
	initDefault()
	return defaultBuilder
}

// DefaultRegistry returns the Registry behind Default, where applications register
// their classes at startup.
func DefaultRegistry() *container.Registry {
	initDefault()
	return defaultRegistry
}

func Build(ctx context.Context, description any) (any, error) {
	return Default().Build(ctx, description)
}

func Apply(ctx context.Context, object any, config any) (any, error) {
	return Default().Apply(ctx, object, config)
}

func Resolve(ctx context.Context, reference any, expected reflect.Type) (any, error) {
	return Default().Resolve(ctx, reference, expected)
}
