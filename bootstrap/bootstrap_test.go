package bootstrap

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanchen/factory"
	"github.com/chenyanchen/factory/container"
)

type widget struct {
	Label string
}

func TestRegisterSharesBuilder(t *testing.T) {
	r := container.NewRegistry()
	b, err := Register(r)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := r.Instantiate(ctx, Contract, factory.Args{})
	require.NoError(t, err)
	second, err := r.Instantiate(ctx, Contract, factory.Args{})
	require.NoError(t, err)

	assert.True(t, first == second, "contract should resolve to one shared builder")
	assert.True(t, first.(*factory.Builder) == b)

	_, err = Register(r)
	require.Error(t, err)
	var dup container.DuplicateClassError
	assert.ErrorAs(t, err, &dup)
}

func TestBuilderBuildsContract(t *testing.T) {
	r := container.NewRegistry()
	b, err := Register(r)
	require.NoError(t, err)

	got, err := factory.BuildAs[*factory.Builder](context.Background(), b, Contract)
	require.NoError(t, err)
	assert.True(t, got == b)
}

func TestDefault(t *testing.T) {
	assert.True(t, Default() == Default())
	assert.True(t, Default().Container() == factory.Container(DefaultRegistry()))

	require.NoError(t, container.RegisterType[widget](DefaultRegistry(), "bootstrap.widget"))

	ctx := context.Background()
	w, err := Build(ctx, factory.M("__class", "bootstrap.widget", "label", "knob"))
	require.NoError(t, err)
	assert.Equal(t, "knob", w.(*widget).Label)

	w, err = Apply(ctx, w, factory.M("label", "dial"))
	require.NoError(t, err)
	assert.Equal(t, "dial", w.(*widget).Label)

	resolved, err := Resolve(ctx, w, reflect.TypeOf(&widget{}))
	require.NoError(t, err)
	assert.True(t, resolved == w)
}
