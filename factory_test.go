package factory_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanchen/factory"
	"github.com/chenyanchen/factory/container"
	"github.com/chenyanchen/factory/internal/demo"
)

// tagSet is configured by value: WithN returns an updated copy.
type tagSet struct {
	Tags []string
	Meta any
	N    int
}

func (s tagSet) WithN(n int) tagSet {
	s.N = n
	return s
}

type Trim struct {
	Label string
}

type trim struct {
	Label string
}

type badge struct {
	*Trim
	Name string
}

type hiddenBadge struct {
	*trim
	Name string
}

func newBuilder(t *testing.T, opts ...factory.Option) (*factory.Builder, *container.Registry) {
	t.Helper()
	reg := container.NewRegistry()
	require.NoError(t, demo.Register(reg))
	b, err := factory.NewBuilder(reg, opts...)
	require.NoError(t, err)
	return b, reg
}

func TestNewBuilderRequiresContainer(t *testing.T) {
	_, err := factory.NewBuilder(nil)
	require.Error(t, err)
}

func TestBuildBareClass(t *testing.T) {
	b, _ := newBuilder(t)

	v, err := b.Build(context.Background(), "Car")
	require.NoError(t, err)
	car, ok := v.(*demo.Car)
	require.True(t, ok)
	assert.Equal(t, "unknown", car.Type())

	v, err = b.Build(context.Background(), factory.New("Engine"))
	require.NoError(t, err)
	assert.IsType(t, &demo.Engine{}, v)
}

func TestBuildMissingClass(t *testing.T) {
	b, _ := newBuilder(t)

	_, err := b.Build(context.Background(), factory.M("registrationNumber", "AB1234"))
	require.Error(t, err)
	assert.ErrorIs(t, err, factory.ErrInvalidInput)
	var missing factory.MissingClassError
	assert.ErrorAs(t, err, &missing)
	assert.Contains(t, err.Error(), "__class")

	_, err = b.Build(context.Background(), factory.M("__class", 42))
	assert.ErrorIs(t, err, factory.ErrInvalidInput)

	_, err = b.Build(context.Background(), 3.14)
	assert.ErrorIs(t, err, factory.ErrInvalidInput)
}

func TestBuildConstructorArgs(t *testing.T) {
	b, _ := newBuilder(t)
	ctx := context.Background()

	person, err := factory.BuildAs[*demo.Person](ctx, b, factory.M(
		"__class", "Person",
		"__construct()", factory.M("name", "John Doe", "email", "john@example.com"),
	))
	require.NoError(t, err)
	assert.Equal(t, "John Doe", person.Name)
	assert.Equal(t, "john@example.com", person.Email)

	person, err = factory.BuildAs[*demo.Person](ctx, b, factory.M(
		"__class", "Person",
		"__construct()", []any{"Jane Doe", "jane@example.com"},
	))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", person.Name)

	person, err = factory.BuildAs[*demo.Person](ctx, b, map[string]any{
		"__class":       "Person",
		"__construct()": map[string]any{"email": "max@example.com", "name": "Max"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Max", person.Name)
	assert.Equal(t, "max@example.com", person.Email)
}

func TestBuildErrorsPropagateUnchanged(t *testing.T) {
	b, _ := newBuilder(t)

	_, err := b.Build(context.Background(), "Truck")
	var notFound container.ClassNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Truck", notFound.Class)
	assert.NotErrorIs(t, err, factory.ErrInvalidInput)

	reg := container.NewRegistry()
	boom := errors.New("boom")
	container.MustRegister(reg, "Faulty", container.Definition{
		New: func() (*demo.Car, error) { return nil, boom },
	})
	fb, err := factory.NewBuilder(reg)
	require.NoError(t, err)
	_, err = fb.Build(context.Background(), "Faulty")
	assert.True(t, err == boom, "constructor error should not be wrapped")
}

func TestBuildNestedDescriptionsFirst(t *testing.T) {
	type part struct{ Name string }
	type assembly struct{ Parts []*part }

	var order []string
	reg := container.NewRegistry()
	container.MustRegister(reg, "part", container.Definition{
		New: func(name string) *part {
			order = append(order, "part:"+name)
			return &part{Name: name}
		},
		Params: []string{"name"},
	})
	container.MustRegister(reg, "assembly", container.Definition{
		New: func(left, right *part) *assembly {
			order = append(order, "assembly")
			return &assembly{Parts: []*part{left, right}}
		},
		Params: []string{"left", "right"},
	})
	b, err := factory.NewBuilder(reg)
	require.NoError(t, err)

	v, err := b.Build(context.Background(), factory.M(
		"__class", "assembly",
		"__construct()", factory.M(
			"left", factory.New(factory.M("__class", "part", "__construct()", []any{"wheel"})),
			"right", factory.New(factory.M("__class", "part", "__construct()", factory.M("name", "axle"))),
		),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"part:wheel", "part:axle", "assembly"}, order)
	a := v.(*assembly)
	assert.Equal(t, "wheel", a.Parts[0].Name)
	assert.Equal(t, "axle", a.Parts[1].Name)
}

func TestBuildCarRent(t *testing.T) {
	b, _ := newBuilder(t)

	rent, err := factory.BuildAs[*demo.CarRent](context.Background(), b, factory.M(
		"__class", "CarRent",
		"__construct()", factory.M(
			"person", factory.New(factory.M(
				"__class", "Person",
				"__construct()", []any{"John Doe", "john@example.com"},
			)),
			"car", factory.New("Car"),
		),
		"price", 120,
		"car", factory.New(factory.M(
			"__class", "Car",
			"registrationNumber", "XY987",
			"owner", factory.New(factory.M("__class", "Person", "__construct()", []any{"Owner", "o@example.com"})),
		)),
	))
	require.NoError(t, err)
	assert.Equal(t, "John Doe", rent.Person.Name)
	assert.Equal(t, float64(120), rent.Price)
	assert.Equal(t, "XY987", rent.Car.RegistrationNumber)
	require.NotNil(t, rent.Car.Owner)
	assert.Equal(t, "Owner", rent.Car.Owner.Name)
}

func TestBuildShallowResolution(t *testing.T) {
	type bag struct{ Items []any }
	reg := container.NewRegistry()
	container.MustRegister(reg, "bag", container.Definition{
		New:    func(items []any) *bag { return &bag{Items: items} },
		Params: []string{"items"},
	})
	b, err := factory.NewBuilder(reg)
	require.NoError(t, err)

	v, err := b.Build(context.Background(), factory.M(
		"__class", "bag",
		"__construct()", factory.M("items", []any{factory.New("anything")}),
	))
	require.NoError(t, err)
	items := v.(*bag).Items
	require.Len(t, items, 1)
	assert.IsType(t, factory.Description{}, items[0], "descriptions below the top level are not built")
}

func TestApplyFieldsAndSetters(t *testing.T) {
	b, _ := newBuilder(t)
	car := demo.NewCar()

	v, err := b.Apply(context.Background(), car, factory.M(
		"registrationNumber", "AB1234",
		"type", "sedan",
	))
	require.NoError(t, err)
	assert.True(t, v == any(car), "mutating setters keep the same object")
	assert.Equal(t, "AB1234", car.RegistrationNumber)
	assert.Equal(t, "sedan", car.Type())
}

func TestApplyUnknownKey(t *testing.T) {
	b, _ := newBuilder(t)
	car := demo.NewCar()

	_, err := b.Apply(context.Background(), car, factory.M(
		"registrationNumber", "AB1234",
		"wingspan", 12,
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, factory.ErrInvalidInput)
	var unknown factory.UnknownDirectiveError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "*demo.Car", unknown.Type)
	assert.Equal(t, "wingspan", unknown.Key)
	assert.Empty(t, car.RegistrationNumber, "keys are classified before any directive runs")
}

func TestApplyImmutableUpdates(t *testing.T) {
	b, _ := newBuilder(t)
	ctx := context.Background()
	car := demo.NewCar()

	v, err := b.Apply(ctx, car, factory.M("typeImmutable", "coupe"))
	require.NoError(t, err)
	updated := v.(*demo.Car)
	assert.False(t, updated == car)
	assert.Equal(t, "coupe", updated.Type())
	assert.Equal(t, "unknown", car.Type())

	v, err = b.Apply(ctx, car, factory.M(
		"colorImmutable()", factory.M("color", "blue"),
		"startEngine()", nil,
	))
	require.NoError(t, err)
	updated = v.(*demo.Car)
	assert.False(t, updated == car)
	assert.Equal(t, "blue", updated.Paint())
	assert.True(t, updated.EngineRunning(), "later directives apply to the replacement")
	assert.False(t, car.EngineRunning())
}

func TestApplyIgnoresUnrelatedResults(t *testing.T) {
	b, _ := newBuilder(t)
	ctx := context.Background()

	car := demo.NewCar()
	v, err := b.Apply(ctx, car, factory.M("inspect()", nil))
	require.NoError(t, err)
	assert.True(t, v == any(car), "bool result must not replace the object")

	rent := demo.NewCarRent(nil, nil)
	other := demo.NewPerson("Other", "other@example.com")
	v, err = b.Apply(ctx, rent, factory.M("person", other))
	require.NoError(t, err)
	assert.True(t, v == any(rent), "setter returning another type must not replace the object")
	assert.True(t, rent.Person == other)
}

func TestApplyMethodWithPositionalArgs(t *testing.T) {
	b, _ := newBuilder(t)
	person := demo.NewPerson("John", "john@example.com")

	v, err := b.Apply(context.Background(), person, factory.M(
		"rentCar()", []any{factory.New(factory.M("__class", "Car", "registrationNumber", "R1")), 99.5},
	))
	require.NoError(t, err)
	assert.True(t, v == any(person))
	require.Len(t, person.CarRents, 1)
	assert.Equal(t, "R1", person.CarRents[0].Car.RegistrationNumber)
	assert.Equal(t, 99.5, person.CarRents[0].Price)
}

func TestApplyFinalCallbackRunsLast(t *testing.T) {
	b, _ := newBuilder(t)
	car := demo.NewCar()

	var seenNumber, seenColor string
	_, err := b.Apply(context.Background(), car, factory.M(
		"()", func(c *demo.Car) {
			seenNumber = c.RegistrationNumber
			seenColor = c.Paint()
		},
		"registrationNumber", "AB1234",
		"color()", factory.M("color", "red"),
	))
	require.NoError(t, err)
	assert.Equal(t, "AB1234", seenNumber)
	assert.Equal(t, "red", seenColor)
}

func TestApplyFinalCallbackWithBuilder(t *testing.T) {
	b, _ := newBuilder(t)
	car := demo.NewCar()

	v, err := b.Apply(context.Background(), car, factory.M(
		"()", func(ctx context.Context, c *demo.Car, fb *factory.Builder) (*demo.Car, error) {
			engine, err := factory.BuildAs[*demo.Engine](ctx, fb, factory.M("__class", "Engine", "power", 150))
			if err != nil {
				return nil, err
			}
			cp := *c
			cp.Engine = engine
			return &cp, nil
		},
	))
	require.NoError(t, err)
	updated := v.(*demo.Car)
	assert.False(t, updated == car, "callback result of the same type replaces the object")
	require.NotNil(t, updated.Engine)
	assert.Equal(t, 150, updated.Engine.Power)
	assert.Nil(t, car.Engine)
}

func TestApplyNoRollback(t *testing.T) {
	b, _ := newBuilder(t)
	car := demo.NewCar()

	called := false
	_, err := b.Apply(context.Background(), car, factory.M(
		"registrationNumber", "AB1234",
		"color()", []any{42},
		"type", "sedan",
		"()", func(*demo.Car) { called = true },
	))
	require.Error(t, err)
	var bindErr container.BindError
	assert.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "AB1234", car.RegistrationNumber, "earlier directives stay applied")
	assert.Equal(t, "unknown", car.Type(), "later directives are skipped")
	assert.False(t, called)
}

func TestApplyDynamicFields(t *testing.T) {
	b, _ := newBuilder(t)

	v, err := b.Build(context.Background(), factory.M(
		"__class", "Garage",
		"name", "Central",
		"city", "Berlin",
		"spots", 40,
		"keeper", factory.New(factory.M("__class", "Person", "__construct()", []any{"Ann", "ann@example.com"})),
	))
	require.NoError(t, err)
	g := v.(*demo.Garage)
	assert.Equal(t, "Central", g.Name)
	assert.Equal(t, []string{"city", "keeper", "spots"}, g.AttrNames())
	keeper, _ := g.Attr("keeper")
	assert.IsType(t, &demo.Person{}, keeper)
}

func TestApplyValueObject(t *testing.T) {
	type point struct{ X, Y int }
	b, _ := newBuilder(t)

	v, err := b.Apply(context.Background(), point{X: 1}, factory.M("y", 2))
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, v)
}

func TestApplyValueObjectChaining(t *testing.T) {
	b, _ := newBuilder(t)

	v, err := b.Apply(context.Background(), tagSet{Tags: []string{"a"}, Meta: []string{"m"}}, factory.M(
		"withN()", []any{3},
	))
	require.NoError(t, err)
	assert.Equal(t, tagSet{Tags: []string{"a"}, Meta: []string{"m"}, N: 3}, v)
}

func TestApplyFieldThroughEmbeddedPointer(t *testing.T) {
	b, _ := newBuilder(t)
	ctx := context.Background()

	v, err := b.Apply(ctx, &badge{}, factory.M("label", "gold", "name", "b1"))
	require.NoError(t, err)
	got := v.(*badge)
	require.NotNil(t, got.Trim, "nil embedded pointer is allocated")
	assert.Equal(t, "gold", got.Label)
	assert.Equal(t, "b1", got.Name)

	_, err = b.Apply(ctx, &hiddenBadge{}, factory.M("label", "gold"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be allocated")
}

func TestApplyRejectsLossyNumbers(t *testing.T) {
	type counter struct {
		Hits  uint8
		Ratio float32
	}
	b, _ := newBuilder(t)
	ctx := context.Background()

	for _, value := range []any{300, -1, 2.9} {
		c := &counter{}
		_, err := b.Apply(ctx, c, factory.M("hits", value))
		assert.Error(t, err, "hits = %v", value)
		assert.Zero(t, c.Hits)
	}

	c := &counter{}
	_, err := b.Apply(ctx, c, factory.M("hits", 2.0, "ratio", 0.5))
	require.NoError(t, err)
	assert.Equal(t, uint8(2), c.Hits)
	assert.Equal(t, float32(0.5), c.Ratio)
}

func TestApplyRejectsConstructorKey(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := b.Apply(context.Background(), demo.NewCar(), factory.M("__construct()", []any{}))
	assert.ErrorIs(t, err, factory.ErrInvalidInput)
}

func TestResolve(t *testing.T) {
	b, _ := newBuilder(t)
	ctx := context.Background()
	car := demo.NewCar()

	v, err := b.Resolve(ctx, car, reflect.TypeOf(&demo.Car{}))
	require.NoError(t, err)
	assert.True(t, v == any(car))

	_, err = b.Resolve(ctx, car, reflect.TypeOf(&demo.Person{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, factory.ErrInvalidInput)
	var mismatch factory.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "*demo.Car", mismatch.Actual)
	assert.Equal(t, "*demo.Person", mismatch.Expected)

	closer, err := factory.ResolveAs[io.Closer](ctx, b, factory.M("__class", "Engine", "power", 90))
	require.NoError(t, err)
	assert.Equal(t, 90, closer.(*demo.Engine).Power)

	_, err = factory.ResolveAs[io.Closer](ctx, b, "Car")
	assert.ErrorIs(t, err, factory.ErrInvalidInput)

	_, err = b.Resolve(ctx, nil, nil)
	var invalid factory.InvalidDescriptionError
	assert.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, factory.ErrInvalidInput)

	v, err = b.Resolve(ctx, factory.New("Person"), nil)
	require.Error(t, err, "Person needs constructor arguments")
	assert.Nil(t, v)
}

func TestBuildAsTypeMismatch(t *testing.T) {
	b, _ := newBuilder(t)
	_, err := factory.BuildAs[*demo.Person](context.Background(), b, "Car")
	var mismatch factory.TypeMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestWithContainerOverride(t *testing.T) {
	b, _ := newBuilder(t)

	other := container.NewRegistry()
	container.MustRegister(other, "Car", container.Definition{
		New: func() *demo.Car {
			c := demo.NewCar()
			c.RegistrationNumber = "OVERRIDE"
			return c
		},
	})
	ctx := factory.WithContainer(context.Background(), other)

	car, err := factory.BuildAs[*demo.Car](ctx, b, "Car")
	require.NoError(t, err)
	assert.Equal(t, "OVERRIDE", car.RegistrationNumber)

	_, err = b.Build(ctx, "Engine")
	var notFound container.ClassNotFoundError
	assert.ErrorAs(t, err, &notFound, "override replaces the container for the whole call")
}

func TestMaxDepth(t *testing.T) {
	nested := factory.M(
		"__class", "Car",
		"owner", factory.New(factory.M(
			"__class", "Person",
			"__construct()", []any{"A", "a@example.com"},
		)),
	)

	b, _ := newBuilder(t, factory.WithMaxDepth(1))
	_, err := b.Build(context.Background(), nested)
	var depthErr factory.DepthExceededError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, "Person", depthErr.Class)

	unbounded, _ := newBuilder(t)
	_, err = unbounded.Build(context.Background(), nested)
	require.NoError(t, err)
}

func TestEndToEndCar(t *testing.T) {
	b, _ := newBuilder(t)
	ctx := context.Background()

	v, err := b.Build(ctx, factory.M("__class", "Car"))
	require.NoError(t, err)

	v, err = b.Apply(ctx, v, factory.M(
		"registrationNumber", "AB1234",
		"color()", factory.M("color", "red"),
	))
	require.NoError(t, err)
	car := v.(*demo.Car)
	assert.Equal(t, "AB1234", car.RegistrationNumber)
	assert.Equal(t, "red", car.Paint())
}
