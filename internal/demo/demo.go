// Package demo holds sample types used by the CLI, the examples and tests.
package demo

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/chenyanchen/factory/container"
)

type Engine struct {
	Power  int
	closed bool
}

func (e *Engine) Close() error {
	e.closed = true
	return nil
}

func (e *Engine) Closed() bool { return e.closed }

type Car struct {
	RegistrationNumber string
	Engine             *Engine
	Owner              *Person `factory:"owner"`

	kind          string
	color         string
	engineRunning bool
}

func NewCar() *Car {
	return &Car{kind: "unknown", color: "unknown"}
}

func (c *Car) SetType(kind string) {
	c.kind = kind
}

func (c *Car) Type() string { return c.kind }

func (c *Car) Color(color string) *Car {
	c.color = color
	return c
}

func (c *Car) Paint() string { return c.color }

func (c *Car) StartEngine() *Car {
	c.engineRunning = true
	return c
}

func (c *Car) EngineRunning() bool { return c.engineRunning }

// SetTypeImmutable and ColorImmutable leave c untouched and return a changed copy.
func (c *Car) SetTypeImmutable(kind string) *Car {
	cp := *c
	cp.kind = kind
	return &cp
}

func (c *Car) ColorImmutable(color string) *Car {
	cp := *c
	cp.color = color
	return &cp
}

// Inspect reports whether the car is road-ready.
func (c *Car) Inspect() bool {
	return c.RegistrationNumber != "" && c.kind != "unknown"
}

type Person struct {
	Name     string
	Email    string
	CarRents []*CarRent
}

func NewPerson(name, email string) *Person {
	return &Person{Name: name, Email: email}
}

func (p *Person) RentCar(car *Car, price float64) *CarRent {
	rent := NewCarRent(p, car)
	rent.Price = price
	p.CarRents = append(p.CarRents, rent)
	return rent
}

type CarRent struct {
	Person *Person
	Car    *Car
	Price  float64
}

func NewCarRent(person *Person, car *Car) *CarRent {
	return &CarRent{Person: person, Car: car}
}

func (r *CarRent) SetCar(car *Car) *CarRent {
	r.Car = car
	return r
}

// SetPerson returns the person, not the rent.
func (r *CarRent) SetPerson(person *Person) *Person {
	r.Person = person
	return person
}

// Garage accepts arbitrary attributes.
type Garage struct {
	Name string

	mu    sync.Mutex
	attrs map[string]any
}

func (g *Garage) SetField(name string, value any) error {
	if name == "" {
		return fmt.Errorf("garage: empty attribute name")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.attrs == nil {
		g.attrs = make(map[string]any)
	}
	g.attrs[name] = value
	return nil
}

func (g *Garage) Attr(name string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.attrs[name]
	return v, ok
}

func (g *Garage) AttrNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.attrs))
	for k := range g.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Register registers the demo classes under their type names.
func Register(r *container.Registry) error {
	if err := container.Register(r, "Car", container.Definition{New: NewCar}); err != nil {
		return err
	}
	if err := container.Register(r, "Person", container.Definition{
		New:    NewPerson,
		Params: []string{"name", "email"},
	}); err != nil {
		return err
	}
	if err := container.Register(r, "CarRent", container.Definition{
		New:    NewCarRent,
		Params: []string{"person", "car"},
	}); err != nil {
		return err
	}
	if err := container.RegisterType[Engine](r, "Engine"); err != nil {
		return err
	}
	if err := container.RegisterType[Garage](r, "Garage"); err != nil {
		return err
	}

	r.MethodParams(reflect.TypeOf(&Car{}), "Color", "color")
	r.MethodParams(reflect.TypeOf(&Car{}), "ColorImmutable", "color")
	r.MethodParams(reflect.TypeOf(&Person{}), "RentCar", "car", "price")
	return nil
}
