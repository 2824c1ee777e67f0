// Package container implements a small dependency-injection container: an
// explicit registry mapping result types to constructor functions, with a
// Resolve operation that performs topological construction and memoizes
// singletons. There is no reflection-based auto-wiring beyond reading
// constructor signatures; everything is registered explicitly at startup.
package container

import (
	"fmt"
	"reflect"

	errspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/errors"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

type provider struct {
	ctor reflect.Value
	// params caches the constructor's parameter types.
	params []reflect.Type
}

// Container resolves types through registered constructors. Constructed
// instances are singletons: each provider runs at most once per container.
// Registration and resolution are expected to happen single-threaded during
// startup.
type Container struct {
	providers map[reflect.Type]provider
	instances map[reflect.Type]reflect.Value
	// resolving tracks the in-progress construction stack for cycle
	// detection.
	resolving map[reflect.Type]bool
}

// New creates an empty container.
func New() *Container {
	return &Container{
		providers: make(map[reflect.Type]provider),
		instances: make(map[reflect.Type]reflect.Value),
		resolving: make(map[reflect.Type]bool),
	}
}

// Provide registers a constructor function. The constructor may take any
// number of resolvable parameters and must return one value, optionally
// followed by an error. The result type becomes resolvable.
func (c *Container) Provide(ctor any) error {
	if ctor == nil {
		return errspkg.ErrConstructorRequired
	}
	v := reflect.ValueOf(ctor)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return fmt.Errorf("dispatcher: constructor must be a function, got %T", ctor)
	}
	if t.NumOut() < 1 || t.NumOut() > 2 {
		return fmt.Errorf("dispatcher: constructor %s must return (T) or (T, error)", t)
	}
	if t.NumOut() == 2 && t.Out(1) != errType {
		return fmt.Errorf("dispatcher: constructor %s second return value must be error", t)
	}

	params := make([]reflect.Type, t.NumIn())
	for i := range params {
		params[i] = t.In(i)
	}

	c.providers[t.Out(0)] = provider{ctor: v, params: params}
	return nil
}

// ProvideValue registers an already-constructed instance under its concrete
// type, making it injectable into constructors.
func (c *Container) ProvideValue(value any) {
	if value == nil {
		return
	}
	v := reflect.ValueOf(value)
	c.instances[v.Type()] = v
}

// Has reports whether the given type is already bound, either through a
// provider or a stored instance (including interface satisfaction).
func (c *Container) Has(t reflect.Type) bool {
	if _, ok := c.instances[t]; ok {
		return true
	}
	if _, ok := c.providers[t]; ok {
		return true
	}
	if t.Kind() == reflect.Interface {
		_, ok := c.assignableTo(t)
		return ok
	}
	return false
}

// HasValue reports whether a value of the same concrete type as v is bound.
func (c *Container) HasValue(v any) bool {
	if v == nil {
		return false
	}
	return c.Has(reflect.TypeOf(v))
}

// Resolve constructs (or returns the memoized) instance for the given type.
func (c *Container) Resolve(t reflect.Type) (any, error) {
	v, err := c.resolve(t)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ResolveInto resolves the pointee type of target, a non-nil pointer, and
// stores the result through it.
func (c *Container) ResolveInto(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("dispatcher: resolve target must be a non-nil pointer, got %T", target)
	}
	resolved, err := c.resolve(v.Type().Elem())
	if err != nil {
		return err
	}
	v.Elem().Set(resolved)
	return nil
}

// Resolve is the typed convenience form of Container.Resolve.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	v, err := c.resolve(reflect.TypeOf(&zero).Elem())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

func (c *Container) resolve(t reflect.Type) (reflect.Value, error) {
	if v, ok := c.instances[t]; ok {
		return v, nil
	}

	p, ok := c.providers[t]
	if !ok {
		// Interfaces may be satisfied by any bound concrete type.
		if t.Kind() == reflect.Interface {
			if concrete, found := c.assignableTo(t); found {
				return c.resolve(concrete)
			}
		}
		return reflect.Value{}, fmt.Errorf("dispatcher: no provider for %s", t)
	}

	if c.resolving[t] {
		return reflect.Value{}, fmt.Errorf("dispatcher: dependency cycle detected while resolving %s", t)
	}
	c.resolving[t] = true
	defer delete(c.resolving, t)

	args := make([]reflect.Value, len(p.params))
	for i, paramType := range p.params {
		arg, err := c.resolve(paramType)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("dispatcher: resolving %s: %w", t, err)
		}
		args[i] = arg
	}

	out := p.ctor.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, fmt.Errorf("dispatcher: constructing %s: %w", t, out[1].Interface().(error))
	}

	c.instances[t] = out[0]
	return out[0], nil
}

func (c *Container) assignableTo(iface reflect.Type) (reflect.Type, bool) {
	for t := range c.instances {
		if t.Implements(iface) {
			return t, true
		}
	}
	for t := range c.providers {
		if t.Implements(iface) {
			return t, true
		}
	}
	return nil, false
}
