package metadata

import (
	"reflect"
	"sync"

	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

// Store maps a handler class identity to its entity association, handler
// descriptors, and middleware bindings. The zero source of class identity is
// the concrete type of the class value, so a prototype pointer and the
// resolved instance address the same metadata.
type Store struct {
	mu      sync.RWMutex
	classes map[reflect.Type]*classMetadata
}

type classMetadata struct {
	entity      *srvpkg.EntityDefinition
	handlers    []HandlerDescriptor
	middlewares []srvpkg.Middleware
}

// Default is the process-wide store populated at class-definition time.
var Default = NewStore()

// NewStore creates an empty metadata store. Tests use dedicated stores to
// stay independent of package-level registrations.
func NewStore() *Store {
	return &Store{classes: make(map[reflect.Type]*classMetadata)}
}

func classKey(class any) reflect.Type {
	return reflect.TypeOf(class)
}

// Define starts the declaration for the given class, replacing any previous
// one. Call it from the class constructor with the wired instance, so the
// declared callbacks close over the instance's injected dependencies; the
// replacement keeps repeated construction from stacking duplicates.
func (s *Store) Define(class any) *Builder {
	key := classKey(class)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[key] = &classMetadata{}
	return &Builder{store: s, key: key}
}

// Handlers returns the declared handler descriptors for the instance's
// class, in declaration order. Returns nil for classes without metadata.
func (s *Store) Handlers(instance any) []HandlerDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cm, ok := s.classes[classKey(instance)]
	if !ok || len(cm.handlers) == 0 {
		return nil
	}
	out := make([]HandlerDescriptor, len(cm.handlers))
	copy(out, cm.handlers)
	return out
}

// Entity returns the entity associated with the instance's class, or nil
// when the class declared none.
func (s *Store) Entity(instance any) *srvpkg.EntityDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cm, ok := s.classes[classKey(instance)]
	if !ok {
		return nil
	}
	return cm.entity
}

// Middlewares returns the middleware bindings declared for the instance's
// class, in declaration order.
func (s *Store) Middlewares(instance any) []srvpkg.Middleware {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cm, ok := s.classes[classKey(instance)]
	if !ok || len(cm.middlewares) == 0 {
		return nil
	}
	out := make([]srvpkg.Middleware, len(cm.middlewares))
	copy(out, cm.middlewares)
	return out
}

// Builder attaches metadata to one handler class. All methods return the
// builder for chaining; declaration order is preserved.
type Builder struct {
	store *Store
	key   reflect.Type
}

func (b *Builder) meta() *classMetadata {
	return b.store.classes[b.key]
}

func (b *Builder) add(d HandlerDescriptor, opts []Option) *Builder {
	for _, opt := range opts {
		opt(&d)
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	cm := b.meta()
	cm.handlers = append(cm.handlers, d)
	return b
}

// Entity associates the class with its target entity definition.
func (b *Builder) Entity(def *srvpkg.EntityDefinition) *Builder {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.meta().entity = def
	return b
}

// Use binds middleware that wraps the on phase of the class's entity.
func (b *Builder) Use(mw ...srvpkg.Middleware) *Builder {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	cm := b.meta()
	cm.middlewares = append(cm.middlewares, mw...)
	return b
}

// Before declares a pre-hook for the event on the class's entity.
func (b *Builder) Before(event srvpkg.Event, fn srvpkg.BeforeFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: event, Type: HandlerBefore, Before: fn}, opts)
}

// After declares a post-hook for the event on the class's entity.
func (b *Builder) After(event srvpkg.Event, fn srvpkg.AfterFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: event, Type: HandlerAfter, After: fn}, opts)
}

// AfterSingle declares a post-hook that only fires for single-instance
// requests, receiving the one addressed record.
func (b *Builder) AfterSingle(event srvpkg.Event, fn srvpkg.AfterSingleFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: event, Type: HandlerAfterSingleInstance, AfterSingle: fn}, opts)
}

// On declares an operation-phase hook for the event on the class's entity.
func (b *Builder) On(event srvpkg.Event, fn srvpkg.OnFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: event, Type: HandlerOn, On: fn}, opts)
}

// OnAction declares the implementation of an unbound action.
func (b *Builder) OnAction(name string, fn srvpkg.OnFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: srvpkg.EventAction, Type: HandlerOn, ActionName: name, On: fn}, opts)
}

// OnFunction declares the implementation of an unbound function.
func (b *Builder) OnFunction(name string, fn srvpkg.OnFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: srvpkg.EventFunc, Type: HandlerOn, ActionName: name, On: fn}, opts)
}

// OnBoundAction declares the implementation of an action bound to the
// class's entity.
func (b *Builder) OnBoundAction(name string, fn srvpkg.OnFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: srvpkg.EventBoundAction, Type: HandlerOn, ActionName: name, On: fn}, opts)
}

// OnBoundFunction declares the implementation of a function bound to the
// class's entity.
func (b *Builder) OnBoundFunction(name string, fn srvpkg.OnFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: srvpkg.EventBoundFunc, Type: HandlerOn, ActionName: name, On: fn}, opts)
}

// OnEvent declares a hook for a namespaced event, for example
// "sap.capire.bookshop.BookCreated".
func (b *Builder) OnEvent(name string, fn srvpkg.OnFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: srvpkg.EventCustom, Type: HandlerOn, EventName: name, On: fn}, opts)
}

// OnError declares an error hook observing failures from any phase.
func (b *Builder) OnError(fn srvpkg.ErrorFunc, opts ...Option) *Builder {
	return b.add(HandlerDescriptor{Event: srvpkg.EventError, Type: HandlerOn, OnError: fn}, opts)
}
