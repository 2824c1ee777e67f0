package srv

import (
	"context"
	"log/slog"

	loggingpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/logging"
)

type hookKey struct {
	key    string
	entity string
}

func keyFor(key string, entity *EntityDefinition) hookKey {
	k := hookKey{key: key}
	if entity != nil {
		k.entity = entity.QualifiedName()
	}
	return k
}

// Runtime is an in-process implementation of the Service hook contract. It
// keeps ordered hook lists per (key, entity) pair and executes requests
// through the before/on/after pipeline with entity middleware applied around
// the on phase.
//
// The runtime owns no datasource. The terminal operation comes from an On
// handler that does not call next, or from the base passed to HandleWith.
// Registration is expected to happen single-threaded at startup, before
// request traffic begins.
type Runtime struct {
	name   string
	logger loggingpkg.ServiceLogger

	before map[hookKey][]BeforeFunc
	after  map[hookKey][]AfterFunc
	on     map[hookKey][]OnFunc
	errs   []ErrorFunc
	mws    map[string][]Middleware

	// prepending flips hook insertion to head-of-list while a Prepend
	// callback runs.
	prepending bool
}

// NewRuntime constructs a runtime named after the service it hosts. A nil
// logger falls back to slog.Default.
func NewRuntime(name string, log loggingpkg.ServiceLogger) *Runtime {
	if log == nil {
		log = loggingpkg.NewSlogServiceLogger(slog.Default())
	}
	return &Runtime{
		name:   name,
		logger: log.With(loggingpkg.LogFields{"service": name}),
		before: make(map[hookKey][]BeforeFunc),
		after:  make(map[hookKey][]AfterFunc),
		on:     make(map[hookKey][]OnFunc),
		mws:    make(map[string][]Middleware),
	}
}

// Name returns the service name the runtime was created with.
func (rt *Runtime) Name() string { return rt.name }

// Before registers a pre-hook for the event/entity pair.
func (rt *Runtime) Before(event Event, entity *EntityDefinition, fn BeforeFunc) {
	k := keyFor(string(event), entity)
	rt.before[k] = insert(rt.before[k], fn, rt.prepending)
}

// After registers a post-hook for the event/entity pair.
func (rt *Runtime) After(event Event, entity *EntityDefinition, fn AfterFunc) {
	k := keyFor(string(event), entity)
	rt.after[k] = insert(rt.after[k], fn, rt.prepending)
}

// On registers an operation-phase hook under the given key and entity.
func (rt *Runtime) On(key string, entity *EntityDefinition, fn OnFunc) {
	k := keyFor(key, entity)
	rt.on[k] = insert(rt.on[k], fn, rt.prepending)
}

// OnError registers an error hook.
func (rt *Runtime) OnError(fn ErrorFunc) {
	rt.errs = insert(rt.errs, fn, rt.prepending)
}

// Prepend runs fn immediately with hook insertion switched to head-of-list,
// so everything fn registers executes ahead of previously registered hooks
// for the same key.
func (rt *Runtime) Prepend(fn func(Service)) {
	prev := rt.prepending
	rt.prepending = true
	fn(rt)
	rt.prepending = prev
}

// Use wraps the on phase of the given entity with the supplied middleware
// chain, outermost first.
func (rt *Runtime) Use(entity *EntityDefinition, mw ...Middleware) {
	if entity == nil || len(mw) == 0 {
		return
	}
	name := entity.QualifiedName()
	rt.mws[name] = append(rt.mws[name], mw...)
}

func insert[T any](hooks []T, fn T, prepend bool) []T {
	if prepend {
		return append([]T{fn}, hooks...)
	}
	return append(hooks, fn)
}

// Handle executes the request through the full hook pipeline with a no-op
// terminal operation.
func (rt *Runtime) Handle(ctx context.Context, req *Request) (any, error) {
	return rt.HandleWith(ctx, req, nil)
}

// HandleWith executes the request with base as the terminal operation of the
// on-phase chain. Before hooks run first in registration order, then the on
// chain wrapped in entity middleware, then after hooks over the raw result.
// Failures from any phase pass through the error hooks.
func (rt *Runtime) HandleWith(ctx context.Context, req *Request, base Next) (any, error) {
	k := keyFor(string(req.Event), req.Entity)

	for _, fn := range rt.before[k] {
		if err := fn(ctx, req); err != nil {
			return nil, rt.fail(err, req)
		}
	}

	result, err := rt.invokeOn(ctx, k, req, base)
	if err != nil {
		return nil, rt.fail(err, req)
	}

	for _, fn := range rt.after[k] {
		if err := fn(ctx, result, req); err != nil {
			return nil, rt.fail(err, req)
		}
	}

	return result, nil
}

// Call invokes a custom action or function by name. Pass a nil entity for
// unbound operations.
func (rt *Runtime) Call(ctx context.Context, name string, entity *EntityDefinition, req *Request) (any, error) {
	k := keyFor(name, entity)
	result, err := rt.invokeOn(ctx, k, req, nil)
	if err != nil {
		return nil, rt.fail(err, req)
	}
	return result, nil
}

// Emit delivers a custom event to the hooks registered under the given
// topic key. Event hooks run in registration order; handler errors pass
// through the error hooks.
func (rt *Runtime) Emit(ctx context.Context, topic string, req *Request) error {
	k := keyFor(topic, nil)
	if _, err := rt.invokeOn(ctx, k, req, nil); err != nil {
		return rt.fail(err, req)
	}
	return nil
}

func (rt *Runtime) invokeOn(ctx context.Context, k hookKey, req *Request, base Next) (any, error) {
	next := base
	if next == nil {
		next = func(ctx context.Context, req *Request) (any, error) {
			return nil, nil
		}
	}

	hooks := rt.on[k]
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		tail := next
		next = func(ctx context.Context, req *Request) (any, error) {
			return hook(ctx, req, tail)
		}
	}

	if mws := rt.mws[k.entity]; len(mws) > 0 {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
	}

	return next(ctx, req)
}

// fail routes err through the error hooks. Hooks run synchronously in
// registration order; a non-nil return value replaces the error seen by
// later hooks and by the caller.
func (rt *Runtime) fail(err error, req *Request) error {
	rt.logger.Debug("Request failed", loggingpkg.LogFields{
		"request_id": req.ID,
		"event":      string(req.Event),
		"error":      err.Error(),
	})
	for _, fn := range rt.errs {
		if replaced := fn(err, req); replaced != nil {
			err = replaced
		}
	}
	return err
}
