// Package srv defines the hook contract between the dispatch layer and the
// hosting data-service runtime, the request model flowing through the hooks,
// and a reference in-process runtime implementation used by tests and
// examples.
package srv

import "context"

// Event names a lifecycle phase or a custom event handled by the runtime.
type Event string

// CRUD lifecycle events.
const (
	EventCreate Event = "CREATE"
	EventRead   Event = "READ"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
)

// Draft lifecycle events (editable-copy workflow).
const (
	EventDraftNew    Event = "NEW"
	EventDraftEdit   Event = "EDIT"
	EventDraftSave   Event = "SAVE"
	EventDraftCancel Event = "CANCEL"
)

// Custom operation event markers. These select a registration path rather
// than a concrete hook key; the hook key comes from the descriptor's action
// or event name.
const (
	EventAction      Event = "ACTION"
	EventFunc        Event = "FUNC"
	EventBoundAction Event = "BOUND_ACTION"
	EventBoundFunc   Event = "BOUND_FUNC"
	EventCustom      Event = "EVENT"
	EventError       Event = "ERROR"
)

// Next advances the on-phase chain and yields the raw operation result.
type Next func(ctx context.Context, req *Request) (any, error)

// BeforeFunc runs ahead of the operation, typically for validation or
// request enrichment.
type BeforeFunc func(ctx context.Context, req *Request) error

// AfterFunc runs once the operation produced a result. The results value is
// the operation outcome after dispatcher normalization: a record collection
// for reads, or a deleted-exactly-one boolean for single-record deletes.
// Collections are shared references, so mutations are visible to the caller.
type AfterFunc func(ctx context.Context, results any, req *Request) error

// AfterSingleFunc runs for single-instance reads only, receiving the one
// addressed record.
type AfterSingleFunc func(ctx context.Context, record Record, req *Request) error

// OnFunc implements or wraps the operation itself. Call next to continue
// the chain; return without calling it to replace the operation entirely.
type OnFunc func(ctx context.Context, req *Request, next Next) (any, error)

// ErrorFunc observes failures from any phase. It is invoked synchronously;
// a non-nil return value replaces the propagated error.
type ErrorFunc func(err error, req *Request) error

// Middleware wraps the on-phase of request processing for one entity.
type Middleware func(next Next) Next

// Service is the registration surface the dispatch layer programs against.
// A nil entity registers an unbound hook (custom actions, functions, and
// namespaced events have no target entity).
type Service interface {
	// Before registers a pre-hook for the event/entity pair.
	Before(event Event, entity *EntityDefinition, fn BeforeFunc)

	// After registers a post-hook for the event/entity pair. The hook sees
	// the raw operation result.
	After(event Event, entity *EntityDefinition, fn AfterFunc)

	// On registers a hook on the operation phase, keyed by event name (or
	// action/function name, or truncated custom-event key) and entity.
	On(key string, entity *EntityDefinition, fn OnFunc)

	// OnError registers an error hook observing failures from any phase.
	OnError(fn ErrorFunc)

	// Prepend runs the supplied registration callback ahead of all other
	// handler registration for this service, so its hooks execute first.
	Prepend(fn func(Service))
}

// MiddlewareInstaller is implemented by runtimes that support wrapping the
// on-phase of an entity with interceptor chains.
type MiddlewareInstaller interface {
	Use(entity *EntityDefinition, mw ...Middleware)
}
