// Package metadata keeps the per-class handler descriptors the dispatch
// engine reads during registration. Descriptors are attached at startup
// through the builder API and are immutable afterwards; the store is a
// side-table keyed by the handler class's concrete type, not annotations
// baked into the types themselves.
package metadata

import (
	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

// HandlerType classifies a descriptor by the registration path it takes.
type HandlerType string

const (
	HandlerBefore              HandlerType = "Before"
	HandlerOn                  HandlerType = "On"
	HandlerAfter               HandlerType = "After"
	HandlerAfterSingleInstance HandlerType = "AfterSingleInstance"
	HandlerPrepend             HandlerType = "Prepend"
)

// EventKind selects the re-dispatch target of a Prepend descriptor.
type EventKind string

const (
	KindBefore              EventKind = "Before"
	KindAfter               EventKind = "After"
	KindAfterSingleInstance EventKind = "AfterSingleInstance"
	KindOn                  EventKind = "On"
)

// HandlerDescriptor records one declared handler: which event it targets,
// how it registers, and the callback to invoke. ActionName is set only for
// custom action/function events, EventName only for namespaced events, and
// Kind only for Prepend descriptors.
//
// Exactly one callback field is set, matching Type (or Kind for Prepend
// descriptors).
type HandlerDescriptor struct {
	Event      srvpkg.Event
	Type       HandlerType
	Kind       EventKind
	ActionName string
	EventName  string
	IsDraft    bool

	Before      srvpkg.BeforeFunc
	After       srvpkg.AfterFunc
	AfterSingle srvpkg.AfterSingleFunc
	On          srvpkg.OnFunc
	OnError     srvpkg.ErrorFunc
}

// Option adjusts a descriptor before it is stored.
type Option func(*HandlerDescriptor)

// Draft targets the draft variant of the class's entity instead of the
// active entity.
func Draft() Option {
	return func(d *HandlerDescriptor) {
		d.IsDraft = true
	}
}

// Prepended converts the descriptor into a prepend registration: the hook is
// installed ahead of all other handlers for the same event, re-dispatched by
// the original handler type.
func Prepended() Option {
	return func(d *HandlerDescriptor) {
		d.Kind = EventKind(d.Type)
		d.Type = HandlerPrepend
	}
}
