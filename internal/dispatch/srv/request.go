package srv

import (
	idspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/ids"
)

// Record is a single entity row as handled by the runtime.
type Record map[string]any

// Request carries one inbound operation through the hook pipeline. A request
// addresses either a collection (no key parameters) or a single instance
// (key parameters present).
type Request struct {
	// ID uniquely identifies the request. Assigned by NewRequest.
	ID string
	// Event is the lifecycle event or custom event name being processed.
	Event Event
	// Entity is the target entity definition, nil for unbound operations.
	Entity *EntityDefinition
	// Data holds the request payload (entity data or action parameters).
	Data Record
	// Keys holds the key parameters addressing a single instance. Empty for
	// collection requests.
	Keys Record
	// Headers carries transport metadata such as correlation identifiers.
	Headers Headers
}

// NewRequest constructs a request with a fresh ULID identifier.
func NewRequest(event Event, entity *EntityDefinition) *Request {
	return &Request{
		ID:      idspkg.CreateULID(),
		Event:   event,
		Entity:  entity,
		Headers: Headers{},
	}
}

// IsSingleInstance reports whether the request addresses one specific record
// via key parameters rather than a collection.
func (r *Request) IsSingleInstance() bool {
	return len(r.Keys) > 0
}

// WithData sets the request payload and returns the request for chaining.
func (r *Request) WithData(data Record) *Request {
	r.Data = data
	return r
}

// WithKeys sets the key parameters and returns the request for chaining.
func (r *Request) WithKeys(keys Record) *Request {
	r.Keys = keys
	return r
}
