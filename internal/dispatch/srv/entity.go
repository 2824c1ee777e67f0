package srv

import "sync"

// DraftsSuffix is appended to an entity name to form its draft variant.
const DraftsSuffix = ".drafts"

// EntityDefinition describes one data entity exposed by the service runtime.
// Definitions are created once at startup and shared; the draft variant is
// built lazily and memoized.
type EntityDefinition struct {
	// Name is the entity name without namespace, for example "Books".
	Name string
	// Namespace qualifies the entity, for example "sap.capire.bookshop".
	Namespace string
	// Keys lists the key element names identifying a single instance.
	Keys []string

	draftOnce sync.Once
	draft     *EntityDefinition
	// IsDraft marks the editable-copy variant of another entity.
	IsDraft bool
}

// QualifiedName returns the namespaced entity name, or the bare name when no
// namespace is set.
func (e *EntityDefinition) QualifiedName() string {
	if e.Namespace == "" {
		return e.Name
	}
	return e.Namespace + "." + e.Name
}

// Drafts returns the draft variant of the entity, used by draft-enabled
// workflows (new/edit/save/cancel). The variant shares namespace and keys
// with its active counterpart.
func (e *EntityDefinition) Drafts() *EntityDefinition {
	if e == nil {
		return nil
	}
	e.draftOnce.Do(func() {
		e.draft = &EntityDefinition{
			Name:      e.Name + DraftsSuffix,
			Namespace: e.Namespace,
			Keys:      e.Keys,
			IsDraft:   true,
		}
	})
	return e.draft
}
