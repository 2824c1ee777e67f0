package dispatch

import (
	"context"
	"fmt"

	errspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/errors"
	loggingpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/logging"
	metadatapkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/metadata"
	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

// registerDescriptor installs one descriptor against the runtime. Malformed
// descriptors fail fast with a ConfigValidationError; descriptors whose
// entity metadata is missing are skipped without error, since unrelated
// handlers must not be blocked by one class's incomplete metadata.
func (e *Engine) registerDescriptor(svc srvpkg.Service, instance any, d metadatapkg.HandlerDescriptor) error {
	if err := validateDescriptor(d); err != nil {
		return err
	}

	switch d.Type {
	case metadatapkg.HandlerBefore:
		e.registerBefore(svc, instance, d)
	case metadatapkg.HandlerAfter:
		e.registerAfter(svc, instance, d)
	case metadatapkg.HandlerAfterSingleInstance:
		e.registerAfterSingle(svc, instance, d)
	case metadatapkg.HandlerOn:
		e.registerOn(svc, instance, d)
	case metadatapkg.HandlerPrepend:
		e.registerPrepend(svc, instance, d)
	default:
		return errspkg.NewConfigValidationError(fmt.Errorf("unknown handler type %q", d.Type))
	}
	return nil
}

// entityFor resolves the target entity of a descriptor, substituting the
// draft variant when requested. Returns nil when the class has no entity
// association.
func (e *Engine) entityFor(instance any, d metadatapkg.HandlerDescriptor) *srvpkg.EntityDefinition {
	entity := e.store.Entity(instance)
	if d.IsDraft {
		entity = entity.Drafts()
	}
	return entity
}

func (e *Engine) skipMissingEntity(d metadatapkg.HandlerDescriptor) {
	e.logger.Debug("Skipping handler without entity metadata", loggingpkg.LogFields{
		"handler_type": string(d.Type),
		"event":        string(d.Event),
	})
}

func (e *Engine) registerBefore(svc srvpkg.Service, instance any, d metadatapkg.HandlerDescriptor) {
	entity := e.entityFor(instance, d)
	if entity == nil {
		e.skipMissingEntity(d)
		return
	}
	svc.Before(d.Event, entity, d.Before)
}

func (e *Engine) registerAfter(svc srvpkg.Service, instance any, d metadatapkg.HandlerDescriptor) {
	entity := e.entityFor(instance, d)
	if entity == nil {
		e.skipMissingEntity(d)
		return
	}

	cb := d.After
	svc.After(d.Event, entity, func(ctx context.Context, results any, req *srvpkg.Request) error {
		return cb(ctx, normalizeResult(results), req)
	})
}

func (e *Engine) registerAfterSingle(svc srvpkg.Service, instance any, d metadatapkg.HandlerDescriptor) {
	entity := e.entityFor(instance, d)
	if entity == nil {
		e.skipMissingEntity(d)
		return
	}

	cb := d.AfterSingle
	svc.After(d.Event, entity, func(ctx context.Context, results any, req *srvpkg.Request) error {
		// Collection reads on the same event pass through untouched.
		if !req.IsSingleInstance() {
			return nil
		}
		return cb(ctx, firstRecord(results), req)
	})
}

func (e *Engine) registerOn(svc srvpkg.Service, instance any, d metadatapkg.HandlerDescriptor) {
	switch d.Event {
	case srvpkg.EventAction, srvpkg.EventFunc:
		svc.On(d.ActionName, nil, d.On)
	case srvpkg.EventBoundAction, srvpkg.EventBoundFunc:
		entity := e.entityFor(instance, d)
		if entity == nil {
			e.skipMissingEntity(d)
			return
		}
		svc.On(d.ActionName, entity, d.On)
	case srvpkg.EventCustom:
		svc.On(srvpkg.TopicForEvent(d.EventName), nil, d.On)
	case srvpkg.EventError:
		svc.OnError(d.OnError)
	default:
		entity := e.entityFor(instance, d)
		if entity == nil {
			e.skipMissingEntity(d)
			return
		}
		svc.On(string(d.Event), entity, d.On)
	}
}

// registerPrepend defers the real registration so the runtime can run it
// ahead of all other handler installation, re-dispatched by the declared
// event kind. The kind is validated before deferring; an unknown kind is a
// fatal configuration error and installs nothing.
func (e *Engine) registerPrepend(svc srvpkg.Service, instance any, d metadatapkg.HandlerDescriptor) {
	redispatch := d
	redispatch.Kind = ""

	switch d.Kind {
	case metadatapkg.KindBefore:
		redispatch.Type = metadatapkg.HandlerBefore
	case metadatapkg.KindAfter:
		redispatch.Type = metadatapkg.HandlerAfter
	case metadatapkg.KindAfterSingleInstance:
		redispatch.Type = metadatapkg.HandlerAfterSingleInstance
	case metadatapkg.KindOn:
		redispatch.Type = metadatapkg.HandlerOn
	}

	svc.Prepend(func(s srvpkg.Service) {
		// The descriptor was validated up front, so re-dispatch cannot fail.
		_ = e.registerDescriptor(s, instance, redispatch)
	})
}

// validateDescriptor rejects descriptors missing the fields their handler
// type requires. Errors are fatal and name the offending descriptor.
func validateDescriptor(d metadatapkg.HandlerDescriptor) error {
	switch d.Type {
	case metadatapkg.HandlerBefore:
		if d.Before == nil {
			return callbackMissing(d)
		}
	case metadatapkg.HandlerAfter:
		if d.After == nil {
			return callbackMissing(d)
		}
	case metadatapkg.HandlerAfterSingleInstance:
		if d.AfterSingle == nil {
			return callbackMissing(d)
		}
	case metadatapkg.HandlerOn:
		return validateOn(d)
	case metadatapkg.HandlerPrepend:
		return validatePrepend(d)
	default:
		return errspkg.NewConfigValidationError(fmt.Errorf("unknown handler type %q", d.Type))
	}
	return nil
}

func validateOn(d metadatapkg.HandlerDescriptor) error {
	switch d.Event {
	case srvpkg.EventAction, srvpkg.EventFunc, srvpkg.EventBoundAction, srvpkg.EventBoundFunc:
		if d.ActionName == "" {
			return errspkg.NewConfigValidationError(fmt.Errorf("%w: %s handler", errspkg.ErrActionNameRequired, d.Event))
		}
		if d.On == nil {
			return callbackMissing(d)
		}
	case srvpkg.EventCustom:
		if d.EventName == "" {
			return errspkg.NewConfigValidationError(fmt.Errorf("%w: EVENT handler", errspkg.ErrEventNameRequired))
		}
		if d.On == nil {
			return callbackMissing(d)
		}
	case srvpkg.EventError:
		if d.OnError == nil {
			return callbackMissing(d)
		}
	default:
		if d.On == nil {
			return callbackMissing(d)
		}
	}
	return nil
}

func validatePrepend(d metadatapkg.HandlerDescriptor) error {
	inner := d
	inner.Kind = ""

	switch d.Kind {
	case metadatapkg.KindBefore:
		inner.Type = metadatapkg.HandlerBefore
	case metadatapkg.KindAfter:
		inner.Type = metadatapkg.HandlerAfter
	case metadatapkg.KindAfterSingleInstance:
		inner.Type = metadatapkg.HandlerAfterSingleInstance
	case metadatapkg.KindOn:
		inner.Type = metadatapkg.HandlerOn
	default:
		return errspkg.NewConfigValidationError(fmt.Errorf("unknown prepend event kind %q", d.Kind))
	}

	return validateDescriptor(inner)
}

func callbackMissing(d metadatapkg.HandlerDescriptor) error {
	return errspkg.NewConfigValidationError(fmt.Errorf("%w: %s handler for event %q", errspkg.ErrCallbackRequired, d.Type, d.Event))
}
