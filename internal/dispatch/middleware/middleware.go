// Package middleware installs per-entity interceptor chains around the on
// phase of request processing and ships the stock chain: logging, panic
// recovery, tracing, and metrics.
package middleware

import (
	"context"
	"fmt"

	loggingpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/logging"
	metadatapkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/metadata"
	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

// Registry installs the middleware bindings of one resolved handler class
// onto the service runtime. The dispatch engine consults it after handler
// registration for each class.
type Registry struct {
	store    *metadatapkg.Store
	instance any
	service  srvpkg.Service
	logger   loggingpkg.ServiceLogger
}

// NewRegistry creates the registry for one resolved class instance.
func NewRegistry(store *metadatapkg.Store, instance any, service srvpkg.Service, log loggingpkg.ServiceLogger) *Registry {
	return &Registry{store: store, instance: instance, service: service, logger: log}
}

// HasEntityMiddlewaresAttached reports whether the class declared any
// middleware bindings.
func (r *Registry) HasEntityMiddlewaresAttached() bool {
	return len(r.store.Middlewares(r.instance)) > 0
}

// BuildMiddlewares installs the declared chain, outermost first, around the
// on phase of the class's entity. Classes without an entity association or
// runtimes without middleware support are skipped.
func (r *Registry) BuildMiddlewares() {
	mws := r.store.Middlewares(r.instance)
	if len(mws) == 0 {
		return
	}

	entity := r.store.Entity(r.instance)
	if entity == nil {
		r.logger.Debug("Skipping middlewares for class without entity", loggingpkg.LogFields{
			"class": fmt.Sprintf("%T", r.instance),
		})
		return
	}

	installer, ok := r.service.(srvpkg.MiddlewareInstaller)
	if !ok {
		r.logger.Debug("Service runtime does not support entity middlewares", loggingpkg.LogFields{
			"entity": entity.QualifiedName(),
		})
		return
	}

	installer.Use(entity, mws...)
}

// Recoverer converts panics inside the on phase into handler errors so they
// flow through the runtime's error hooks.
func Recoverer() srvpkg.Middleware {
	return func(next srvpkg.Next) srvpkg.Next {
		return func(ctx context.Context, req *srvpkg.Request) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("dispatcher: handler panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}
