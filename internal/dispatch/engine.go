// Package dispatch implements the engine that maps declaratively registered
// entity handlers onto the lifecycle hooks of a service runtime. The engine
// resolves each configured handler class through the dependency container,
// reads its descriptors from the metadata store, and installs one closure
// per descriptor against the runtime's Before/After/On/Prepend hooks,
// translating between the runtime's calling conventions and the declared
// callback signatures.
package dispatch

import (
	"log/slog"
	"reflect"

	containerpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/container"
	errspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/errors"
	loggingpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/logging"
	metadatapkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/metadata"
	middlewarepkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/middleware"
	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

var serviceType = reflect.TypeOf((*srvpkg.Service)(nil)).Elem()

// Engine wires entity-handler classes onto a service runtime. Classes are
// supplied as constructor functions (or already-built instances) and are
// resolved exactly once per engine.
type Engine struct {
	logger    loggingpkg.ServiceLogger
	classes   []any
	container *containerpkg.Container
	store     *metadatapkg.Store

	// service is the live handle, stored once by the initializer factory.
	service srvpkg.Service
}

// Option customises engine construction.
type Option func(*Engine)

// WithContainer supplies a pre-populated dependency container, letting
// handler constructors inject application services.
func WithContainer(c *containerpkg.Container) Option {
	return func(e *Engine) {
		if c != nil {
			e.container = c
		}
	}
}

// WithMetadataStore overrides the process-wide metadata store. Used by tests
// to stay independent of package-level registrations.
func WithMetadataStore(s *metadatapkg.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// NewEngine constructs an engine for the supplied entity-handler classes.
// Panics on invalid configuration; use TryNewEngine for the error-returning
// variant.
func NewEngine(log loggingpkg.ServiceLogger, classes []any, opts ...Option) *Engine {
	e, err := TryNewEngine(log, classes, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// TryNewEngine constructs an engine for the supplied entity-handler classes.
// An empty class list is a configuration error. A nil logger falls back to
// slog.Default.
func TryNewEngine(log loggingpkg.ServiceLogger, classes []any, opts ...Option) (*Engine, error) {
	if len(classes) == 0 {
		return nil, errspkg.ErrHandlerClassesRequired
	}
	if log == nil {
		log = loggingpkg.NewSlogServiceLogger(slog.Default())
	}

	e := &Engine{
		logger:    log,
		classes:   classes,
		container: containerpkg.New(),
		store:     metadatapkg.Default,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Initialize returns the service-initialization factory the hosting runtime
// invokes with the live service handle. The factory stores the handle,
// binds it into the container so handler classes can inject it, and then
// resolves and registers every configured class in order.
func (e *Engine) Initialize() func(srvpkg.Service) error {
	return func(svc srvpkg.Service) error {
		if svc == nil {
			return errspkg.ErrServiceRequired
		}
		e.storeService(svc)

		// Bind the handle at most once; re-initialization paths may invoke
		// the factory again.
		if !e.container.Has(serviceType) {
			e.container.ProvideValue(svc)
		}

		for _, class := range e.classes {
			if err := e.registerClass(svc, class); err != nil {
				return err
			}
		}
		return nil
	}
}

func (e *Engine) storeService(svc srvpkg.Service) {
	if e.service == nil {
		e.service = svc
	}
}

func (e *Engine) registerClass(svc srvpkg.Service, class any) error {
	instance, err := e.resolveClass(class)
	if err != nil {
		return err
	}

	descriptors := e.store.Handlers(instance)
	if len(descriptors) == 0 {
		return nil
	}

	// Validate the whole class before installing anything, so a malformed
	// descriptor cannot leave the class half-registered.
	for _, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			return err
		}
	}

	for _, d := range descriptors {
		if err := e.registerDescriptor(svc, instance, d); err != nil {
			return err
		}
	}

	reg := middlewarepkg.NewRegistry(e.store, instance, svc, e.logger)
	if reg.HasEntityMiddlewaresAttached() {
		reg.BuildMiddlewares()
	}
	return nil
}

// resolveClass turns a configured class into its singleton instance. A
// constructor function is provided to the container and its result type
// resolved; anything else is treated as an already-built instance and bound
// so dependents can inject it.
func (e *Engine) resolveClass(class any) (any, error) {
	v := reflect.ValueOf(class)
	if v.Kind() == reflect.Func {
		if err := e.container.Provide(class); err != nil {
			return nil, err
		}
		return e.container.Resolve(v.Type().Out(0))
	}

	e.container.ProvideValue(class)
	return class, nil
}
