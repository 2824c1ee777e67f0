package dispatcher

import (
	"context"

	dispatchpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch"
	configpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/config"
	containerpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/container"
	errspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/errors"
	idspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/ids"
	jsoncodec "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/jsoncodec"
	loggingpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/logging"
	metadatapkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/metadata"
	middlewarepkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/middleware"
	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
	transportpkg "github.com/lianas10tb/cds-ts-dispatcher/transport"
)

type (
	Config = configpkg.Config

	Engine       = dispatchpkg.Engine
	EngineOption = dispatchpkg.Option

	Service             = srvpkg.Service
	MiddlewareInstaller = srvpkg.MiddlewareInstaller
	Runtime             = srvpkg.Runtime
	EventBridge         = srvpkg.EventBridge
	EntityDefinition    = srvpkg.EntityDefinition
	Request             = srvpkg.Request
	Record              = srvpkg.Record
	Headers             = srvpkg.Headers
	Event               = srvpkg.Event

	Next            = srvpkg.Next
	BeforeFunc      = srvpkg.BeforeFunc
	AfterFunc       = srvpkg.AfterFunc
	AfterSingleFunc = srvpkg.AfterSingleFunc
	OnFunc          = srvpkg.OnFunc
	ErrorFunc       = srvpkg.ErrorFunc
	Middleware      = srvpkg.Middleware

	MetadataStore     = metadatapkg.Store
	HandlerBuilder    = metadatapkg.Builder
	HandlerDescriptor = metadatapkg.HandlerDescriptor
	HandlerType       = metadatapkg.HandlerType
	EventKind         = metadatapkg.EventKind
	DescriptorOption  = metadatapkg.Option

	Container = containerpkg.Container

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types. Import individual backends via:
	//   _ "github.com/lianas10tb/cds-ts-dispatcher/transport/channel"
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

// Lifecycle events.
const (
	EventCreate = srvpkg.EventCreate
	EventRead   = srvpkg.EventRead
	EventUpdate = srvpkg.EventUpdate
	EventDelete = srvpkg.EventDelete

	EventDraftNew    = srvpkg.EventDraftNew
	EventDraftEdit   = srvpkg.EventDraftEdit
	EventDraftSave   = srvpkg.EventDraftSave
	EventDraftCancel = srvpkg.EventDraftCancel

	EventAction      = srvpkg.EventAction
	EventFunc        = srvpkg.EventFunc
	EventBoundAction = srvpkg.EventBoundAction
	EventBoundFunc   = srvpkg.EventBoundFunc
	EventCustom      = srvpkg.EventCustom
	EventError       = srvpkg.EventError
)

var (
	NewEngine         = dispatchpkg.NewEngine
	TryNewEngine      = dispatchpkg.TryNewEngine
	WithContainer     = dispatchpkg.WithContainer
	WithMetadataStore = dispatchpkg.WithMetadataStore

	ValidateConfig = configpkg.ValidateConfig

	NewMetadataStore     = metadatapkg.NewStore
	DefaultMetadataStore = metadatapkg.Default

	// Descriptor options.
	Draft     = metadatapkg.Draft
	Prepended = metadatapkg.Prepended

	NewContainer = containerpkg.New

	NewRuntime     = srvpkg.NewRuntime
	NewRequest     = srvpkg.NewRequest
	NewEventBridge = srvpkg.NewEventBridge
	TopicForEvent  = srvpkg.TopicForEvent

	// Stock entity middlewares.
	LoggingMiddleware   = middlewarepkg.Logging
	RecovererMiddleware = middlewarepkg.Recoverer
	TracerMiddleware    = middlewarepkg.Tracer
	MetricsMiddleware   = middlewarepkg.Metrics

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrServiceRequired        = errspkg.ErrServiceRequired
	ErrHandlerClassesRequired = errspkg.ErrHandlerClassesRequired
	ErrCallbackRequired       = errspkg.ErrCallbackRequired
	ErrActionNameRequired     = errspkg.ErrActionNameRequired
	ErrEventNameRequired      = errspkg.ErrEventNameRequired
	ErrEntityRequired         = errspkg.ErrEntityRequired
	ErrConstructorRequired    = errspkg.ErrConstructorRequired
	ErrLoggerRequired         = errspkg.ErrLoggerRequired
	ErrPublisherRequired      = errspkg.ErrPublisherRequired
	ErrSubscriberRequired     = errspkg.ErrSubscriberRequired
	ErrTopicRequired          = errspkg.ErrTopicRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter

	CreateULID = idspkg.CreateULID

	// Modular transport registry.
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities
)

// Define starts the handler declaration for the given class on the default
// metadata store, replacing any previous declaration. Call it from the class
// constructor with the wired instance: method-value callbacks declared there
// are bound to that instance, so hooks can reach its injected dependencies.
func Define(class any) *HandlerBuilder {
	return metadatapkg.Default.Define(class)
}

// DefineOn starts the class's handler declaration on a specific store
// instead of the process-wide default, with the same replacement semantics
// as Define. Pair it with WithMetadataStore on the engine.
func DefineOn(store *MetadataStore, class any) *HandlerBuilder {
	return store.Define(class)
}

// Resolve is the typed convenience form of Container.Resolve.
func Resolve[T any](c *Container) (T, error) {
	return containerpkg.Resolve[T](c)
}

// NewEventBridgeFromConfig builds the messaging transport selected by cfg
// through the transport registry and wires it to the runtime as an event
// bridge. The selected transport package must be imported so it registers
// itself.
func NewEventBridgeFromConfig(ctx context.Context, rt *Runtime, cfg *Config, log ServiceLogger) (*EventBridge, error) {
	if err := configpkg.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	tr, err := transportpkg.Build(ctx, cfg, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		return nil, err
	}
	return srvpkg.NewEventBridge(rt, tr.Publisher, tr.Subscriber, log), nil
}
