// Package dispatcher maps declaratively registered entity handlers onto the
// lifecycle hooks of a data-service runtime. Handler classes declare their
// target entity and hooks once through the Define builder; the Engine then
// resolves each class through a dependency container and installs one
// closure per declared handler on the service's Before, After, On, and
// Prepend registration points.
//
// A minimal setup declares a class from its constructor, builds an engine,
// and hands the initializer to the runtime:
//
//	var Books = &dispatcher.EntityDefinition{
//		Name:      "Books",
//		Namespace: "sap.capire.bookshop",
//		Keys:      []string{"ID"},
//	}
//
//	type BookHandler struct {
//		repo *BookRepository
//	}
//
//	func NewBookHandler(repo *BookRepository) *BookHandler {
//		h := &BookHandler{repo: repo}
//		dispatcher.Define(h).
//			Entity(Books).
//			Before(dispatcher.EventCreate, h.validate).
//			After(dispatcher.EventRead, h.applyDiscount)
//		return h
//	}
//
//	engine := dispatcher.NewEngine(logger, []any{NewBookRepository, NewBookHandler})
//	rt := dispatcher.NewRuntime("CatalogService", logger)
//	if err := engine.Initialize()(rt); err != nil { ... }
//
// Classes are supplied as constructor functions whose parameters are
// resolved from the container, so handlers can inject repositories, other
// handler classes, or the live Service handle itself. Declaring inside the
// constructor binds the method-value callbacks to the wired instance; hooks
// like h.validate see h.repo at request time.
//
// # Hooks
//
// Before hooks validate or enrich the request ahead of the operation. On
// hooks implement or wrap the operation itself and may call next to
// continue the chain. After hooks observe the normalized result: a record
// collection for reads, the one addressed record for single-instance
// variants, or a deleted-exactly-one boolean for deletes. Error hooks run
// synchronously on any failure and may replace the propagated error.
// Handlers declared with the Prepended option register ahead of everything
// else for their event.
//
// # Custom operations and events
//
// OnAction and OnFunction implement unbound operations addressed by name;
// OnBoundAction and OnBoundFunction bind them to the class's entity.
// OnEvent subscribes to namespaced events such as
// "sap.capire.bookshop.BookCreated"; the EventBridge carries those events
// over a messaging transport (Go channels, Kafka, RabbitMQ, or NATS),
// selected through Config and the transport registry.
//
// # Middleware
//
// Use on the builder wraps the on phase of the class's entity with
// interceptor chains. Stock middlewares cover structured logging, panic
// recovery, OpenTelemetry tracing, and Prometheus metrics.
package dispatcher
