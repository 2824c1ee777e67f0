package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	containerpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/container"
	errspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/errors"
	metadatapkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/metadata"
	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

var books = &srvpkg.EntityDefinition{
	Name:      "Books",
	Namespace: "sap.capire.bookshop",
	Keys:      []string{"ID"},
}

// fakeService records every hook registration so tests can assert on the
// exact registration surface the engine programs.
type fakeService struct {
	before []string
	after  []string
	on     []string
	errs   int
}

func hookLabel(key string, entity *srvpkg.EntityDefinition) string {
	if entity == nil {
		return key
	}
	return key + "@" + entity.QualifiedName()
}

func (f *fakeService) Before(event srvpkg.Event, entity *srvpkg.EntityDefinition, fn srvpkg.BeforeFunc) {
	f.before = append(f.before, hookLabel(string(event), entity))
}

func (f *fakeService) After(event srvpkg.Event, entity *srvpkg.EntityDefinition, fn srvpkg.AfterFunc) {
	f.after = append(f.after, hookLabel(string(event), entity))
}

func (f *fakeService) On(key string, entity *srvpkg.EntityDefinition, fn srvpkg.OnFunc) {
	f.on = append(f.on, hookLabel(key, entity))
}

func (f *fakeService) OnError(fn srvpkg.ErrorFunc) {
	f.errs++
}

func (f *fakeService) Prepend(fn func(srvpkg.Service)) {
	fn(f)
}

func (f *fakeService) registrations() int {
	return len(f.before) + len(f.after) + len(f.on) + f.errs
}

type catalogHandler struct{}

func newCatalogHandler() *catalogHandler { return &catalogHandler{} }

type catalogRepo struct {
	dsn string
}

func newCatalogRepo() *catalogRepo { return &catalogRepo{dsn: "memory"} }

// stockHandler declares its hooks from the constructor, so the method-value
// callbacks are bound to the wired instance.
type stockHandler struct {
	repo *catalogRepo
	seen []string
}

func (h *stockHandler) recordSource(ctx context.Context, req *srvpkg.Request) error {
	if h.repo == nil {
		return errors.New("repository not injected")
	}
	h.seen = append(h.seen, h.repo.dsn)
	return nil
}

func noopBefore(ctx context.Context, req *srvpkg.Request) error { return nil }

func noopAfter(ctx context.Context, results any, req *srvpkg.Request) error { return nil }

func noopOn(ctx context.Context, req *srvpkg.Request, next srvpkg.Next) (any, error) {
	return next(ctx, req)
}

func initialize(t *testing.T, store *metadatapkg.Store, svc srvpkg.Service, classes ...any) *Engine {
	t.Helper()
	engine, err := TryNewEngine(nil, classes, WithMetadataStore(store))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}
	if err := engine.Initialize()(svc); err != nil {
		t.Fatalf("initialization failed: %v", err)
	}
	return engine
}

func TestEveryDescriptorRegistersExactlyOnce(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Entity(books).
		Before(srvpkg.EventCreate, noopBefore).
		After(srvpkg.EventRead, noopAfter).
		AfterSingle(srvpkg.EventRead, func(ctx context.Context, record srvpkg.Record, req *srvpkg.Request) error { return nil }).
		On(srvpkg.EventUpdate, noopOn).
		OnEvent("sap.capire.bookshop.BookCreated", noopOn).
		OnError(func(err error, req *srvpkg.Request) error { return nil })

	svc := &fakeService{}
	initialize(t, store, svc, newCatalogHandler)

	if got := svc.registrations(); got != 6 {
		t.Fatalf("expected 6 registrations, got %d (before=%v after=%v on=%v errs=%d)",
			got, svc.before, svc.after, svc.on, svc.errs)
	}
	if len(svc.before) != 1 || svc.before[0] != "CREATE@sap.capire.bookshop.Books" {
		t.Fatalf("unexpected before registrations: %v", svc.before)
	}
	if len(svc.after) != 2 {
		t.Fatalf("expected After and AfterSingle on the after surface, got %v", svc.after)
	}
	if len(svc.on) != 2 {
		t.Fatalf("unexpected on registrations: %v", svc.on)
	}
}

func TestEventKeyTruncation(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		OnEvent("sap.capire.bookshop.BookCreated", noopOn)

	svc := &fakeService{}
	initialize(t, store, svc, newCatalogHandler)

	if len(svc.on) != 1 || svc.on[0] != "sap.capire.bookshop" {
		t.Fatalf("expected event hook under truncated key, got %v", svc.on)
	}
}

func TestActionRegistrationKeys(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Entity(books).
		OnAction("submitOrder", noopOn).
		OnFunction("topBooks", noopOn).
		OnBoundAction("withdraw", noopOn).
		OnBoundFunction("availability", noopOn)

	svc := &fakeService{}
	initialize(t, store, svc, newCatalogHandler)

	want := []string{
		"submitOrder",
		"topBooks",
		"withdraw@sap.capire.bookshop.Books",
		"availability@sap.capire.bookshop.Books",
	}
	if len(svc.on) != len(want) {
		t.Fatalf("expected %v, got %v", want, svc.on)
	}
	for i := range want {
		if svc.on[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, svc.on)
		}
	}
}

func TestMissingEntitySkipsSilently(t *testing.T) {
	store := metadatapkg.NewStore()
	// No Entity association: entity-targeted hooks cannot bind.
	store.Define(&catalogHandler{}).
		Before(srvpkg.EventCreate, noopBefore).
		After(srvpkg.EventRead, noopAfter).
		On(srvpkg.EventUpdate, noopOn)

	svc := &fakeService{}
	initialize(t, store, svc, newCatalogHandler)

	if got := svc.registrations(); got != 0 {
		t.Fatalf("expected no registrations without entity metadata, got %d", got)
	}
}

func TestMissingEntityDoesNotBlockUnboundHandlers(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Before(srvpkg.EventCreate, noopBefore).
		OnAction("submitOrder", noopOn)

	svc := &fakeService{}
	initialize(t, store, svc, newCatalogHandler)

	if len(svc.on) != 1 || svc.on[0] != "submitOrder" {
		t.Fatalf("expected the unbound action to register, got %v", svc.on)
	}
	if len(svc.before) != 0 {
		t.Fatalf("expected entity-bound hook to be skipped, got %v", svc.before)
	}
}

func TestDraftDescriptorTargetsDraftEntity(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Entity(books).
		Before(srvpkg.EventDraftSave, noopBefore, metadatapkg.Draft())

	svc := &fakeService{}
	initialize(t, store, svc, newCatalogHandler)

	if len(svc.before) != 1 || svc.before[0] != "SAVE@sap.capire.bookshop.Books.drafts" {
		t.Fatalf("expected draft-entity registration, got %v", svc.before)
	}
}

func TestDeleteResultNormalization(t *testing.T) {
	tests := []struct {
		name     string
		rawCount any
		want     bool
	}{
		{name: "one row deleted", rawCount: 1, want: true},
		{name: "nothing deleted", rawCount: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := metadatapkg.NewStore()
			var got any
			store.Define(&catalogHandler{}).
				Entity(books).
				After(srvpkg.EventDelete, func(ctx context.Context, results any, req *srvpkg.Request) error {
					got = results
					return nil
				})

			rt := srvpkg.NewRuntime("CatalogService", nil)
			initialize(t, store, rt, newCatalogHandler)

			req := srvpkg.NewRequest(srvpkg.EventDelete, books).WithKeys(srvpkg.Record{"ID": 201})
			base := func(ctx context.Context, req *srvpkg.Request) (any, error) {
				return tt.rawCount, nil
			}
			if _, err := rt.HandleWith(context.Background(), req, base); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected callback to receive %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAfterReadSharesCollection(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Entity(books).
		After(srvpkg.EventRead, func(ctx context.Context, results any, req *srvpkg.Request) error {
			for _, rec := range results.([]srvpkg.Record) {
				rec["discount"] = "11%"
			}
			return nil
		})

	rt := srvpkg.NewRuntime("CatalogService", nil)
	initialize(t, store, rt, newCatalogHandler)

	data := []srvpkg.Record{{"ID": 201}, {"ID": 207}}
	req := srvpkg.NewRequest(srvpkg.EventRead, books)
	base := func(ctx context.Context, req *srvpkg.Request) (any, error) {
		return data, nil
	}
	if _, err := rt.HandleWith(context.Background(), req, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data[0]["discount"] != "11%" || data[1]["discount"] != "11%" {
		t.Fatalf("expected callback mutations on the shared collection, got %v", data)
	}
}

func TestAfterSingleInstanceDelivery(t *testing.T) {
	store := metadatapkg.NewStore()
	var got srvpkg.Record
	calls := 0
	store.Define(&catalogHandler{}).
		Entity(books).
		AfterSingle(srvpkg.EventRead, func(ctx context.Context, record srvpkg.Record, req *srvpkg.Request) error {
			calls++
			got = record
			return nil
		})

	rt := srvpkg.NewRuntime("CatalogService", nil)
	initialize(t, store, rt, newCatalogHandler)

	base := func(ctx context.Context, req *srvpkg.Request) (any, error) {
		return []srvpkg.Record{{"ID": 201, "title": "Wuthering Heights"}}, nil
	}

	// Single-instance request: callback fires with the one record.
	single := srvpkg.NewRequest(srvpkg.EventRead, books).WithKeys(srvpkg.Record{"ID": 201})
	if _, err := rt.HandleWith(context.Background(), single, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one invocation, got %d", calls)
	}
	if got["title"] != "Wuthering Heights" {
		t.Fatalf("expected the addressed record, got %v", got)
	}

	// Collection request on the same event: callback stays silent.
	collection := srvpkg.NewRequest(srvpkg.EventRead, books)
	if _, err := rt.HandleWith(context.Background(), collection, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected collection request to skip the callback, got %d calls", calls)
	}
}

func TestPrependedHandlerRunsFirst(t *testing.T) {
	store := metadatapkg.NewStore()
	var order []string
	store.Define(&catalogHandler{}).
		Entity(books).
		Before(srvpkg.EventCreate, func(ctx context.Context, req *srvpkg.Request) error {
			order = append(order, "regular")
			return nil
		}).
		Before(srvpkg.EventCreate, func(ctx context.Context, req *srvpkg.Request) error {
			order = append(order, "prepended")
			return nil
		}, metadatapkg.Prepended())

	rt := srvpkg.NewRuntime("CatalogService", nil)
	initialize(t, store, rt, newCatalogHandler)

	req := srvpkg.NewRequest(srvpkg.EventCreate, books)
	if _, err := rt.Handle(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "prepended" || order[1] != "regular" {
		t.Fatalf("expected prepended handler to run first, got %v", order)
	}
}

func TestUnknownPrependKindIsFatal(t *testing.T) {
	engine, err := TryNewEngine(nil, []any{newCatalogHandler}, WithMetadataStore(metadatapkg.NewStore()))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	svc := &fakeService{}
	d := metadatapkg.HandlerDescriptor{
		Event:  srvpkg.EventCreate,
		Type:   metadatapkg.HandlerPrepend,
		Kind:   metadatapkg.EventKind("Around"),
		Before: noopBefore,
	}

	err = engine.registerDescriptor(svc, &catalogHandler{}, d)
	if err == nil {
		t.Fatal("expected fatal error for unknown prepend kind")
	}
	var cve errspkg.ConfigValidationError
	if !errors.As(err, &cve) {
		t.Fatalf("expected ConfigValidationError, got %T: %v", err, err)
	}
	if svc.registrations() != 0 {
		t.Fatal("expected no hooks to be installed for the malformed descriptor")
	}
}

func TestUnknownHandlerTypeIsFatal(t *testing.T) {
	engine, err := TryNewEngine(nil, []any{newCatalogHandler}, WithMetadataStore(metadatapkg.NewStore()))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	d := metadatapkg.HandlerDescriptor{
		Event: srvpkg.EventCreate,
		Type:  metadatapkg.HandlerType("Around"),
	}
	if err := engine.registerDescriptor(&fakeService{}, &catalogHandler{}, d); err == nil {
		t.Fatal("expected fatal error for unknown handler type")
	}
}

func TestMissingCallbackIsFatal(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Entity(books).
		Before(srvpkg.EventCreate, nil)

	engine, err := TryNewEngine(nil, []any{newCatalogHandler}, WithMetadataStore(store))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	err = engine.Initialize()(&fakeService{})
	if !errors.Is(err, errspkg.ErrCallbackRequired) {
		t.Fatalf("expected ErrCallbackRequired, got %v", err)
	}
}

func TestMissingActionNameIsFatal(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		OnAction("", noopOn)

	engine, err := TryNewEngine(nil, []any{newCatalogHandler}, WithMetadataStore(store))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	err = engine.Initialize()(&fakeService{})
	if !errors.Is(err, errspkg.ErrActionNameRequired) {
		t.Fatalf("expected ErrActionNameRequired, got %v", err)
	}
}

func TestClassesResolveOnce(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Entity(books).
		Before(srvpkg.EventCreate, noopBefore)

	calls := 0
	ctor := func() *catalogHandler {
		calls++
		return &catalogHandler{}
	}

	type reviewHandler struct {
		catalog *catalogHandler
	}
	newReviewHandler := func(c *catalogHandler) *reviewHandler {
		return &reviewHandler{catalog: c}
	}

	initialize(t, store, &fakeService{}, ctor, newReviewHandler)

	if calls != 1 {
		t.Fatalf("expected one construction per class, got %d", calls)
	}
}

func TestServiceHandleInjectable(t *testing.T) {
	store := metadatapkg.NewStore()

	type wiredHandler struct {
		svc srvpkg.Service
	}
	newWiredHandler := func(svc srvpkg.Service) *wiredHandler {
		return &wiredHandler{svc: svc}
	}
	store.Define(&wiredHandler{}).
		Entity(books).
		Before(srvpkg.EventCreate, noopBefore)

	engine, err := TryNewEngine(nil, []any{newWiredHandler}, WithMetadataStore(store))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	svc := &fakeService{}
	if err := engine.Initialize()(svc); err != nil {
		t.Fatalf("initialization failed: %v", err)
	}

	instance, err := containerpkg.Resolve[*wiredHandler](engine.container)
	if err != nil {
		t.Fatalf("resolving handler: %v", err)
	}
	if instance.svc != srvpkg.Service(svc) {
		t.Fatal("expected the live service handle to be injected")
	}
}

func TestCallbacksBoundToResolvedInstance(t *testing.T) {
	store := metadatapkg.NewStore()
	newStockHandler := func(repo *catalogRepo) *stockHandler {
		h := &stockHandler{repo: repo}
		store.Define(h).
			Entity(books).
			Before(srvpkg.EventCreate, h.recordSource)
		return h
	}

	rt := srvpkg.NewRuntime("CatalogService", nil)
	engine := initialize(t, store, rt, newCatalogRepo, newStockHandler)

	req := srvpkg.NewRequest(srvpkg.EventCreate, books)
	if _, err := rt.Handle(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := containerpkg.Resolve[*stockHandler](engine.container)
	if err != nil {
		t.Fatalf("resolving handler: %v", err)
	}
	if len(resolved.seen) != 1 || resolved.seen[0] != "memory" {
		t.Fatalf("expected hook to observe the injected repository, got %v", resolved.seen)
	}
}

func TestNilServiceRejected(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).Entity(books).Before(srvpkg.EventCreate, noopBefore)

	engine, err := TryNewEngine(nil, []any{newCatalogHandler}, WithMetadataStore(store))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	if err := engine.Initialize()(nil); !errors.Is(err, errspkg.ErrServiceRequired) {
		t.Fatalf("expected ErrServiceRequired, got %v", err)
	}
}

func TestEmptyClassListRejected(t *testing.T) {
	if _, err := TryNewEngine(nil, nil); !errors.Is(err, errspkg.ErrHandlerClassesRequired) {
		t.Fatalf("expected ErrHandlerClassesRequired, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected NewEngine to panic on empty class list")
		}
	}()
	NewEngine(nil, nil)
}

func TestReinitializationIsIdempotent(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).Entity(books).Before(srvpkg.EventCreate, noopBefore)

	engine, err := TryNewEngine(nil, []any{newCatalogHandler}, WithMetadataStore(store))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	svc := &fakeService{}
	init := engine.Initialize()
	if err := init(svc); err != nil {
		t.Fatalf("first initialization failed: %v", err)
	}
	if err := init(svc); err != nil {
		t.Fatalf("re-initialization failed: %v", err)
	}
}

func TestConstructorErrorSurfaces(t *testing.T) {
	store := metadatapkg.NewStore()
	boom := errors.New("wiring failed")
	ctor := func() (*catalogHandler, error) { return nil, boom }

	engine, err := TryNewEngine(nil, []any{ctor}, WithMetadataStore(store))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	err = engine.Initialize()(&fakeService{})
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("expected constructor error to surface, got %v", err)
	}
}

func TestErrorHookRegistrationEndToEnd(t *testing.T) {
	store := metadatapkg.NewStore()
	friendly := errors.New("please try again")
	store.Define(&catalogHandler{}).
		Entity(books).
		Before(srvpkg.EventCreate, func(ctx context.Context, req *srvpkg.Request) error {
			return fmt.Errorf("stock exhausted")
		}).
		OnError(func(err error, req *srvpkg.Request) error {
			return friendly
		})

	rt := srvpkg.NewRuntime("CatalogService", nil)
	initialize(t, store, rt, newCatalogHandler)

	req := srvpkg.NewRequest(srvpkg.EventCreate, books)
	_, err := rt.Handle(context.Background(), req)
	if !errors.Is(err, friendly) {
		t.Fatalf("expected replaced error, got %v", err)
	}
}

func TestEntityMiddlewaresInstalled(t *testing.T) {
	store := metadatapkg.NewStore()
	mwRan := false
	store.Define(&catalogHandler{}).
		Entity(books).
		Use(func(next srvpkg.Next) srvpkg.Next {
			return func(ctx context.Context, req *srvpkg.Request) (any, error) {
				mwRan = true
				return next(ctx, req)
			}
		}).
		On(srvpkg.EventRead, noopOn)

	rt := srvpkg.NewRuntime("CatalogService", nil)
	initialize(t, store, rt, newCatalogHandler)

	req := srvpkg.NewRequest(srvpkg.EventRead, books)
	if _, err := rt.Handle(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mwRan {
		t.Fatal("expected declared middleware to wrap the on phase")
	}
}

func TestMiddlewaresSkippedWithoutInstallerSupport(t *testing.T) {
	store := metadatapkg.NewStore()
	store.Define(&catalogHandler{}).
		Entity(books).
		Use(func(next srvpkg.Next) srvpkg.Next { return next }).
		On(srvpkg.EventRead, noopOn)

	// fakeService does not implement MiddlewareInstaller; initialization
	// must still succeed.
	svc := &fakeService{}
	initialize(t, store, svc, newCatalogHandler)

	if len(svc.on) != 1 {
		t.Fatalf("expected handler registration to proceed, got %v", svc.on)
	}
}
