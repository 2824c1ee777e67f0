package metadata

import (
	"context"
	"testing"

	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

type bookHandler struct{}

type orderHandler struct{}

var books = &srvpkg.EntityDefinition{
	Name:      "Books",
	Namespace: "sap.capire.bookshop",
	Keys:      []string{"ID"},
}

func noopBefore(ctx context.Context, req *srvpkg.Request) error { return nil }

func noopOn(ctx context.Context, req *srvpkg.Request, next srvpkg.Next) (any, error) {
	return next(ctx, req)
}

func TestDefineRecordsDeclarationOrder(t *testing.T) {
	store := NewStore()

	store.Define(&bookHandler{}).
		Entity(books).
		Before(srvpkg.EventCreate, noopBefore).
		After(srvpkg.EventRead, func(ctx context.Context, results any, req *srvpkg.Request) error { return nil }).
		On(srvpkg.EventUpdate, noopOn)

	handlers := store.Handlers(&bookHandler{})
	if len(handlers) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(handlers))
	}
	if handlers[0].Type != HandlerBefore || handlers[0].Event != srvpkg.EventCreate {
		t.Fatalf("unexpected first descriptor: %+v", handlers[0])
	}
	if handlers[1].Type != HandlerAfter || handlers[1].Event != srvpkg.EventRead {
		t.Fatalf("unexpected second descriptor: %+v", handlers[1])
	}
	if handlers[2].Type != HandlerOn || handlers[2].Event != srvpkg.EventUpdate {
		t.Fatalf("unexpected third descriptor: %+v", handlers[2])
	}
}

func TestEntityAssociation(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).Entity(books)

	if got := store.Entity(&bookHandler{}); got != books {
		t.Fatalf("expected entity association, got %v", got)
	}
	if got := store.Entity(&orderHandler{}); got != nil {
		t.Fatalf("expected nil entity for undeclared class, got %v", got)
	}
}

func TestDefineReplacesPreviousDeclaration(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).Entity(books).Before(srvpkg.EventCreate, noopBefore)

	// A constructor re-running its declaration must not stack duplicates.
	store.Define(&bookHandler{}).Entity(books).Before(srvpkg.EventCreate, noopBefore)

	handlers := store.Handlers(&bookHandler{})
	if len(handlers) != 1 {
		t.Fatalf("expected the fresh declaration to replace the old one, got %d descriptors", len(handlers))
	}
	if handlers[0].Event != srvpkg.EventCreate {
		t.Fatalf("unexpected descriptor: %+v", handlers[0])
	}
}

func TestClassIdentityIsConcreteType(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).Entity(books).Before(srvpkg.EventCreate, noopBefore)

	// A different instance of the same type addresses the same metadata.
	other := &bookHandler{}
	if len(store.Handlers(other)) != 1 {
		t.Fatal("expected metadata lookup by concrete type")
	}
	if store.Entity(other) != books {
		t.Fatal("expected entity lookup by concrete type")
	}
}

func TestActionAndFunctionDescriptors(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).
		Entity(books).
		OnAction("submitOrder", noopOn).
		OnFunction("topBooks", noopOn).
		OnBoundAction("withdraw", noopOn).
		OnBoundFunction("availability", noopOn)

	handlers := store.Handlers(&bookHandler{})
	if len(handlers) != 4 {
		t.Fatalf("expected 4 descriptors, got %d", len(handlers))
	}

	tests := []struct {
		event srvpkg.Event
		name  string
	}{
		{srvpkg.EventAction, "submitOrder"},
		{srvpkg.EventFunc, "topBooks"},
		{srvpkg.EventBoundAction, "withdraw"},
		{srvpkg.EventBoundFunc, "availability"},
	}
	for i, tt := range tests {
		if handlers[i].Event != tt.event {
			t.Fatalf("descriptor %d: expected event %q, got %q", i, tt.event, handlers[i].Event)
		}
		if handlers[i].ActionName != tt.name {
			t.Fatalf("descriptor %d: expected action name %q, got %q", i, tt.name, handlers[i].ActionName)
		}
		if handlers[i].Type != HandlerOn {
			t.Fatalf("descriptor %d: expected On type, got %q", i, handlers[i].Type)
		}
	}
}

func TestOnEventDescriptor(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).OnEvent("sap.capire.bookshop.BookCreated", noopOn)

	handlers := store.Handlers(&bookHandler{})
	if len(handlers) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(handlers))
	}
	if handlers[0].Event != srvpkg.EventCustom {
		t.Fatalf("expected EVENT marker, got %q", handlers[0].Event)
	}
	if handlers[0].EventName != "sap.capire.bookshop.BookCreated" {
		t.Fatalf("expected event name, got %q", handlers[0].EventName)
	}
}

func TestOnErrorDescriptor(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).OnError(func(err error, req *srvpkg.Request) error { return nil })

	handlers := store.Handlers(&bookHandler{})
	if len(handlers) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(handlers))
	}
	if handlers[0].Event != srvpkg.EventError {
		t.Fatalf("expected ERROR marker, got %q", handlers[0].Event)
	}
	if handlers[0].OnError == nil {
		t.Fatal("expected error callback to be stored")
	}
}

func TestDraftOption(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).Entity(books).Before(srvpkg.EventDraftSave, noopBefore, Draft())

	handlers := store.Handlers(&bookHandler{})
	if len(handlers) != 1 || !handlers[0].IsDraft {
		t.Fatalf("expected draft descriptor, got %+v", handlers)
	}
}

func TestPrependedOption(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).Entity(books).Before(srvpkg.EventCreate, noopBefore, Prepended())

	handlers := store.Handlers(&bookHandler{})
	if len(handlers) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(handlers))
	}
	d := handlers[0]
	if d.Type != HandlerPrepend {
		t.Fatalf("expected Prepend type, got %q", d.Type)
	}
	if d.Kind != KindBefore {
		t.Fatalf("expected Before kind, got %q", d.Kind)
	}
	if d.Before == nil {
		t.Fatal("expected callback to survive the option")
	}
}

func TestMiddlewaresPreserveOrder(t *testing.T) {
	store := NewStore()
	var order []string

	mwA := func(next srvpkg.Next) srvpkg.Next {
		order = append(order, "a")
		return next
	}
	mwB := func(next srvpkg.Next) srvpkg.Next {
		order = append(order, "b")
		return next
	}

	store.Define(&bookHandler{}).Use(mwA).Use(mwB)

	mws := store.Middlewares(&bookHandler{})
	if len(mws) != 2 {
		t.Fatalf("expected 2 middlewares, got %d", len(mws))
	}
	for _, mw := range mws {
		mw(nil)
	}
	if order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected declaration order, got %v", order)
	}
}

func TestHandlersReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Define(&bookHandler{}).Before(srvpkg.EventCreate, noopBefore)

	first := store.Handlers(&bookHandler{})
	first[0].Event = srvpkg.EventDelete

	second := store.Handlers(&bookHandler{})
	if second[0].Event != srvpkg.EventCreate {
		t.Fatal("expected stored descriptors to be immutable to callers")
	}
}
