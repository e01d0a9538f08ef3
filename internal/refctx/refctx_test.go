package refctx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

type memStore struct {
	mu       sync.Mutex
	contexts map[uuid.UUID][]domain.ReferenceContext
}

func newMemStore() *memStore {
	return &memStore{contexts: make(map[uuid.UUID][]domain.ReferenceContext)}
}

func (s *memStore) Create(_ context.Context, rc domain.ReferenceContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[rc.ConversationID] = append([]domain.ReferenceContext{rc}, s.contexts[rc.ConversationID]...)
	return nil
}

func (s *memStore) LiveForConversation(_ context.Context, conversationID uuid.UUID, now time.Time) ([]domain.ReferenceContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ReferenceContext
	for _, rc := range s.contexts[conversationID] {
		if rc.Live(now) {
			out = append(out, rc)
		}
	}
	return out, nil
}

func productItems() []domain.ReferenceItem {
	return []domain.ReferenceItem{
		{Index: 1, EntityID: uuid.New(), EntityKind: "product", Label: "Red Mug", Attributes: map[string]string{"color": "red"}},
		{Index: 2, EntityID: uuid.New(), EntityKind: "product", Label: "Blue Mug", Attributes: map[string]string{"color": "blue"}},
		{Index: 3, EntityID: uuid.New(), EntityKind: "product", Label: "Green Mug", Attributes: map[string]string{"color": "green"}},
	}
}

func TestResolveNumeric(t *testing.T) {
	store := newMemStore()
	mgr := New(store)
	conv := uuid.New()
	now := time.Now()
	items := productItems()

	if err := mgr.Register(context.Background(), conv, domain.ReferenceListProducts, items, now); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := mgr.Resolve(context.Background(), conv, "I'll take the 2", now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Outcome != OutcomeResolved || result.Item.Label != "Blue Mug" {
		t.Fatalf("got %+v, want resolved Blue Mug", result)
	}
}

func TestResolveOrdinalLast(t *testing.T) {
	store := newMemStore()
	mgr := New(store)
	conv := uuid.New()
	now := time.Now()
	items := productItems()
	_ = mgr.Register(context.Background(), conv, domain.ReferenceListProducts, items, now)

	result, err := mgr.Resolve(context.Background(), conv, "give me the last one", now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Outcome != OutcomeResolved || result.Item.Label != "Green Mug" {
		t.Fatalf("got %+v, want resolved Green Mug", result)
	}
}

func TestResolveNoLiveList(t *testing.T) {
	mgr := New(newMemStore())
	result, err := mgr.Resolve(context.Background(), uuid.New(), "the first one", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Outcome != OutcomeNoLiveList {
		t.Fatalf("got %v, want OutcomeNoLiveList", result.Outcome)
	}
}

func TestResolveExpiredTreatedAsNoLiveList(t *testing.T) {
	store := newMemStore()
	mgr := New(store)
	conv := uuid.New()
	past := time.Now().Add(-time.Hour)
	_ = mgr.Register(context.Background(), conv, domain.ReferenceListProducts, productItems(), past)

	result, err := mgr.Resolve(context.Background(), conv, "the first one", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Outcome != OutcomeNoLiveList {
		t.Fatalf("got %v, want OutcomeNoLiveList for an expired context", result.Outcome)
	}
}

func TestResolveDescriptive(t *testing.T) {
	store := newMemStore()
	mgr := New(store)
	conv := uuid.New()
	now := time.Now()
	_ = mgr.Register(context.Background(), conv, domain.ReferenceListProducts, productItems(), now)

	result, err := mgr.Resolve(context.Background(), conv, "I want the blue one please", now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Outcome != OutcomeResolved || result.Item.Label != "Blue Mug" {
		t.Fatalf("got %+v, want resolved Blue Mug", result)
	}
}

func TestResolveDemonstrativeAmbiguousAcrossLists(t *testing.T) {
	store := newMemStore()
	mgr := New(store)
	conv := uuid.New()
	now := time.Now()
	_ = mgr.Register(context.Background(), conv, domain.ReferenceListProducts, productItems(), now)
	_ = mgr.Register(context.Background(), conv, domain.ReferenceListServices, productItems(), now.Add(time.Second))

	result, err := mgr.Resolve(context.Background(), conv, "I'll take this one", now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Outcome != OutcomeAmbiguous {
		t.Fatalf("got %v, want OutcomeAmbiguous", result.Outcome)
	}
}
