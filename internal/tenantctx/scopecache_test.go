package tenantctx

import (
	"testing"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

func TestScopeCacheGetSet(t *testing.T) {
	c := NewScopeCache()
	tenantID, userID := "tenant-1", "user-1"

	if _, ok := c.Get(tenantID, userID); ok {
		t.Fatal("expected no cache entry before Set")
	}

	scopes := domain.NewScopeSet(domain.ScopeCatalogView, domain.ScopeOrdersView)
	c.Set(tenantID, userID, scopes)

	got, ok := c.Get(tenantID, userID)
	if !ok {
		t.Fatal("expected cache hit after Set")
	}
	if !got.Has(domain.ScopeCatalogView) {
		t.Fatal("expected cached scope set to retain granted scope")
	}
}

func TestScopeCacheInvalidate(t *testing.T) {
	c := NewScopeCache()
	c.Set("tenant-1", "user-1", domain.NewScopeSet(domain.ScopeCatalogView))
	c.Invalidate("tenant-1", "user-1")

	if _, ok := c.Get("tenant-1", "user-1"); ok {
		t.Fatal("expected cache entry to be gone after Invalidate")
	}
}

func TestScopeCacheIsolatesByTenant(t *testing.T) {
	c := NewScopeCache()
	c.Set("tenant-1", "user-1", domain.NewScopeSet(domain.ScopeCatalogView))

	if _, ok := c.Get("tenant-2", "user-1"); ok {
		t.Fatal("expected cache to be scoped per tenant, not leak across tenants")
	}
}
