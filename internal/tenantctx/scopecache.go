package tenantctx

import (
	"fmt"
	"sync"
	"time"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// scopeCacheTTL is the resolved-RBAC-scope cache lifetime ("scope
// resolution results may be cached for up to 5 minutes").
const scopeCacheTTL = 5 * time.Minute

type scopeCacheEntry struct {
	scopes domain.ScopeSet
	expiry time.Time
}

// ScopeCache caches resolved (tenant, user) -> ScopeSet lookups so RBAC
// resolution doesn't hit the database on every request.
type ScopeCache struct {
	mu    sync.RWMutex
	cache map[string]scopeCacheEntry
}

// NewScopeCache creates an empty cache and starts its background
// eviction loop.
func NewScopeCache() *ScopeCache {
	c := &ScopeCache{cache: make(map[string]scopeCacheEntry)}
	go c.cleanupExpired()
	return c
}

func cacheKey(tenantID, userID string) string {
	return fmt.Sprintf("%s:%s", tenantID, userID)
}

// Get returns the cached scope set, if still fresh.
func (c *ScopeCache) Get(tenantID, userID string) (domain.ScopeSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[cacheKey(tenantID, userID)]
	if !ok || time.Now().After(entry.expiry) {
		return nil, false
	}
	return entry.scopes, true
}

// Set caches a resolved scope set for scopeCacheTTL.
func (c *ScopeCache) Set(tenantID, userID string, scopes domain.ScopeSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[cacheKey(tenantID, userID)] = scopeCacheEntry{scopes: scopes, expiry: time.Now().Add(scopeCacheTTL)}
}

// Invalidate drops a cached entry, used after a role/permission change.
func (c *ScopeCache) Invalidate(tenantID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, cacheKey(tenantID, userID))
}

func (c *ScopeCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, entry := range c.cache {
			if now.After(entry.expiry) {
				delete(c.cache, key)
			}
		}
		c.mu.Unlock()
	}
}
