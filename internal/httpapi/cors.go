package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/tulia-commerce/convoapi/internal/store"
)

// defaultOriginTTL bounds how stale the allowlist can get between
// database refreshes; a tenant that just added an origin is picked up
// within one TTL window rather than on every request.
const defaultOriginTTL = 30 * time.Second

// TenantOriginAllowlist caches the union of every active tenant's
// domain.Tenant.AllowedOrigins, refreshed on a TTL, so CORS preflight
// checks never block on a database round trip. A CORS preflight request
// can't carry the X-API-Key header that would identify a single tenant,
// so enforcement here is against the merged set across all tenants
// rather than scoped to the one tenant a later authenticated request
// will resolve to.
type TenantOriginAllowlist struct {
	tenants       *store.TenantStore
	ttl           time.Duration
	staticOrigins []string

	mu      sync.RWMutex
	origins map[string]bool
	loaded  time.Time
}

// NewTenantOriginAllowlist builds an allowlist seeded with any
// deployment-wide static origins (e.g. an admin console) in addition to
// whatever tenants configure for themselves.
func NewTenantOriginAllowlist(tenants *store.TenantStore, staticOrigins []string) *TenantOriginAllowlist {
	return &TenantOriginAllowlist{
		tenants:       tenants,
		ttl:           defaultOriginTTL,
		staticOrigins: staticOrigins,
		origins:       make(map[string]bool),
	}
}

// Allowed reports whether origin currently appears in the allowlist,
// refreshing it first if it's gone stale.
func (a *TenantOriginAllowlist) Allowed(origin string) bool {
	a.refreshIfStale()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.origins[origin]
}

func (a *TenantOriginAllowlist) refreshIfStale() {
	a.mu.RLock()
	stale := time.Since(a.loaded) > a.ttl
	a.mu.RUnlock()
	if !stale {
		return
	}

	tenants, err := a.tenants.ListActive(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("failed to refresh tenant CORS origin allowlist, keeping stale set")
		return
	}

	next := make(map[string]bool, len(a.staticOrigins)+len(tenants))
	for _, origin := range a.staticOrigins {
		next[origin] = true
	}
	for _, t := range tenants {
		for _, origin := range t.AllowedOrigins {
			next[origin] = true
		}
	}

	a.mu.Lock()
	a.origins = next
	a.loaded = time.Now()
	a.mu.Unlock()
}

// CORSMiddleware builds the chi-compatible middleware that enforces the
// per-tenant AllowedOrigins allowlist on cross-origin browser requests.
func CORSMiddleware(allowlist *TenantOriginAllowlist) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc: allowlist.Allowed,
		AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:  []string{"Authorization", "Content-Type", "X-API-Key", "X-Correlation-ID"},
	})
	return c.Handler
}
