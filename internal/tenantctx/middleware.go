package tenantctx

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// TenantResolver looks up the tenant owning a given API key hash. Row-level
// tenant isolation   starts here: every request is scoped to
// exactly the tenant whose key hash matches.
type TenantResolver interface {
	TenantByAPIKeyHash(r *http.Request, keyHash string) (*domain.Tenant, error)
}

// UserResolver looks up the authenticated user by JWT subject and resolves
// their effective scopes within a tenant.
type UserResolver interface {
	UserBySubject(r *http.Request, subject string) (*domain.User, error)
	ResolveUserScopes(r *http.Request, tenantID, userID uuid.UUID) (domain.ScopeSet, error)
}

// APIKeyMiddleware resolves the tenant from the X-API-Key header. It must
// run before any handler that reads TenantID from context.
func APIKeyMiddleware(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				http.Error(w, "missing X-API-Key header", http.StatusUnauthorized)
				return
			}

			tenant, err := resolver.TenantByAPIKeyHash(r, HashAPIKey(rawKey))
			if err != nil {
				log.Warn().Err(err).Msg("tenant api key lookup failed")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if tenant == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithTenant(r.Context(), tenant.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// JWTMiddleware authenticates the human operator bearer token and, when a
// tenant is already in context, resolves and caches that user's RBAC
// scopes within the tenant. Platform operators bypass
// scope resolution entirely.
func JWTMiddleware(validator *TokenValidator, users UserResolver, scopeCache *ScopeCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			sub, err := validator.Validate(token)
			if err != nil {
				log.Warn().Err(err).Msg("jwt validation failed")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.UserBySubject(r, sub)
			if err != nil || user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithUser(r.Context(), user.ID)
			ctx = WithPlatformOperator(ctx, user.IsPlatformOperator)

			if tenantID, ok := TenantID(ctx); ok && !user.IsPlatformOperator {
				if scopes, cached := scopeCache.Get(tenantID.String(), user.ID.String()); cached {
					ctx = WithScopes(ctx, scopes)
				} else {
					scopes, err := users.ResolveUserScopes(r, tenantID, user.ID)
					if err != nil {
						log.Error().Err(err).Msg("scope resolution failed")
						http.Error(w, "forbidden", http.StatusForbidden)
						return
					}
					scopeCache.Set(tenantID.String(), user.ID.String(), scopes)
					ctx = WithScopes(ctx, scopes)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope returns middleware that rejects requests lacking scope,
// short-circuiting for platform operators.
func RequireScope(scope domain.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(r.Context(), scope) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
