// Package tenantctx resolves the tenant and user identity for every
// authenticated request and carries them through request context: a
// hashed tenant API key identifies the tenant, an optional
// bearer JWT identifies the human operator, and RBAC scopes are resolved
// and cached per (tenant, user) pair for five minutes.
package tenantctx

import (
	"context"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

type ctxKey string

const (
	ctxTenantID       ctxKey = "tenant_id"
	ctxUserID         ctxKey = "user_id"
	ctxScopes         ctxKey = "scopes"
	ctxIsPlatformOp   ctxKey = "is_platform_operator"
)

// WithTenant attaches the resolved tenant ID to ctx.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxTenantID, tenantID)
}

// TenantID extracts the tenant ID from ctx. ok is false when no tenant was
// resolved (e.g. a platform-operator-only route).
func TenantID(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ctxTenantID).(uuid.UUID)
	return v, ok
}

// WithUser attaches the authenticated user ID to ctx.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// UserID extracts the authenticated user ID from ctx.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ctxUserID).(uuid.UUID)
	return v, ok
}

// WithScopes attaches the resolved RBAC scope set to ctx.
func WithScopes(ctx context.Context, scopes domain.ScopeSet) context.Context {
	return context.WithValue(ctx, ctxScopes, scopes)
}

// Scopes extracts the resolved RBAC scope set from ctx.
func Scopes(ctx context.Context) domain.ScopeSet {
	if v, ok := ctx.Value(ctxScopes).(domain.ScopeSet); ok {
		return v
	}
	return domain.NewScopeSet()
}

// WithPlatformOperator marks ctx as belonging to a platform operator, who
// bypasses per-tenant scope checks entirely.
func WithPlatformOperator(ctx context.Context, isOperator bool) context.Context {
	return context.WithValue(ctx, ctxIsPlatformOp, isOperator)
}

// IsPlatformOperator reports whether the authenticated user is a platform
// operator.
func IsPlatformOperator(ctx context.Context) bool {
	v, _ := ctx.Value(ctxIsPlatformOp).(bool)
	return v
}

// HasScope reports whether ctx carries scope, short-circuiting true for
// platform operators.
func HasScope(ctx context.Context, scope domain.Scope) bool {
	if IsPlatformOperator(ctx) {
		return true
	}
	return Scopes(ctx).Has(scope)
}
