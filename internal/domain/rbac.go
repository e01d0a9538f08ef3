package domain

import (
	"time"

	"github.com/google/uuid"
)

// Scope is an atomic permission code checked by a handler, drawn from a
// canonical scope set.
type Scope string

const (
	ScopeCatalogView           Scope = "catalog:view"
	ScopeCatalogEdit           Scope = "catalog:edit"
	ScopeServicesView          Scope = "services:view"
	ScopeServicesEdit          Scope = "services:edit"
	ScopeAvailabilityEdit      Scope = "availability:edit"
	ScopeConversationsView     Scope = "conversations:view"
	ScopeHandoffPerform        Scope = "handoff:perform"
	ScopeOrdersView            Scope = "orders:view"
	ScopeOrdersEdit            Scope = "orders:edit"
	ScopeAppointmentsView      Scope = "appointments:view"
	ScopeAppointmentsEdit      Scope = "appointments:edit"
	ScopeAnalyticsView         Scope = "analytics:view"
	ScopeFinanceView           Scope = "finance:view"
	ScopeFinanceWithdrawInit   Scope = "finance:withdraw:initiate"
	ScopeFinanceWithdrawApprove Scope = "finance:withdraw:approve"
	ScopeFinanceReconcile      Scope = "finance:reconcile"
	ScopeIntegrationsManage    Scope = "integrations:manage"
	ScopeUsersManage           Scope = "users:manage"
)

// AllScopes is the full catalog, used to seed the Owner role.
var AllScopes = []Scope{
	ScopeCatalogView, ScopeCatalogEdit, ScopeServicesView, ScopeServicesEdit,
	ScopeAvailabilityEdit, ScopeConversationsView, ScopeHandoffPerform,
	ScopeOrdersView, ScopeOrdersEdit, ScopeAppointmentsView, ScopeAppointmentsEdit,
	ScopeAnalyticsView, ScopeFinanceView, ScopeFinanceWithdrawInit,
	ScopeFinanceWithdrawApprove, ScopeFinanceReconcile, ScopeIntegrationsManage,
	ScopeUsersManage,
}

// ScopeSet is a set of scopes with the containment/merge operations the
// Identity & Tenant Context resolver needs.
type ScopeSet map[Scope]struct{}

// NewScopeSet builds a set from a slice, deduplicating.
func NewScopeSet(scopes ...Scope) ScopeSet {
	s := make(ScopeSet, len(scopes))
	for _, sc := range scopes {
		s[sc] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// Union returns a new set containing every scope in s and other.
func (s ScopeSet) Union(other ScopeSet) ScopeSet {
	out := make(ScopeSet, len(s)+len(other))
	for sc := range s {
		out[sc] = struct{}{}
	}
	for sc := range other {
		out[sc] = struct{}{}
	}
	return out
}

// Minus returns a new set containing every scope in s not present in other.
func (s ScopeSet) Minus(other ScopeSet) ScopeSet {
	out := make(ScopeSet, len(s))
	for sc := range s {
		if !other.Has(sc) {
			out[sc] = struct{}{}
		}
	}
	return out
}

// ContainsAll reports whether s is a superset of required.
func (s ScopeSet) ContainsAll(required ScopeSet) bool {
	for sc := range required {
		if !s.Has(sc) {
			return false
		}
	}
	return true
}

// Slice returns the scopes in s as a slice (order unspecified).
func (s ScopeSet) Slice() []Scope {
	out := make([]Scope, 0, len(s))
	for sc := range s {
		out = append(out, sc)
	}
	return out
}

// InvitationStatus is the state of a TenantUser membership edge.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

// User is global: one account, many possible tenant memberships.
type User struct {
	ID              uuid.UUID
	Email           string
	PasswordHash    string
	EmailVerified   bool
	IsPlatformOperator bool // bypasses tenant context; requires platform scopes instead
}

// TenantUser is the membership edge (tenant_id, user_id), not an ownership
// relation — this "Membership is a many-to-many edge".
type TenantUser struct {
	TenantID   uuid.UUID
	UserID     uuid.UUID
	Invitation InvitationStatus
	RoleIDs    []uuid.UUID
	LastSeenAt *time.Time
}

// Role is per-tenant; the seed set is created atomically with the tenant.
type Role struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Scopes   ScopeSet
}

// SeedRoles returns the six seed roles with their domain-subset
// scope grants, created atomically alongside a new tenant.
func SeedRoles(tenantID uuid.UUID) []Role {
	owner := NewScopeSet(AllScopes...)
	admin := owner.Minus(NewScopeSet(ScopeFinanceWithdrawApprove))
	finance := NewScopeSet(ScopeFinanceView, ScopeFinanceWithdrawInit, ScopeFinanceWithdrawApprove, ScopeFinanceReconcile)
	catalog := NewScopeSet(ScopeCatalogView, ScopeCatalogEdit, ScopeServicesView, ScopeServicesEdit, ScopeAvailabilityEdit)
	support := NewScopeSet(ScopeConversationsView, ScopeHandoffPerform, ScopeOrdersView, ScopeAppointmentsView, ScopeAppointmentsEdit)
	analyst := NewScopeSet(ScopeAnalyticsView, ScopeOrdersView, ScopeConversationsView)

	return []Role{
		{ID: uuid.New(), TenantID: tenantID, Name: "Owner", Scopes: owner},
		{ID: uuid.New(), TenantID: tenantID, Name: "Admin", Scopes: admin},
		{ID: uuid.New(), TenantID: tenantID, Name: "Finance Admin", Scopes: finance},
		{ID: uuid.New(), TenantID: tenantID, Name: "Catalog Manager", Scopes: catalog},
		{ID: uuid.New(), TenantID: tenantID, Name: "Support Lead", Scopes: support},
		{ID: uuid.New(), TenantID: tenantID, Name: "Analyst", Scopes: analyst},
	}
}

// UserPermission is a per-user override that always wins over role grants in
// either direction — deny always overrides allow.
type UserPermission struct {
	TenantID       uuid.UUID
	UserID         uuid.UUID
	PermissionCode Scope
	Granted        bool
}

// ResolveScopes computes effective scopes: union of role scopes,
// minus any UserPermission deny, union any UserPermission allow. Deny always
// wins regardless of ordering (P3), because it is applied last and removal
// from a set a grant re-adds to would re-admit it — so denies are applied
// strictly after allows, and allows never re-add a scope already denied in
// the same resolution.
func ResolveScopes(roleScopes ScopeSet, overrides []UserPermission) ScopeSet {
	resolved := roleScopes
	var denies, allows ScopeSet = NewScopeSet(), NewScopeSet()
	for _, o := range overrides {
		if o.Granted {
			allows[o.PermissionCode] = struct{}{}
		} else {
			denies[o.PermissionCode] = struct{}{}
		}
	}
	resolved = resolved.Union(allows)
	resolved = resolved.Minus(denies)
	return resolved
}
