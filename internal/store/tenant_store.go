// Package store holds the pgx-backed repositories for every aggregate in
// internal/domain, one file per aggregate, following the
// service-struct-wrapping-a-pool convention.
package store

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/apperr"
	"github.com/tulia-commerce/convoapi/internal/domain"
)

// TenantStore persists Tenant aggregates and their API keys.
type TenantStore struct {
	DB *pgxpool.Pool
}

// NewTenantStore creates a TenantStore.
func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{DB: db}
}

// TenantByAPIKeyHash satisfies tenantctx.TenantResolver: it looks up the
// tenant owning the given hashed API key, scoped to non-deleted tenants
// only.
func (s *TenantStore) TenantByAPIKeyHash(r *http.Request, keyHash string) (*domain.Tenant, error) {
	ctx := r.Context()
	var t domain.Tenant
	err := s.DB.QueryRow(ctx, `
		SELECT t.id, t.name, t.slug, t.status, t.trial_ends_at, t.subscription_tier_id,
		       t.whatsapp_number, t.timezone, t.quiet_hours_start_min, t.quiet_hours_end_min,
		       t.allowed_origins, t.created_at, t.updated_at
		FROM tenant t
		JOIN tenant_api_key k ON k.tenant_id = t.id
		WHERE k.key_hash = $1 AND t.deleted_at IS NULL
	`, keyHash).Scan(
		&t.ID, &t.Name, &t.Slug, &t.Status, &t.TrialEndsAt, &t.SubscriptionTierID,
		&t.WhatsAppNumber, &t.Timezone, &t.QuietHours.StartMinute, &t.QuietHours.EndMinute,
		&t.AllowedOrigins, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.DB.Exec(ctx, `UPDATE tenant_api_key SET last_used_at = now() WHERE key_hash = $1`, keyHash); err != nil {
		return nil, err
	}

	return &t, nil
}

// GetByID loads a tenant by ID, excluding soft-deleted rows.
func (s *TenantStore) GetByID(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error) {
	var t domain.Tenant
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, slug, status, trial_ends_at, subscription_tier_id,
		       whatsapp_number, timezone, quiet_hours_start_min, quiet_hours_end_min,
		       allowed_origins, created_at, updated_at
		FROM tenant WHERE id = $1 AND deleted_at IS NULL
	`, tenantID).Scan(
		&t.ID, &t.Name, &t.Slug, &t.Status, &t.TrialEndsAt, &t.SubscriptionTierID,
		&t.WhatsAppNumber, &t.Timezone, &t.QuietHours.StartMinute, &t.QuietHours.EndMinute,
		&t.AllowedOrigins, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetBySlug loads a tenant by its URL-facing slug, for routes (inbound
// provider webhooks) that can't carry a tenant API key.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, slug, status, trial_ends_at, subscription_tier_id,
		       whatsapp_number, timezone, quiet_hours_start_min, quiet_hours_end_min,
		       allowed_origins, created_at, updated_at
		FROM tenant WHERE slug = $1 AND deleted_at IS NULL
	`, slug).Scan(
		&t.ID, &t.Name, &t.Slug, &t.Status, &t.TrialEndsAt, &t.SubscriptionTierID,
		&t.WhatsAppNumber, &t.Timezone, &t.QuietHours.StartMinute, &t.QuietHours.EndMinute,
		&t.AllowedOrigins, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListActive returns every non-deleted tenant not yet canceled, for workers
// that sweep all tenants (e.g. the daily re-engagement/dormancy job).
func (s *TenantStore) ListActive(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, slug, status, trial_ends_at, subscription_tier_id,
		       whatsapp_number, timezone, quiet_hours_start_min, quiet_hours_end_min,
		       allowed_origins, created_at, updated_at
		FROM tenant WHERE deleted_at IS NULL AND status <> 'canceled'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Slug, &t.Status, &t.TrialEndsAt, &t.SubscriptionTierID,
			&t.WhatsAppNumber, &t.Timezone, &t.QuietHours.StartMinute, &t.QuietHours.EndMinute,
			&t.AllowedOrigins, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTenantResult is the bundle produced by an atomic tenant onboarding
// transaction: tenant creation seeds settings, roles, an owner
// membership, and an initial API key together or not at all.
type CreateTenantResult struct {
	Tenant       domain.Tenant
	OwnerUserID  uuid.UUID
	InitialAPIKey string // raw key, returned once; only its hash is stored
}

// CreateTenant runs the whole onboarding bundle in one transaction: the
// tenant row, default settings, seed roles, the owner's membership, and an
// initial API key.
func (s *TenantStore) CreateTenant(ctx context.Context, name, slug string, ownerUserID uuid.UUID, rawAPIKey, apiKeyHash string) (*CreateTenantResult, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tenant := domain.Tenant{
		ID:                 uuid.New(),
		Name:               name,
		Slug:               slug,
		Status:             domain.TenantTrial,
		TrialEndsAt:        timePtr(time.Now().Add(14 * 24 * time.Hour)),
		SubscriptionTierID: "starter",
		Timezone:           "UTC",
		QuietHours:         domain.QuietHours{StartMinute: 22 * 60, EndMinute: 8 * 60},
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tenant (id, name, slug, status, trial_ends_at, subscription_tier_id, timezone, quiet_hours_start_min, quiet_hours_end_min)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tenant.ID, tenant.Name, tenant.Slug, tenant.Status, tenant.TrialEndsAt, tenant.SubscriptionTierID,
		tenant.Timezone, tenant.QuietHours.StartMinute, tenant.QuietHours.EndMinute)
	if err != nil {
		return nil, err
	}

	settings := domain.DefaultTenantSettings(tenant.ID.String())
	if _, err := tx.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, credentials, feature_flags, business_hours, notifications, branding, onboarding_steps)
		VALUES ($1, '{}', $2, '[]', $3, $4, '{}')
	`, tenant.ID, jsonFlags(settings), jsonNotifications(settings), jsonBranding(settings)); err != nil {
		return nil, err
	}

	for _, role := range domain.SeedRoles(tenant.ID) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role (id, tenant_id, name, scopes) VALUES ($1, $2, $3, $4)
		`, role.ID, role.TenantID, role.Name, role.Scopes.Slice()); err != nil {
			return nil, err
		}
		if role.Name == "Owner" {
			if _, err := tx.Exec(ctx, `
				INSERT INTO tenant_user (tenant_id, user_id, invitation_status, role_ids)
				VALUES ($1, $2, 'accepted', $3)
			`, tenant.ID, ownerUserID, []uuid.UUID{role.ID}); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO tenant_api_key (tenant_id, key_hash, name) VALUES ($1, $2, 'default')
	`, tenant.ID, apiKeyHash); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &CreateTenantResult{Tenant: tenant, OwnerUserID: ownerUserID, InitialAPIKey: rawAPIKey}, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func jsonFlags(s domain.TenantSettings) []byte {
	b, _ := marshalJSON(s.FeatureFlags)
	return b
}

func jsonNotifications(s domain.TenantSettings) []byte {
	b, _ := marshalJSON(s.Notifications)
	return b
}

func jsonBranding(s domain.TenantSettings) []byte {
	b, _ := marshalJSON(s.Branding)
	return b
}
