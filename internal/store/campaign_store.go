package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// CampaignStore persists Campaign and CampaignVariant rows.
type CampaignStore struct {
	DB *pgxpool.Pool
}

// NewCampaignStore creates a CampaignStore.
func NewCampaignStore(db *pgxpool.Pool) *CampaignStore {
	return &CampaignStore{DB: db}
}

// Create persists a draft campaign and its variants in one transaction.
func (s *CampaignStore) Create(ctx context.Context, c domain.Campaign) (*domain.Campaign, error) {
	targeting, err := json.Marshal(c.Targeting)
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	c.ID = uuid.New()
	c.Status = domain.CampaignDraft
	if err := tx.QueryRow(ctx, `
		INSERT INTO campaign (id, tenant_id, name, targeting, is_ab_test, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, c.ID, c.TenantID, c.Name, targeting, c.IsABTest, c.Status, c.ScheduledAt).Scan(&c.CreatedAt); err != nil {
		return nil, err
	}

	for i, v := range c.Variants {
		metrics, err := json.Marshal(v.Metrics)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO campaign_variant (campaign_id, key, template_id, metrics) VALUES ($1, $2, $3, $4)
		`, c.ID, v.Key, v.TemplateID, metrics); err != nil {
			return nil, err
		}
		c.Variants[i] = v
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateStatus transitions a campaign's lifecycle state.
func (s *CampaignStore) UpdateStatus(ctx context.Context, tenantID, campaignID uuid.UUID, status domain.CampaignStatus) error {
	_, err := s.DB.Exec(ctx, `UPDATE campaign SET status = $1 WHERE id = $2 AND tenant_id = $3`, status, campaignID, tenantID)
	return err
}

// RecordVariantMetric atomically increments one counter on a variant's
// metrics (delivered, failed, read, response, conversion, skipped).
func (s *CampaignStore) RecordVariantMetric(ctx context.Context, campaignID uuid.UUID, variantKey, field string, delta int) error {
	column := metricColumn(field)
	_, err := s.DB.Exec(ctx, `
		UPDATE campaign_variant
		SET metrics = jsonb_set(metrics, $1, (COALESCE((metrics->>$2)::int, 0) + $3)::text::jsonb)
		WHERE campaign_id = $4 AND key = $5
	`, "{"+column+"}", column, delta, campaignID, variantKey)
	return err
}

func metricColumn(field string) string {
	switch field {
	case "targeted", "delivered", "failed", "read", "response", "conversion", "skippedNoConsent":
		return field
	default:
		return "delivered"
	}
}

// Get loads a campaign with its variants.
func (s *CampaignStore) Get(ctx context.Context, tenantID, campaignID uuid.UUID) (*domain.Campaign, error) {
	var c domain.Campaign
	var targeting []byte
	if err := s.DB.QueryRow(ctx, `
		SELECT id, tenant_id, name, targeting, is_ab_test, status, scheduled_at, created_at
		FROM campaign WHERE id = $1 AND tenant_id = $2
	`, campaignID, tenantID).Scan(&c.ID, &c.TenantID, &c.Name, &targeting, &c.IsABTest, &c.Status, &c.ScheduledAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(targeting, &c.Targeting); err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `SELECT key, template_id, metrics FROM campaign_variant WHERE campaign_id = $1`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.CampaignVariant
		var metrics []byte
		if err := rows.Scan(&v.Key, &v.TemplateID, &metrics); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metrics, &v.Metrics); err != nil {
			return nil, err
		}
		c.Variants = append(c.Variants, v)
	}
	return &c, rows.Err()
}
