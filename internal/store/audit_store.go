package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// AuditStore persists AuditLog rows. Callers needing the non-blocking
// guarantee   go through internal/audit, which wraps this
// store with a buffered channel and a background drain goroutine — this
// store itself is a plain synchronous writer.
type AuditStore struct {
	DB *pgxpool.Pool
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{DB: db}
}

// Write persists one audit entry.
func (s *AuditStore) Write(ctx context.Context, e domain.AuditLog) error {
	before, err := json.Marshal(e.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(e.After)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO audit_log (tenant_id, actor_user_id, action, target_type, target_id, before_state, after_state, request_id, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.TenantID, e.ActorUserID, e.Action, e.TargetType, e.TargetID, before, after, e.RequestID, e.IP, e.UserAgent)
	return err
}
