package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ValidationLogStore persists grounding-validator transformation records
// (the grounding validator's observability requirement).
type ValidationLogStore struct {
	DB *pgxpool.Pool
}

// NewValidationLogStore creates a ValidationLogStore.
func NewValidationLogStore(db *pgxpool.Pool) *ValidationLogStore {
	return &ValidationLogStore{DB: db}
}

// Record writes one validator transformation entry.
func (s *ValidationLogStore) Record(ctx context.Context, tenantID, conversationID uuid.UUID, transform, detail string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO validation_log (tenant_id, conversation_id, transform, detail)
		VALUES ($1, $2, $3, $4)
	`, tenantID, conversationID, transform, detail)
	return err
}
