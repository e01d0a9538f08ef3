package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxEntry is one transactional-notification row awaiting delivery.
type OutboxEntry struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Topic    string
	Payload  []byte
}

// OutboxStore persists outbox rows, letting a domain write and the
// notification it implies land in the same transaction.
type OutboxStore struct {
	DB *pgxpool.Pool
}

// NewOutboxStore creates an OutboxStore.
func NewOutboxStore(db *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{DB: db}
}

// Enqueue writes an outbox row, intended to be called on the same *pgx.Tx
// as the domain write it accompanies (the transactional-outbox
// idiom — callers construct an OutboxStore over a tx-scoped pool when
// atomicity with another write is required).
func (s *OutboxStore) Enqueue(ctx context.Context, tenantID uuid.UUID, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO outbox (tenant_id, topic, payload) VALUES ($1, $2, $3)`, tenantID, topic, body)
	return err
}

// Pending returns undispatched outbox rows for the drainer worker.
func (s *OutboxStore) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, tenant_id, topic, payload FROM outbox
		WHERE dispatched_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Topic, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkDispatched stamps an outbox row as delivered.
func (s *OutboxStore) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.DB.Exec(ctx, `UPDATE outbox SET dispatched_at = $1 WHERE id = $2`, at, id)
	return err
}
