package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// ReferenceStore persists ReferenceContext rows — short-TTL enumerations
// used to resolve deictic references ("the first one").
type ReferenceStore struct {
	DB *pgxpool.Pool
}

// NewReferenceStore creates a ReferenceStore.
func NewReferenceStore(db *pgxpool.Pool) *ReferenceStore {
	return &ReferenceStore{DB: db}
}

// Create persists a new reference context, then trims the conversation
// back down to domain.MaxLiveReferenceContexts by deleting the oldest
// rows beyond that cap.
func (s *ReferenceStore) Create(ctx context.Context, rc domain.ReferenceContext) error {
	items, err := json.Marshal(rc.Items)
	if err != nil {
		return err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO reference_context (id, conversation_id, list_type, items, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rc.ID, rc.ConversationID, rc.ListType, items, rc.CreatedAt, rc.ExpiresAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM reference_context
		WHERE conversation_id = $1 AND id NOT IN (
			SELECT id FROM reference_context
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`, rc.ConversationID, domain.MaxLiveReferenceContexts); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LiveForConversation returns the conversation's reference contexts that
// haven't expired as of `now`, most recent first.
func (s *ReferenceStore) LiveForConversation(ctx context.Context, conversationID uuid.UUID, now time.Time) ([]domain.ReferenceContext, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, conversation_id, list_type, items, created_at, expires_at
		FROM reference_context
		WHERE conversation_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, conversationID, now, domain.MaxLiveReferenceContexts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReferenceContext
	for rows.Next() {
		var rc domain.ReferenceContext
		var itemsRaw []byte
		if err := rows.Scan(&rc.ID, &rc.ConversationID, &rc.ListType, &itemsRaw, &rc.CreatedAt, &rc.ExpiresAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsRaw, &rc.Items); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
