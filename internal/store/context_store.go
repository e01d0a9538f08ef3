package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// ConversationContextStore persists the single volatile-state row each
// conversation carries between turns.
type ConversationContextStore struct {
	DB *pgxpool.Pool
}

// NewConversationContextStore creates a ConversationContextStore.
func NewConversationContextStore(db *pgxpool.Pool) *ConversationContextStore {
	return &ConversationContextStore{DB: db}
}

// GetOrCreate returns the conversation's context row, creating an empty
// browsing-state one on first turn.
func (s *ConversationContextStore) GetOrCreate(ctx context.Context, conversationID uuid.UUID) (*domain.ConversationContext, error) {
	cc, err := s.get(ctx, conversationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.create(ctx, conversationID)
	}
	return cc, err
}

func (s *ConversationContextStore) get(ctx context.Context, conversationID uuid.UUID) (*domain.ConversationContext, error) {
	var cc domain.ConversationContext
	var metadata []byte
	err := s.DB.QueryRow(ctx, `
		SELECT conversation_id, last_customer_message, last_bot_message, harmonization_buffer,
		       checkout_state, selected_variant_id, selected_quantity, locked_language,
		       low_confidence_turns, metadata, updated_at
		FROM conversation_context WHERE conversation_id = $1
	`, conversationID).Scan(
		&cc.ConversationID, &cc.LastCustomerMessage, &cc.LastBotMessage, &cc.HarmonizationBuffer,
		&cc.CheckoutState, &cc.SelectedVariantID, &cc.SelectedQuantity, &cc.LockedLanguage,
		&cc.LowConfidenceTurns, &metadata, &cc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &cc.Metadata); err != nil {
		return nil, err
	}
	return &cc, nil
}

func (s *ConversationContextStore) create(ctx context.Context, conversationID uuid.UUID) (*domain.ConversationContext, error) {
	var cc domain.ConversationContext
	err := s.DB.QueryRow(ctx, `
		INSERT INTO conversation_context (conversation_id) VALUES ($1)
		RETURNING conversation_id, last_customer_message, last_bot_message, harmonization_buffer,
		          checkout_state, selected_variant_id, selected_quantity, locked_language,
		          low_confidence_turns, updated_at
	`, conversationID).Scan(
		&cc.ConversationID, &cc.LastCustomerMessage, &cc.LastBotMessage, &cc.HarmonizationBuffer,
		&cc.CheckoutState, &cc.SelectedVariantID, &cc.SelectedQuantity, &cc.LockedLanguage,
		&cc.LowConfidenceTurns, &cc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cc.Metadata = map[string]any{}
	return &cc, nil
}

// Save writes the full context row back after the agent orchestrator
// mutates it within a turn.
func (s *ConversationContextStore) Save(ctx context.Context, cc *domain.ConversationContext) error {
	metadata, err := json.Marshal(cc.Metadata)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		UPDATE conversation_context
		SET last_customer_message = $1, last_bot_message = $2, harmonization_buffer = $3,
		    checkout_state = $4, selected_variant_id = $5, selected_quantity = $6,
		    locked_language = $7, low_confidence_turns = $8, metadata = $9, updated_at = now()
		WHERE conversation_id = $10
	`, cc.LastCustomerMessage, cc.LastBotMessage, cc.HarmonizationBuffer, cc.CheckoutState,
		cc.SelectedVariantID, cc.SelectedQuantity, cc.LockedLanguage, cc.LowConfidenceTurns,
		metadata, cc.ConversationID)
	return err
}
