package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/apperr"
	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/syncx"
)

// ConversationStore persists Customer, Conversation, Message, and
// ConversationContext rows, all tenant-scoped.
type ConversationStore struct {
	DB *pgxpool.Pool
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(db *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{DB: db}
}

// GetOrCreateCustomer finds a customer by (tenant, phone) or creates one,
// using an upsert-then-read-back idiom.
func (s *ConversationStore) GetOrCreateCustomer(ctx context.Context, tenantID uuid.UUID, phoneE164 string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.DB.QueryRow(ctx, `
		INSERT INTO customer (tenant_id, phone_e164)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, phone_e164) DO UPDATE SET phone_e164 = EXCLUDED.phone_e164
		RETURNING id, tenant_id, phone_e164, name, tags, language,
		          consent_promotional, consent_reminders, consent_transactional, created_at, deleted_at
	`, tenantID, phoneE164).Scan(
		&c.ID, &c.TenantID, &c.PhoneE164, &c.Name, &c.Tags, &c.Language,
		&c.Consent.PromotionalMessages, &c.Consent.ReminderMessages, &c.Consent.TransactionalMessages,
		&c.CreatedAt, &c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateOpenConversation returns the customer's currently open
// conversation or starts a new one (at most one open conversation is
// allowed per customer).
func (s *ConversationStore) GetOrCreateOpenConversation(ctx context.Context, tenantID, customerID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.DB.QueryRow(ctx, `
		SELECT id, tenant_id, customer_id, status, current_session_start,
		       session_message_count, last_inbound_at, created_at, deleted_at
		FROM conversation
		WHERE tenant_id = $1 AND customer_id = $2 AND deleted_at IS NULL
		  AND status IN ('open', 'bot', 'handoff')
		ORDER BY created_at DESC LIMIT 1
	`, tenantID, customerID).Scan(
		&conv.ID, &conv.TenantID, &conv.CustomerID, &conv.Status, &conv.CurrentSessionStart,
		&conv.SessionMessageCount, &conv.LastInboundAt, &conv.CreatedAt, &conv.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.createConversation(ctx, tenantID, customerID)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationStore) createConversation(ctx context.Context, tenantID, customerID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.DB.QueryRow(ctx, `
		INSERT INTO conversation (tenant_id, customer_id, status)
		VALUES ($1, $2, 'bot')
		RETURNING id, tenant_id, customer_id, status, current_session_start,
		          session_message_count, last_inbound_at, created_at, deleted_at
	`, tenantID, customerID).Scan(
		&conv.ID, &conv.TenantID, &conv.CustomerID, &conv.Status, &conv.CurrentSessionStart,
		&conv.SessionMessageCount, &conv.LastInboundAt, &conv.CreatedAt, &conv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// RecordInbound stores an inbound message, starting a new session when the
// gap since the last inbound message exceeds domain.SessionGapThreshold.
func (s *ConversationStore) RecordInbound(ctx context.Context, conv *domain.Conversation, content, providerMessageID string, now time.Time) (*domain.Message, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	newSession := conv.StartsNewSession(now)

	var msg domain.Message
	err = tx.QueryRow(ctx, `
		INSERT INTO message (tenant_id, conversation_id, direction, type, content, provider_message_id, status)
		VALUES ($1, $2, 'inbound', 'customer_inbound', $3, $4, 'delivered')
		ON CONFLICT (tenant_id, provider_message_id) WHERE provider_message_id <> '' DO NOTHING
		RETURNING id, tenant_id, conversation_id, direction, type, content, provider_message_id, status, failure_reason, created_at
	`, conv.TenantID, conv.ID, content, providerMessageID).Scan(
		&msg.ID, &msg.TenantID, &msg.ConversationID, &msg.Direction, &msg.Type,
		&msg.Content, &msg.ProviderMessageID, &msg.Status, &msg.FailureReason, &msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Idempotent replay of an already-recorded provider message id.
		return nil, apperr.New(apperr.CodeConflict, "duplicate provider message id")
	}
	if err != nil {
		return nil, err
	}

	sessionCount := conv.SessionMessageCount + 1
	sessionStart := conv.CurrentSessionStart
	if newSession {
		sessionCount = 1
		sessionStart = now
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversation
		SET last_inbound_at = $1, session_message_count = $2, current_session_start = $3
		WHERE id = $4
	`, now, sessionCount, sessionStart, conv.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	conv.LastInboundAt = &now
	conv.SessionMessageCount = sessionCount
	conv.CurrentSessionStart = sessionStart
	return &msg, nil
}

// RecordOutbound writes an outbound Message row after the dispatcher has
// attempted (or skipped) delivery. status/failureReason reflect the final
// outcome; providerMessageID is empty on failure.
func (s *ConversationStore) RecordOutbound(ctx context.Context, tenantID, conversationID uuid.UUID, msgType domain.MessageType, content, providerMessageID string, status domain.MessageStatus, failureReason string) (*domain.Message, error) {
	var msg domain.Message
	err := s.DB.QueryRow(ctx, `
		INSERT INTO message (tenant_id, conversation_id, direction, type, content, provider_message_id, status, failure_reason)
		VALUES ($1, $2, 'outbound', $3, $4, $5, $6, $7)
		RETURNING id, tenant_id, conversation_id, direction, type, content, provider_message_id, status, failure_reason, created_at
	`, tenantID, conversationID, msgType, content, providerMessageID, status, failureReason).Scan(
		&msg.ID, &msg.TenantID, &msg.ConversationID, &msg.Direction, &msg.Type,
		&msg.Content, &msg.ProviderMessageID, &msg.Status, &msg.FailureReason, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetByID loads a Conversation by id, tenant-scoped.
func (s *ConversationStore) GetByID(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.DB.QueryRow(ctx, `
		SELECT id, tenant_id, customer_id, status, current_session_start,
		       session_message_count, last_inbound_at, created_at, deleted_at
		FROM conversation WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, conversationID, tenantID).Scan(
		&conv.ID, &conv.TenantID, &conv.CustomerID, &conv.Status, &conv.CurrentSessionStart,
		&conv.SessionMessageCount, &conv.LastInboundAt, &conv.CreatedAt, &conv.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetByConversationID loads a Conversation by id alone, without tenant
// scoping. This is the one seam where a bare conversation id legitimately
// arrives without an established tenant context: the harmonizer's drain
// callback, which batches purely by conversation id and is intentionally
// tenant-agnostic. Every call the orchestrator makes after this one uses
// the returned conversation's own TenantID, so tenant isolation  
// is restored one call later, not lost.
func (s *ConversationStore) GetByConversationID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.DB.QueryRow(ctx, `
		SELECT id, tenant_id, customer_id, status, current_session_start,
		       session_message_count, last_inbound_at, created_at, deleted_at
		FROM conversation WHERE id = $1
	`, conversationID).Scan(
		&conv.ID, &conv.TenantID, &conv.CustomerID, &conv.Status, &conv.CurrentSessionStart,
		&conv.SessionMessageCount, &conv.LastInboundAt, &conv.CreatedAt, &conv.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByTenant returns a tenant's conversations newest-first, paginated by
// an opaque (created_at, id) cursor in the same shape internal/syncx uses
// for sync-stream pagination. An empty returned cursor means there is no
// further page.
func (s *ConversationStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) ([]domain.Conversation, string, error) {
	query := `
		SELECT id, tenant_id, customer_id, status, current_session_start,
		       session_message_count, last_inbound_at, created_at, deleted_at
		FROM conversation WHERE tenant_id = $1 AND deleted_at IS NULL`
	args := []any{tenantID}

	if decoded, ok := syncx.DecodeCursor(cursor); ok {
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, len(args)+1, len(args)+2)
		args = append(args, time.UnixMilli(decoded.Ms), decoded.UID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.CustomerID, &c.Status, &c.CurrentSessionStart,
			&c.SessionMessageCount, &c.LastInboundAt, &c.CreatedAt, &c.DeletedAt,
		); err != nil {
			return nil, "", err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		next = syncx.EncodeCursor(syncx.Cursor{Ms: last.CreatedAt.UnixMilli(), UID: last.ID})
	}
	return out, next, nil
}

// StaleSince returns active (open/bot/handoff) conversations for a tenant
// whose last inbound message predates the cutoff, for the daily
// re-engagement/dormancy sweep.
func (s *ConversationStore) StaleSince(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]domain.Conversation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, tenant_id, customer_id, status, current_session_start,
		       session_message_count, last_inbound_at, created_at, deleted_at
		FROM conversation
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND status IN ('open', 'bot', 'handoff')
		  AND last_inbound_at IS NOT NULL AND last_inbound_at < $2
	`, tenantID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.TenantID, &conv.CustomerID, &conv.Status, &conv.CurrentSessionStart,
			&conv.SessionMessageCount, &conv.LastInboundAt, &conv.CreatedAt, &conv.DeletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// MarkDormant transitions a conversation to dormant (inactive for
// >= 14 days), tenant-scoped.
func (s *ConversationStore) MarkDormant(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversation SET status = 'dormant' WHERE id = $1 AND tenant_id = $2
	`, conversationID, tenantID)
	return err
}

// UpdateStatus transitions a conversation's lifecycle status, tenant-scoped
// (e.g. bot -> handoff when the agent orchestrator's step 8 confidence
// check fires, or handoff -> bot when a human closes it back out).
func (s *ConversationStore) UpdateStatus(ctx context.Context, tenantID, conversationID uuid.UUID, status domain.ConversationStatus) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversation SET status = $1 WHERE id = $2 AND tenant_id = $3
	`, status, conversationID, tenantID)
	return err
}

// MatchAudience resolves a campaign's domain.TargetingCriteria into the
// concrete customer set it currently matches. Targeting is evaluated
// once, at send time, not re-evaluated per recipient later.
// Each non-nil criterion narrows the result; a criteria value with every
// field nil matches every non-deleted customer in the tenant.
func (s *ConversationStore) MatchAudience(ctx context.Context, tenantID uuid.UUID, criteria domain.TargetingCriteria, now time.Time) ([]domain.Customer, error) {
	query := `
		SELECT DISTINCT c.id, c.tenant_id, c.phone_e164, c.name, c.tags, c.language,
		       c.consent_promotional, c.consent_reminders, c.consent_transactional, c.created_at, c.deleted_at
		FROM customer c
		WHERE c.tenant_id = $1 AND c.deleted_at IS NULL
	`
	args := []any{tenantID}

	if len(criteria.Tags) > 0 {
		args = append(args, criteria.Tags)
		query += fmt.Sprintf(" AND c.tags && $%d", len(args))
	}
	if criteria.PurchasedWithin != nil {
		args = append(args, now.Add(-*criteria.PurchasedWithin))
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM orders o WHERE o.customer_id = c.id AND o.status = 'paid' AND o.created_at >= $%d
		)`, len(args))
	}
	if criteria.ActiveWithin != nil {
		args = append(args, now.Add(-*criteria.ActiveWithin))
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM conversation v WHERE v.customer_id = c.id AND v.last_inbound_at >= $%d
		)`, len(args))
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.PhoneE164, &c.Name, &c.Tags, &c.Language,
			&c.Consent.PromotionalMessages, &c.Consent.ReminderMessages, &c.Consent.TransactionalMessages,
			&c.CreatedAt, &c.DeletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRecentMessages returns a conversation's most recent messages (both
// directions), newest first, capped at limit and not bounded by session —
// the agent orchestrator's context-pack step 3 recent-message window.
func (s *ConversationStore) ListRecentMessages(ctx context.Context, tenantID, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, tenant_id, conversation_id, direction, type, content, provider_message_id, status, failure_reason, created_at
		FROM message WHERE tenant_id = $1 AND conversation_id = $2
		ORDER BY created_at DESC LIMIT $3
	`, tenantID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.TenantID, &m.ConversationID, &m.Direction, &m.Type,
			&m.Content, &m.ProviderMessageID, &m.Status, &m.FailureReason, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessagesBeforeSession counts a conversation's messages that predate
// its current session start, used to size the prior-session summary
// without loading their full content.
func (s *ConversationStore) CountMessagesBeforeSession(ctx context.Context, tenantID, conversationID uuid.UUID, sessionStart time.Time) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
		SELECT count(*) FROM message WHERE tenant_id = $1 AND conversation_id = $2 AND created_at < $3
	`, tenantID, conversationID, sessionStart).Scan(&count)
	return count, err
}

// GetCustomer loads a Customer by id, tenant-scoped.
func (s *ConversationStore) GetCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*domain.Customer, error) {
	var c domain.Customer
	err := s.DB.QueryRow(ctx, `
		SELECT id, tenant_id, phone_e164, name, tags, language,
		       consent_promotional, consent_reminders, consent_transactional, created_at, deleted_at
		FROM customer WHERE id = $1 AND tenant_id = $2
	`, customerID, tenantID).Scan(
		&c.ID, &c.TenantID, &c.PhoneE164, &c.Name, &c.Tags, &c.Language,
		&c.Consent.PromotionalMessages, &c.Consent.ReminderMessages, &c.Consent.TransactionalMessages,
		&c.CreatedAt, &c.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "customer not found")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
