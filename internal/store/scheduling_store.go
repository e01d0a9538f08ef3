package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// SchedulingStore persists MessageTemplate and ScheduledMessage rows.
type SchedulingStore struct {
	DB *pgxpool.Pool
}

// NewSchedulingStore creates a SchedulingStore.
func NewSchedulingStore(db *pgxpool.Pool) *SchedulingStore {
	return &SchedulingStore{DB: db}
}

// CreateTemplate persists a new message template.
func (s *SchedulingStore) CreateTemplate(ctx context.Context, tmpl domain.MessageTemplate) (*domain.MessageTemplate, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO message_template (tenant_id, name, content)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, name, content, usage_count, created_at
	`, tmpl.TenantID, tmpl.Name, tmpl.Content).Scan(
		&tmpl.ID, &tmpl.TenantID, &tmpl.Name, &tmpl.Content, &tmpl.UsageCount, &tmpl.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// GetTemplate loads one tenant-scoped template by id.
func (s *SchedulingStore) GetTemplate(ctx context.Context, tenantID, templateID uuid.UUID) (*domain.MessageTemplate, error) {
	var t domain.MessageTemplate
	err := s.DB.QueryRow(ctx, `
		SELECT id, tenant_id, name, content, usage_count, created_at
		FROM message_template WHERE id = $1 AND tenant_id = $2
	`, templateID, tenantID).Scan(&t.ID, &t.TenantID, &t.Name, &t.Content, &t.UsageCount, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IncrementTemplateUsage bumps the render counter after a successful send.
func (s *SchedulingStore) IncrementTemplateUsage(ctx context.Context, templateID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `UPDATE message_template SET usage_count = usage_count + 1 WHERE id = $1`, templateID)
	return err
}

// ListTemplates returns a tenant's templates.
func (s *SchedulingStore) ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]domain.MessageTemplate, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, tenant_id, name, content, usage_count, created_at
		FROM message_template WHERE tenant_id = $1 ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MessageTemplate
	for rows.Next() {
		var t domain.MessageTemplate
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.Content, &t.UsageCount, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateScheduledMessage persists a due-in-the-future outbound message.
func (s *SchedulingStore) CreateScheduledMessage(ctx context.Context, m domain.ScheduledMessage) (*domain.ScheduledMessage, error) {
	var criteria []byte
	if m.RecipientCriteria != nil {
		var err error
		criteria, err = json.Marshal(m.RecipientCriteria)
		if err != nil {
			return nil, err
		}
	}
	templateContext, err := json.Marshal(m.TemplateContext)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, err
	}

	err = s.DB.QueryRow(ctx, `
		INSERT INTO scheduled_message
			(tenant_id, customer_id, recipient_criteria, template_id, content, template_context, type, scheduled_at, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
		RETURNING id, created_at
	`, m.TenantID, m.CustomerID, criteria, m.TemplateID, m.Content, templateContext, m.Type, m.ScheduledAt, metadata).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = domain.ScheduledPending
	return &m, nil
}

// CancelScheduledMessage marks a pending scheduled message canceled,
// scoped to the tenant so an operator can't cancel another tenant's work.
func (s *SchedulingStore) CancelScheduledMessage(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE scheduled_message SET status = 'canceled'
		WHERE id = $1 AND tenant_id = $2 AND status = 'pending'
	`, id, tenantID)
	return err
}

// CancelByAppointment cancels every still-pending scheduled message tagged
// with the given appointment id in its metadata ("on
// appointment cancellation, the associated pending ScheduledMessages are
// transitioned to canceled").
func (s *SchedulingStore) CancelByAppointment(ctx context.Context, tenantID, appointmentID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE scheduled_message
		SET status = 'canceled'
		WHERE tenant_id = $1 AND status = 'pending' AND metadata @> $2::jsonb
	`, tenantID, []byte(`{"appointment_id":"`+appointmentID.String()+`"}`))
	return err
}

// DuePending returns pending scheduled messages whose due time has
// arrived, for the worker's poll tick.
func (s *SchedulingStore) DuePending(ctx context.Context, asOf time.Time, limit int) ([]domain.ScheduledMessage, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, tenant_id, customer_id, recipient_criteria, template_id, content, template_context,
		       type, scheduled_at, created_at, status, sent_message_id, failure_reason, metadata
		FROM scheduled_message
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduledMessage
	for rows.Next() {
		var m domain.ScheduledMessage
		var criteriaRaw, templateContextRaw, metadataRaw []byte
		if err := rows.Scan(&m.ID, &m.TenantID, &m.CustomerID, &criteriaRaw, &m.TemplateID, &m.Content,
			&templateContextRaw, &m.Type, &m.ScheduledAt, &m.CreatedAt, &m.Status, &m.SentMessageID,
			&m.FailureReason, &metadataRaw); err != nil {
			return nil, err
		}
		if len(criteriaRaw) > 0 {
			var rc domain.RecipientCriteria
			if err := json.Unmarshal(criteriaRaw, &rc); err != nil {
				return nil, err
			}
			m.RecipientCriteria = &rc
		}
		if err := json.Unmarshal(templateContextRaw, &m.TemplateContext); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadataRaw, &m.Metadata); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkScheduledSent records the successful dispatch of a scheduled message.
func (s *SchedulingStore) MarkScheduledSent(ctx context.Context, id, sentMessageID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `UPDATE scheduled_message SET status = 'sent', sent_message_id = $1 WHERE id = $2`, sentMessageID, id)
	return err
}

// MarkScheduledFailed records a terminal dispatch failure.
func (s *SchedulingStore) MarkScheduledFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.DB.Exec(ctx, `UPDATE scheduled_message SET status = 'failed', failure_reason = $1 WHERE id = $2`, reason, id)
	return err
}
