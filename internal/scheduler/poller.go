package scheduler

import (
	"context"
	"time"

	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	"github.com/tulia-commerce/convoapi/internal/metrics"
)

// dispatchDue claims a batch of due scheduled messages and attempts
// delivery through the ordinary dispatcher contract, so a scheduled send
// gets the same consent/rate-limit/quiet-hours treatment as any other
// outbound message.
func (s *Service) dispatchDue(ctx context.Context) error {
	now := time.Now()
	due, err := s.scheduling.DuePending(ctx, now, s.BatchSize)
	if err != nil {
		return err
	}

	for _, sm := range due {
		if sm.CustomerID == nil {
			// Audience-based rows (criteria rather than one fixed customer)
			// are expanded into per-customer rows by the campaign sender
			// before they ever reach DuePending; nothing reaches here
			// without a resolved customer.
			if err := s.scheduling.MarkScheduledFailed(ctx, sm.ID, "scheduled message has no resolved recipient"); err != nil {
				s.log.Error().Err(err).Str("scheduledMessageId", sm.ID.String()).Msg("failed to mark unresolvable scheduled message")
			}
			metrics.ScheduledDispatchTotal.WithLabelValues("unresolved_recipient").Inc()
			continue
		}

		tenant, err := s.tenants.GetByID(ctx, sm.TenantID)
		if err != nil {
			s.log.Error().Err(err).Str("scheduledMessageId", sm.ID.String()).Msg("failed to load tenant for scheduled message")
			continue
		}
		customer, err := s.conversations.GetCustomer(ctx, sm.TenantID, *sm.CustomerID)
		if err != nil {
			_ = s.scheduling.MarkScheduledFailed(ctx, sm.ID, "customer not found: "+err.Error())
			metrics.ScheduledDispatchTotal.WithLabelValues("failed").Inc()
			continue
		}
		conv, err := s.conversations.GetOrCreateOpenConversation(ctx, sm.TenantID, customer.ID)
		if err != nil {
			_ = s.scheduling.MarkScheduledFailed(ctx, sm.ID, "conversation lookup failed: "+err.Error())
			metrics.ScheduledDispatchTotal.WithLabelValues("failed").Inc()
			continue
		}

		res, err := s.dispatch.Send(ctx, tenant, customer, dispatcher.Request{
			TenantID:        sm.TenantID,
			ConversationID:  conv.ID,
			CustomerID:      customer.ID,
			ToPhone:         customer.PhoneE164,
			Type:            sm.Type,
			Content:         sm.Content,
			TemplateID:      sm.TemplateID,
			TemplateContext: sm.TemplateContext,
		}, now)
		if err != nil && res.Outcome != dispatcher.OutcomeDeferredQuietHours {
			if markErr := s.scheduling.MarkScheduledFailed(ctx, sm.ID, err.Error()); markErr != nil {
				s.log.Error().Err(markErr).Str("scheduledMessageId", sm.ID.String()).Msg("failed to mark scheduled message failed")
			}
			metrics.ScheduledDispatchTotal.WithLabelValues("failed").Inc()
			continue
		}

		switch res.Outcome {
		case dispatcher.OutcomeSent:
			if err := s.scheduling.MarkScheduledSent(ctx, sm.ID, res.MessageID); err != nil {
				s.log.Error().Err(err).Str("scheduledMessageId", sm.ID.String()).Msg("failed to mark scheduled message sent")
			}
			metrics.ScheduledDispatchTotal.WithLabelValues("sent").Inc()
		case dispatcher.OutcomeDeferredQuietHours, dispatcher.OutcomeRateLimited:
			// The dispatcher already requeued a fresh ScheduledMessage for
			// the retry; this original row is left pending and will be
			// reclaimed again unless the caller also cancels it. To avoid
			// an infinite reclaim loop we cancel the original row here,
			// since the dispatcher's requeue is the new source of truth.
			if err := s.scheduling.CancelScheduledMessage(ctx, sm.TenantID, sm.ID); err != nil {
				s.log.Error().Err(err).Str("scheduledMessageId", sm.ID.String()).Msg("failed to cancel superseded scheduled message")
			}
			metrics.ScheduledDispatchTotal.WithLabelValues(string(res.Outcome)).Inc()
		case dispatcher.OutcomeSkippedNoConsent:
			if err := s.scheduling.MarkScheduledFailed(ctx, sm.ID, "consent withdrawn"); err != nil {
				s.log.Error().Err(err).Str("scheduledMessageId", sm.ID.String()).Msg("failed to mark scheduled message failed")
			}
			metrics.ScheduledDispatchTotal.WithLabelValues("skipped_no_consent").Inc()
		default:
			if err := s.scheduling.MarkScheduledFailed(ctx, sm.ID, res.FailureReason); err != nil {
				s.log.Error().Err(err).Str("scheduledMessageId", sm.ID.String()).Msg("failed to mark scheduled message failed")
			}
			metrics.ScheduledDispatchTotal.WithLabelValues("failed").Inc()
		}
	}
	return nil
}
