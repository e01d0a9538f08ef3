package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/metrics"
)

// defaultReEngagementContent is used verbatim since tenant settings carry
// no re-engagement template slot (tenant settings list branding, business
// hours, feature flags, and credentials only); a tenant wanting custom
// copy configures one through the message_template surface and the sweep
// picks it up once that wiring exists.
const defaultReEngagementContent = "We haven't heard from you in a while — still interested in picking up where we left off?"

const (
	reEngagementThreshold = 7 * 24 * time.Hour
	dormancyThreshold     = 14 * 24 * time.Hour
)

// runDailySweep walks every active tenant and applies the
// re-engagement/dormancy rule: conversations inactive 7-14 days with
// promotional consent get one re-engagement send per sweep; conversations
// inactive >= 14 days are marked dormant and no longer re-engaged.
func (s *Service) runDailySweep(ctx context.Context) error {
	now := time.Now()
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, tenant := range tenants {
		if err := s.sweepTenant(ctx, &tenant, now); err != nil {
			s.log.Error().Err(err).Str("tenantId", tenant.ID.String()).Msg("daily sweep failed for tenant")
		}
	}
	return nil
}

func (s *Service) sweepTenant(ctx context.Context, tenant *domain.Tenant, now time.Time) error {
	stale, err := s.conversations.StaleSince(ctx, tenant.ID, now.Add(-reEngagementThreshold))
	if err != nil {
		return err
	}

	dormantCutoff := now.Add(-dormancyThreshold)
	for _, conv := range stale {
		if conv.LastInboundAt == nil {
			continue
		}
		if conv.LastInboundAt.Before(dormantCutoff) {
			if err := s.conversations.MarkDormant(ctx, tenant.ID, conv.ID); err != nil {
				s.log.Error().Err(err).Str("conversationId", conv.ID.String()).Msg("failed to mark conversation dormant")
				continue
			}
			metrics.ConversationsMarkedDormantTotal.Inc()
			continue
		}

		if err := s.scheduleReEngagement(ctx, tenant, conv.CustomerID, conv.ID, now); err != nil {
			s.log.Error().Err(err).Str("conversationId", conv.ID.String()).Msg("failed to schedule re-engagement")
		}
	}
	return nil
}

// scheduleReEngagement queues an immediate re-engagement send through the
// same scheduled-message path everything else uses, so it picks up the
// poller's consent/rate-limit/quiet-hours handling rather than bypassing
// it. A customer who withdrew promotional consent since their last inbound
// message is skipped by the dispatcher's own consent check, not here.
func (s *Service) scheduleReEngagement(ctx context.Context, tenant *domain.Tenant, customerID, conversationID uuid.UUID, now time.Time) error {
	_, err := s.scheduling.CreateScheduledMessage(ctx, domain.ScheduledMessage{
		TenantID:    tenant.ID,
		CustomerID:  &customerID,
		Content:     defaultReEngagementContent,
		Type:        domain.MessageReEngagement,
		ScheduledAt: now,
		Metadata:    map[string]any{"conversation_id": conversationID.String()},
	})
	if err != nil {
		return err
	}
	metrics.ReEngagementSentTotal.Inc()
	return nil
}
