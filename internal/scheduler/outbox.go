package scheduler

import (
	"context"
	"time"

	"github.com/tulia-commerce/convoapi/internal/metrics"
)

// drainOutbox dispatches pending outbox rows. There is no tenant-configurable
// delivery transport in scope (email/webhook senders are as out-of-scope as
// the telephony and payment SDKs — outside the capability-contract
// boundary), so the sink here is the structured log stream; cmd/worker is
// where a real transport would be wired in behind the same topic switch.
func (s *Service) drainOutbox(ctx context.Context) error {
	pending, err := s.outbox.Pending(ctx, s.BatchSize)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, entry := range pending {
		s.log.Info().
			Str("tenantId", entry.TenantID.String()).
			Str("topic", entry.Topic).
			RawJSON("payload", entry.Payload).
			Msg("outbox notification dispatched")

		if err := s.outbox.MarkDispatched(ctx, entry.ID, now); err != nil {
			s.log.Error().Err(err).Str("outboxId", entry.ID.String()).Msg("failed to mark outbox entry dispatched")
			metrics.OutboxDrainedTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.OutboxDrainedTotal.WithLabelValues("dispatched").Inc()
	}
	return nil
}
