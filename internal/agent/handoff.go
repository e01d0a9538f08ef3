package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/metrics"
)

// handoffReason names why a turn escalated to a human, for the
// AgentHandoffTotal metric label and the audit trail.
type handoffReason string

const (
	handoffLowConfidence    handoffReason = "low_confidence"
	handoffRepeatedLowConf  handoffReason = "repeated_low_confidence"
	handoffChainExhausted   handoffReason = "llm_chain_exhausted"
)

// handoffFallbackMessage is sent to the customer when a turn hands off: it
// never promises a timeline, since no SLA is tracked per conversation.
const handoffFallbackMessage = "Thanks for your patience — I'm looping in a member of our team to help with this."

// shouldHandoff applies the confidence gate: every turn below threshold
// triggers a handoff and extends the low-confidence streak; once the streak
// reaches maxLowConfidenceTurns the reason becomes repeated_low_confidence
// instead of low_confidence. A turn at or above threshold triggers nothing
// and resets the streak to 0.
func shouldHandoff(confidence float64, lowConfidenceStreak, maxLowConfidenceTurns int, threshold float64) (trigger bool, reason handoffReason, newStreak int) {
	if confidence < threshold {
		newStreak = lowConfidenceStreak + 1
		if newStreak >= maxLowConfidenceTurns {
			return true, handoffRepeatedLowConf, newStreak
		}
		return true, handoffLowConfidence, newStreak
	}
	return false, "", 0
}

// recordHandoff transitions the conversation to handoff status, audits the
// event, and increments the handoff metric. It never returns an error to
// the caller: a failure here must not block the customer-facing fallback
// message the caller may send next, it only gets logged.
func (o *Orchestrator) recordHandoff(ctx context.Context, tenantID, conversationID uuid.UUID, reason handoffReason, log zerolog.Logger) {
	metrics.AgentHandoffTotal.WithLabelValues(string(reason)).Inc()

	if err := o.conversations.UpdateStatus(ctx, tenantID, conversationID, domain.ConversationHandoff); err != nil {
		log.Error().Err(err).Str("conversationId", conversationID.String()).Msg("failed to mark conversation handoff")
	}

	o.audit.Write(domain.AuditLog{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Action:     "agent.handoff",
		TargetType: "conversation",
		TargetID:   conversationID.String(),
		After:      map[string]any{"reason": string(reason)},
	})
}
