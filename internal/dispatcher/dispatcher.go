// Package dispatcher implements the contract every outbound message goes
// through: consent check, rate-limit check, quiet-hours check, template
// rendering, then a hand-off to the telephony capability.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/metrics"
	"github.com/tulia-commerce/convoapi/internal/store"
	"github.com/tulia-commerce/convoapi/internal/telephony"
)

// Outcome is the terminal disposition of one Send call.
type Outcome string

const (
	OutcomeSent              Outcome = "sent"
	OutcomeFailed            Outcome = "failed"
	OutcomeSkippedNoConsent  Outcome = "skipped_no_consent"
	OutcomeRateLimited       Outcome = "rate_limited"
	OutcomeDeferredQuietHours Outcome = "deferred_quiet_hours"
)

// ErrRateLimited is returned for an explicit user-initiated send that hits
// the tenant's daily quota.
var ErrRateLimited = errors.New("dispatcher: tenant daily message quota exceeded")

// Request is one outbound send attempt.
type Request struct {
	TenantID        uuid.UUID
	ConversationID  uuid.UUID
	CustomerID      uuid.UUID
	ToPhone         string
	Type            domain.MessageType
	Content         string // used directly when TemplateID is nil
	TemplateID      *uuid.UUID
	TemplateContext map[string]string
}

// Result reports what happened to one Send call.
type Result struct {
	Outcome           Outcome
	ProviderMessageID string
	FailureReason     string
	MessageID         uuid.UUID // the persisted Message row's id, set on Sent and Failed
}

// Dispatcher applies the full outbound contract before handing a message to
// telephony.Sender.
type Dispatcher struct {
	conversations *store.ConversationStore
	scheduling    *store.SchedulingStore
	sender        telephony.Sender
	rateLimiter   *RateLimiter
	log           zerolog.Logger

	// RateLimitWarningThreshold is set to 0.8 by New. Send does not read it:
	// RateLimiter.check applies its own fixed 80% warning point.
	RateLimitWarningThreshold float64
}

// New builds a Dispatcher.
func New(conversations *store.ConversationStore, scheduling *store.SchedulingStore, sender telephony.Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		conversations:             conversations,
		scheduling:                scheduling,
		sender:                    sender,
		rateLimiter:               NewRateLimiter(),
		log:                       log,
		RateLimitWarningThreshold: 0.8,
	}
}

// Send runs the full outbound send contract: consent, rate-limit, quiet-hours,
// template rendering, then the telephony hand-off and Message persistence.
func (d *Dispatcher) Send(ctx context.Context, tenant *domain.Tenant, customer *domain.Customer, req Request, now time.Time) (Result, error) {
	// 1. Consent check.
	if !req.Type.ConsentBypass() && !d.hasConsent(req.Type, customer) {
		metrics.DispatchOutcomesTotal.WithLabelValues(string(OutcomeSkippedNoConsent)).Inc()
		return Result{Outcome: OutcomeSkippedNoConsent}, nil
	}

	// 2. Rate-limit check (sliding 24h window against the tier's daily quota).
	tier := domain.TierByID(tenant.SubscriptionTierID)
	check := d.rateLimiter.check(tenant.ID, tier.DailyMessageQuota, now)
	if check.warnThreshold {
		metrics.RateLimitWarningsTotal.Inc()
		d.log.Warn().
			Str("tenantId", tenant.ID.String()).
			Int("used", check.usedOfQuota).
			Int("quota", check.quota).
			Msg("tenant at 80% of daily message quota")
	}
	if !check.allowed {
		return d.handleRateLimited(ctx, tenant, req, now)
	}

	// 3. Quiet-hours check (time-sensitive sends bypass entirely).
	if !req.Type.TimeSensitive() {
		loc := tenantTimezone(tenant)
		localNow := now.In(loc)
		minuteOfDay := localNow.Hour()*60 + localNow.Minute()
		if tenant.QuietHours.Contains(minuteOfDay) {
			return d.deferToQuietHoursExit(ctx, tenant, req, now)
		}
	}

	// 4. Template rendering.
	content := req.Content
	var templateID *uuid.UUID
	if req.TemplateID != nil {
		tmpl, err := d.scheduling.GetTemplate(ctx, tenant.ID, *req.TemplateID)
		if err != nil {
			return d.fail(ctx, req, "template lookup failed: "+err.Error())
		}
		content = render(tmpl.Content, req.TemplateContext)
		templateID = &tmpl.ID
	}

	// 5. Hand off to telephony and record the result.
	providerMessageID, err := d.sender.Send(ctx, tenant.ID, req.ToPhone, content)
	if err != nil {
		res, recErr := d.fail(ctx, req, err.Error())
		if recErr != nil {
			return res, recErr
		}
		return res, nil
	}

	msg, err := d.conversations.RecordOutbound(ctx, tenant.ID, req.ConversationID, req.Type, content, providerMessageID, domain.MessageSent, "")
	if err != nil {
		return Result{}, err
	}
	if templateID != nil {
		if err := d.scheduling.IncrementTemplateUsage(ctx, *templateID); err != nil {
			d.log.Warn().Err(err).Msg("failed to increment template usage")
		}
	}

	d.rateLimiter.record(tenant.ID, now, check.warnThreshold)
	metrics.DispatchOutcomesTotal.WithLabelValues(string(OutcomeSent)).Inc()
	return Result{Outcome: OutcomeSent, ProviderMessageID: providerMessageID, MessageID: msg.ID}, nil
}

func (d *Dispatcher) hasConsent(t domain.MessageType, customer *domain.Customer) bool {
	switch t {
	case domain.MessageReminder:
		return customer.Consent.ReminderMessages
	case domain.MessageReEngagement, domain.MessageCampaign:
		return customer.Consent.PromotionalMessages
	default:
		return true
	}
}

// handleRateLimited implements the daily-quota exceedance branch:
// campaign/re-engagement sends are queued for the next day; everything
// else fails outright with a rate-limit error. Permanent failures do not
// decrement the rate-limit counter, because nothing was ever recorded
// against it.
func (d *Dispatcher) handleRateLimited(ctx context.Context, tenant *domain.Tenant, req Request, now time.Time) (Result, error) {
	metrics.DispatchOutcomesTotal.WithLabelValues(string(OutcomeRateLimited)).Inc()

	if req.Type == domain.MessageCampaign || req.Type == domain.MessageReEngagement {
		if _, err := d.scheduling.CreateScheduledMessage(ctx, domain.ScheduledMessage{
			TenantID:        tenant.ID,
			CustomerID:      &req.CustomerID,
			TemplateID:      req.TemplateID,
			Content:         req.Content,
			TemplateContext: req.TemplateContext,
			Type:            req.Type,
			ScheduledAt:     now.Add(24 * time.Hour),
		}); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeRateLimited}, nil
	}

	return Result{Outcome: OutcomeRateLimited, FailureReason: ErrRateLimited.Error()}, ErrRateLimited
}

// deferToQuietHoursExit reschedules a non-time-sensitive send that falls
// inside quiet hours for the next exit-of-quiet-hours boundary, rather
// than sending or dropping it now.
func (d *Dispatcher) deferToQuietHoursExit(ctx context.Context, tenant *domain.Tenant, req Request, now time.Time) (Result, error) {
	exit := tenant.QuietHours.NextExit(now.In(tenantTimezone(tenant)))
	if _, err := d.scheduling.CreateScheduledMessage(ctx, domain.ScheduledMessage{
		TenantID:        tenant.ID,
		CustomerID:      &req.CustomerID,
		TemplateID:      req.TemplateID,
		Content:         req.Content,
		TemplateContext: req.TemplateContext,
		Type:            req.Type,
		ScheduledAt:     exit,
	}); err != nil {
		return Result{}, err
	}
	metrics.DispatchOutcomesTotal.WithLabelValues(string(OutcomeDeferredQuietHours)).Inc()
	return Result{Outcome: OutcomeDeferredQuietHours}, nil
}

func (d *Dispatcher) fail(ctx context.Context, req Request, reason string) (Result, error) {
	metrics.DispatchOutcomesTotal.WithLabelValues(string(OutcomeFailed)).Inc()
	msg, err := d.conversations.RecordOutbound(ctx, req.TenantID, req.ConversationID, req.Type, req.Content, "", domain.MessageFailed, reason)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeFailed, FailureReason: reason, MessageID: msg.ID}, nil
}

// tenantTimezone resolves the tenant's quiet-hours timezone. The
// persistence model carries no per-customer timezone field, so a
// customer-specific timezone is never available here — every quiet-hours
// check uses the tenant's.
func tenantTimezone(tenant *domain.Tenant) *time.Location {
	if loc, err := time.LoadLocation(tenant.Timezone); err == nil {
		return loc
	}
	return time.UTC
}
