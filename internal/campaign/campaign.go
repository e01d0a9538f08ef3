// Package campaign drives targeted, consent-filtered outbound execution
// with optional A/B-test variants. Audience targeting
// compiles to a SQL predicate in internal/store; everything else — variant
// partitioning, dispatch, metric accumulation, winner declaration — lives
// here.
package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/store"
)

// ErrTooManyVariants is returned when a campaign requests more A/B variants
// than the tenant's subscription tier allows.
var ErrTooManyVariants = errors.New("campaign: variant count exceeds tier limit")

// ErrTooFewVariants is returned for an A/B campaign with fewer than 2
// variants — there is nothing to split.
var ErrTooFewVariants = errors.New("campaign: A/B campaign needs at least 2 variants")

// Engine creates and executes campaigns.
type Engine struct {
	campaigns     *store.CampaignStore
	conversations *store.ConversationStore
	dispatch      *dispatcher.Dispatcher
	log           zerolog.Logger
}

// New builds a campaign Engine.
func New(campaigns *store.CampaignStore, conversations *store.ConversationStore, dispatch *dispatcher.Dispatcher, log zerolog.Logger) *Engine {
	return &Engine{campaigns: campaigns, conversations: conversations, dispatch: dispatch, log: log}
}

// Create validates the requested variant count against the tenant's tier
// ("creation validates that the tenant's tier permits the
// requested number of A/B variants") and persists a draft campaign.
func (e *Engine) Create(ctx context.Context, tenant *domain.Tenant, name string, targeting domain.TargetingCriteria, variantTemplateIDs []uuid.UUID, scheduledAt *time.Time) (*domain.Campaign, error) {
	isABTest := len(variantTemplateIDs) > 1

	if isABTest {
		tier := domain.TierByID(tenant.SubscriptionTierID)
		if len(variantTemplateIDs) > tier.MaxCampaignVariants {
			return nil, ErrTooManyVariants
		}
	}
	if len(variantTemplateIDs) == 0 {
		return nil, errors.New("campaign: at least one variant template is required")
	}

	variants := make([]domain.CampaignVariant, len(variantTemplateIDs))
	for i, tmplID := range variantTemplateIDs {
		variants[i] = domain.CampaignVariant{Key: variantKey(i), TemplateID: tmplID}
	}

	return e.campaigns.Create(ctx, domain.Campaign{
		TenantID:    tenant.ID,
		Name:        name,
		Targeting:   targeting,
		IsABTest:    isABTest,
		Variants:    variants,
		ScheduledAt: scheduledAt,
	})
}

func variantKey(i int) string {
	return string(rune('A' + i))
}

// ExecutionSummary is the per-run tally this asks for.
type ExecutionSummary struct {
	Targeted       int
	Delivered      int
	Failed         int
	SkippedNoConsent int
}

// Execute runs one campaign to completion: resolves the audience,
// partitions it across variants when A/B tested, dispatches to every
// targeted customer, and accumulates the counters this defines on
// CampaignVariant/Campaign.
func (e *Engine) Execute(ctx context.Context, tenant *domain.Tenant, campaignID uuid.UUID) (*ExecutionSummary, error) {
	c, err := e.campaigns.Get(ctx, tenant.ID, campaignID)
	if err != nil {
		return nil, err
	}

	if err := e.campaigns.UpdateStatus(ctx, tenant.ID, campaignID, domain.CampaignSending); err != nil {
		return nil, err
	}

	now := time.Now()
	audience, err := e.conversations.MatchAudience(ctx, tenant.ID, c.Targeting, now)
	if err != nil {
		return nil, err
	}

	// Step 1: intersect with promotional consent.
	consented := make([]domain.Customer, 0, len(audience))
	for _, cust := range audience {
		if cust.Consent.PromotionalMessages {
			consented = append(consented, cust)
		}
	}

	assignments, err := assignVariants(consented, c.Variants, c.IsABTest)
	if err != nil {
		return nil, err
	}

	summary := &ExecutionSummary{Targeted: len(consented)}
	for _, a := range assignments {
		if err := e.campaigns.RecordVariantMetric(ctx, campaignID, a.variant.Key, "targeted", 1); err != nil {
			e.log.Error().Err(err).Msg("failed to record targeted metric")
		}

		conv, err := e.conversations.GetOrCreateOpenConversation(ctx, tenant.ID, a.customer.ID)
		if err != nil {
			e.log.Error().Err(err).Str("customerId", a.customer.ID.String()).Msg("failed to resolve conversation for campaign send")
			summary.Failed++
			_ = e.campaigns.RecordVariantMetric(ctx, campaignID, a.variant.Key, "failed", 1)
			continue
		}

		res, err := e.dispatch.Send(ctx, tenant, &a.customer, dispatcher.Request{
			TenantID:       tenant.ID,
			ConversationID: conv.ID,
			CustomerID:     a.customer.ID,
			ToPhone:        a.customer.PhoneE164,
			Type:           domain.MessageCampaign,
			TemplateID:     &a.variant.TemplateID,
		}, now)

		switch {
		case res.Outcome == dispatcher.OutcomeSkippedNoConsent:
			summary.SkippedNoConsent++
			_ = e.campaigns.RecordVariantMetric(ctx, campaignID, a.variant.Key, "skippedNoConsent", 1)
		case err != nil || res.Outcome != dispatcher.OutcomeSent:
			summary.Failed++
			_ = e.campaigns.RecordVariantMetric(ctx, campaignID, a.variant.Key, "failed", 1)
		default:
			summary.Delivered++
			_ = e.campaigns.RecordVariantMetric(ctx, campaignID, a.variant.Key, "delivered", 1)
		}
	}

	if err := e.campaigns.UpdateStatus(ctx, tenant.ID, campaignID, domain.CampaignCompleted); err != nil {
		return nil, err
	}
	return summary, nil
}

type assignment struct {
	customer domain.Customer
	variant  domain.CampaignVariant
}

// assignVariants handles the A/B split: for an A/B campaign, shuffle
// the audience and partition it evenly across variants; a non-AB campaign
// sends everyone through its single variant.
func assignVariants(audience []domain.Customer, variants []domain.CampaignVariant, isABTest bool) ([]assignment, error) {
	if len(variants) == 0 {
		return nil, errors.New("campaign: no variants configured")
	}
	if !isABTest {
		out := make([]assignment, len(audience))
		for i, cust := range audience {
			out[i] = assignment{customer: cust, variant: variants[0]}
		}
		return out, nil
	}
	if len(variants) < 2 {
		return nil, ErrTooFewVariants
	}

	shuffled, err := shuffle(audience)
	if err != nil {
		return nil, err
	}

	out := make([]assignment, len(shuffled))
	for i, cust := range shuffled {
		out[i] = assignment{customer: cust, variant: variants[i%len(variants)]}
	}
	return out, nil
}
