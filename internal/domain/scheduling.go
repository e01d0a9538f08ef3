package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledMessageStatus is the lifecycle of a ScheduledMessage row.
type ScheduledMessageStatus string

const (
	ScheduledPending  ScheduledMessageStatus = "pending"
	ScheduledSent     ScheduledMessageStatus = "sent"
	ScheduledFailed   ScheduledMessageStatus = "failed"
	ScheduledCanceled ScheduledMessageStatus = "canceled"
)

// RecipientCriteria selects a dynamic audience instead of one fixed
// customer — used by campaign/re-engagement scheduling. Nil fields mean
// "no constraint on this dimension".
type RecipientCriteria struct {
	Tags              []string
	InactiveForAtLeast *time.Duration
}

// ScheduledMessage is tenant-scoped outbound work with a due time in the
// future (invariant: ScheduledAt > CreatedAt).
type ScheduledMessage struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	CustomerID       *uuid.UUID
	RecipientCriteria *RecipientCriteria
	TemplateID       *uuid.UUID
	Content          string
	TemplateContext  map[string]string
	Type             MessageType
	ScheduledAt      time.Time
	CreatedAt        time.Time
	Status           ScheduledMessageStatus
	SentMessageID    *uuid.UUID
	FailureReason    string
	Metadata         map[string]any
}

// MessageTemplate holds `{{placeholder}}` content and a render usage
// counter.
type MessageTemplate struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Content   string
	UsageCount int
	CreatedAt time.Time
}

// CampaignStatus is the lifecycle of a Campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCanceled  CampaignStatus = "canceled"
)

// CampaignVariant is one A/B-test arm.
type CampaignVariant struct {
	Key       string
	TemplateID uuid.UUID
	Metrics   CampaignMetrics
}

// CampaignMetrics are the per-variant (or per-campaign, for non-AB runs)
// counters this defines.
type CampaignMetrics struct {
	Targeted        int
	Delivered       int
	Failed          int
	Read            int
	Response        int
	Conversion      int
	SkippedNoConsent int
}

// TargetingCriteria selects the campaign audience.
type TargetingCriteria struct {
	Tags                []string
	PurchasedWithin     *time.Duration
	ActiveWithin        *time.Duration
}

// Campaign is tenant-scoped targeted outbound execution, optionally A/B
// tested across 2-N variants (N gated by subscription tier).
type Campaign struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	Targeting  TargetingCriteria
	IsABTest   bool
	Variants   []CampaignVariant
	Status     CampaignStatus
	ScheduledAt *time.Time
	CreatedAt  time.Time
}
