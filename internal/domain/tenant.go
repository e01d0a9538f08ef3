package domain

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle state of a Tenant.
type TenantStatus string

const (
	TenantTrial        TenantStatus = "trial"
	TenantActive        TenantStatus = "active"
	TenantTrialExpired TenantStatus = "trial_expired"
	TenantSuspended    TenantStatus = "suspended"
	TenantCanceled     TenantStatus = "canceled"
)

// validTenantTransitions encodes the monotonic subset of lifecycle moves
// allowed: trial -> {active | trial_expired | canceled};
// active <-> suspended; any -> canceled.
var validTenantTransitions = map[TenantStatus]map[TenantStatus]bool{
	TenantTrial: {
		TenantActive:       true,
		TenantTrialExpired: true,
		TenantCanceled:     true,
	},
	TenantActive: {
		TenantSuspended: true,
		TenantCanceled:  true,
	},
	TenantSuspended: {
		TenantActive:   true,
		TenantCanceled: true,
	},
	TenantTrialExpired: {
		TenantCanceled: true,
	},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// lifecycle transition. Canceled is terminal: no transition leaves it.
func CanTransition(from, to TenantStatus) bool {
	if from == to {
		return true
	}
	if from == TenantCanceled {
		return false
	}
	allowed, ok := validTenantTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// APIKeyEntry is one hashed tenant API key (spec: "ordered list of hashed
// API-key entries"). The plaintext value is never stored; it is shown to
// the caller exactly once at creation time.
type APIKeyEntry struct {
	KeyHash    string
	Name       string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// QuietHours is a daily window, expressed in minutes-since-midnight, during
// which non-time-sensitive outbound messages defer. May wrap past midnight
// (Start > End means the window spans the day boundary).
type QuietHours struct {
	StartMinute int
	EndMinute   int
}

// Contains reports whether the given minute-of-day falls inside the quiet
// window, correctly handling a window that wraps midnight.
func (q QuietHours) Contains(minuteOfDay int) bool {
	if q.StartMinute == q.EndMinute {
		return false
	}
	if q.StartMinute < q.EndMinute {
		return minuteOfDay >= q.StartMinute && minuteOfDay < q.EndMinute
	}
	// Wraps midnight, e.g. 22:00-08:00.
	return minuteOfDay >= q.StartMinute || minuteOfDay < q.EndMinute
}

// NextExit returns the first instant after `at`, in at's location, whose
// minute-of-day is the window's EndMinute, advancing to the next day when
// needed.
func (q QuietHours) NextExit(at time.Time) time.Time {
	loc := at.Location()
	dayStart := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, loc)
	exit := dayStart.Add(time.Duration(q.EndMinute) * time.Minute)
	if !exit.After(at) {
		exit = exit.AddDate(0, 0, 1)
	}
	return exit
}

// Tenant is the top-level multi-tenancy boundary; every other entity except
// Permission and SubscriptionTier is scoped to one.
type Tenant struct {
	ID                 uuid.UUID
	Name               string
	Slug               string
	Status             TenantStatus
	TrialEndsAt        *time.Time
	SubscriptionTierID string
	WhatsAppNumber     string
	Timezone           string
	QuietHours         QuietHours
	APIKeys            []APIKeyEntry
	AllowedOrigins     []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// SubscriptionTier is global (not tenant-scoped) and gates daily message
// quotas and campaign A/B variant counts. Subscription billing internals
// are out of scope; tiers are a small static registry,
// not a persisted aggregate.
type SubscriptionTier struct {
	ID                  string
	Name                string
	DailyMessageQuota   int
	MaxCampaignVariants int
}

// tiers is the static registry keyed by Tenant.SubscriptionTierID.
var tiers = map[string]SubscriptionTier{
	"starter": {ID: "starter", Name: "Starter", DailyMessageQuota: 1000, MaxCampaignVariants: 2},
	"growth":  {ID: "growth", Name: "Growth", DailyMessageQuota: 10000, MaxCampaignVariants: 3},
	"scale":   {ID: "scale", Name: "Scale", DailyMessageQuota: 100000, MaxCampaignVariants: 5},
}

// TierByID resolves a subscription tier, falling back to the most
// conservative (starter) quota for an unrecognized id rather than
// granting unlimited messaging.
func TierByID(id string) SubscriptionTier {
	if t, ok := tiers[id]; ok {
		return t
	}
	return tiers["starter"]
}
