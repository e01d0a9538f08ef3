package domain

import (
	"time"
)

// EncryptedCredential is an opaque at-rest ciphertext for one integration
// credential field (telephony, e-commerce, LLM provider, payment provider).
// The codec that produces/consumes these lives outside this package — a
// thin {encrypt, decrypt} interface with the key externalized; domain
// types only ever hold ciphertext or, transiently after decode, a
// Masked() projection.
type EncryptedCredential struct {
	Ciphertext []byte
	UpdatedAt  time.Time
}

// Masked returns the representation safe to include in an API response: the
// credential is never round-tripped through JSON in cleartext.
func (c EncryptedCredential) Masked() string {
	if len(c.Ciphertext) == 0 {
		return ""
	}
	return "••••••••"
}

// BusinessHours maps time.Weekday (0=Sunday) to an open/close window.
type BusinessHours [7]*QuietHoursWindow

// QuietHoursWindow is a named pair distinct from QuietHours to avoid
// implying the midnight-wrap semantics business hours don't need.
type QuietHoursWindow struct {
	OpenMinute  int
	CloseMinute int
}

// FeatureFlags is the typed projection of the tenant's feature-flag JSON
// column ("typed access with defaults; the JSON column is a
// serialization format, never a typing shortcut").
type FeatureFlags struct {
	CampaignsEnabled        bool
	SemanticRetrievalEnabled bool
	HandoffAutoReassign     bool
}

// NotificationPreferences controls which internal staff notifications a
// tenant receives (e.g. low-stock, handoff-pending digests).
type NotificationPreferences struct {
	HandoffEmailEnabled bool
	DailyDigestEnabled  bool
	DigestRecipients    []string
}

// Branding holds the WhatsApp-facing persona the AI Agent Orchestrator uses
// when composing prompts: the tenant's branded persona.
type Branding struct {
	BusinessName        string
	AllowedCapabilities  []string
	DisallowedCapabilities []string
	GreetingTemplate    string
}

// IntegrationCredentials groups every encrypted third-party credential a
// tenant may configure.
type IntegrationCredentials struct {
	Telephony       EncryptedCredential
	Ecommerce       EncryptedCredential
	LLMProviders    map[string]EncryptedCredential
	PaymentProvider EncryptedCredential
	WebhookSecret   EncryptedCredential // shared secret for inbound webhook signature verification
}

// TenantSettings is the 1:1 configuration record auto-created alongside a
// Tenant as part of its atomic initialization.
type TenantSettings struct {
	TenantID        string // uuid.UUID.String(), kept as string to avoid import cycle churn at call sites
	Credentials     IntegrationCredentials
	StoreURL        string
	FeatureFlags    FeatureFlags
	BusinessHours   BusinessHours
	Notifications   NotificationPreferences
	Branding        Branding
	OnboardingSteps map[string]bool
	UpdatedAt       time.Time
}

// DefaultTenantSettings returns the settings row created atomically with a
// new tenant, created atomically alongside it.
func DefaultTenantSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID: tenantID,
		FeatureFlags: FeatureFlags{
			CampaignsEnabled:         true,
			SemanticRetrievalEnabled: false,
			HandoffAutoReassign:      false,
		},
		Notifications: NotificationPreferences{
			HandoffEmailEnabled: true,
			DailyDigestEnabled:  false,
		},
		Branding: Branding{
			GreetingTemplate: "Hi! How can I help you today?",
		},
		OnboardingSteps: map[string]bool{
			"connect_whatsapp": false,
			"import_catalog":   false,
			"configure_payment": false,
		},
		UpdatedAt: time.Now().UTC(),
	}
}
