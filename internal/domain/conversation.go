package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConsentFlags are the three opt-in categories this defines;
// transactional cannot be opted out.
type ConsentFlags struct {
	PromotionalMessages  bool
	ReminderMessages     bool
	TransactionalMessages bool // always true in practice; retained for symmetry
}

// Customer is (tenant_id, phone_e164) unique; customers in different
// tenants sharing a phone number are wholly independent rows.
type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	PhoneE164 string
	Name      string
	Tags      []string
	Language  string
	Consent   ConsentFlags
	CreatedAt time.Time
	DeletedAt *time.Time
}

// ConversationStatus enumerates a conversation's lifecycle.
type ConversationStatus string

const (
	ConversationOpen    ConversationStatus = "open"
	ConversationBot     ConversationStatus = "bot"
	ConversationHandoff ConversationStatus = "handoff"
	ConversationClosed  ConversationStatus = "closed"
	ConversationDormant ConversationStatus = "dormant"
)

// SessionGapThreshold is the maximal gap that keeps two messages in the same
// session ("no gap >= 24h").
const SessionGapThreshold = 24 * time.Hour

// Conversation is the per-customer, tenant-scoped message thread.
type Conversation struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	CustomerID          uuid.UUID
	Status              ConversationStatus
	CurrentSessionStart time.Time
	SessionMessageCount int
	LastInboundAt       *time.Time
	CreatedAt           time.Time
	DeletedAt           *time.Time
}

// StartsNewSession reports whether an inbound message arriving at `at`
// begins a new session (gap since the last inbound is >= the threshold).
func (c *Conversation) StartsNewSession(at time.Time) bool {
	if c.LastInboundAt == nil {
		return true
	}
	return at.Sub(*c.LastInboundAt) >= SessionGapThreshold
}

// Direction is the flow of a Message relative to the tenant.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageType tags a message for consent/rate-limit/quiet-hours routing.
type MessageType string

const (
	MessageCustomerInbound         MessageType = "customer_inbound"
	MessageManualOutbound          MessageType = "manual_outbound"
	MessageAutomatedTransactional  MessageType = "automated_transactional"
	MessageReminder                MessageType = "reminder"
	MessageReEngagement            MessageType = "re_engagement"
	MessageFallback                MessageType = "fallback"
	MessageCampaign                MessageType = "campaign"
)

// TimeSensitive reports whether this message type bypasses harmonization
// and quiet hours: only automated transactional sends are, and they are
// never deferred or batched.
func (t MessageType) TimeSensitive() bool {
	return t == MessageAutomatedTransactional
}

// ConsentBypass reports whether this message type skips the consent check
//  : transactional always, reminders/re-engagement
// conditionally (checked by the caller against the customer's specific
// consent flag).
func (t MessageType) ConsentBypass() bool {
	return t == MessageAutomatedTransactional
}

// MessageStatus is the delivery lifecycle of one Message row.
type MessageStatus string

const (
	MessageQueued   MessageStatus = "queued"
	MessageSent     MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead     MessageStatus = "read"
	MessageFailed   MessageStatus = "failed"
)

// Message is one inbound or outbound WhatsApp message.
type Message struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ConversationID    uuid.UUID
	Direction         Direction
	Type              MessageType
	Content           string
	ProviderMessageID string
	Status            MessageStatus
	FailureReason     string
	CreatedAt         time.Time
}

// CheckoutState is the finite set of checkout lifecycle states.
// ConversationContext's checkout_state field must always be one of these.
type CheckoutState string

const (
	CheckoutBrowsing              CheckoutState = "browsing"
	CheckoutProductSelected       CheckoutState = "product_selected"
	CheckoutQuantityConfirmed     CheckoutState = "quantity_confirmed"
	CheckoutPaymentMethodSelected CheckoutState = "payment_method_selected"
	CheckoutPaymentInitiated      CheckoutState = "payment_initiated"
	CheckoutPaid                  CheckoutState = "paid"
	CheckoutFailed                CheckoutState = "failed"
	CheckoutClosed                CheckoutState = "closed"
)

// ConversationContext is volatile, at-most-one-per-conversation state
// carried between turns.
type ConversationContext struct {
	ConversationID      uuid.UUID
	LastCustomerMessage string
	LastBotMessage      string
	HarmonizationBuffer []string
	CheckoutState       CheckoutState
	SelectedVariantID   *uuid.UUID
	SelectedQuantity    int
	LockedLanguage      string
	LowConfidenceTurns  int
	Metadata            map[string]any
	UpdatedAt           time.Time
}
