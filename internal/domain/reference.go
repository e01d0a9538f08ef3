package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxLiveReferenceContexts bounds how many recent lists are considered live
// ("at most the 5 most recent live contexts per
// conversation").
const MaxLiveReferenceContexts = 5

// ReferenceContextTTL is the maximum lifetime of a reference list:
// expires_at - created_at <= 5 minutes.
const ReferenceContextTTL = 5 * time.Minute

// ReferenceItem is one addressable entry in an enumerated list shown to the
// customer (a product, a service, an option).
type ReferenceItem struct {
	Index      int // 1-based, matches the numeric resolution contract
	EntityID   uuid.UUID
	EntityKind string
	Label      string
	Attributes map[string]string // for descriptive resolution ("the blue one")
}

// ReferenceListType distinguishes what kind of enumeration this is, so
// resolution can disambiguate across simultaneously-live lists.
type ReferenceListType string

const (
	ReferenceListProducts ReferenceListType = "products"
	ReferenceListServices ReferenceListType = "services"
	ReferenceListOptions  ReferenceListType = "options"
)

// ReferenceContext is a short-TTL record of items last shown to a customer,
// used to resolve deictic references like "1" or "the first one".
type ReferenceContext struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	ListType       ReferenceListType
	Items          []ReferenceItem
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Live reports whether this context is still addressable at time `at`.
func (r ReferenceContext) Live(at time.Time) bool {
	return at.Before(r.ExpiresAt)
}

// NewReferenceContext builds a context with the default TTL.
func NewReferenceContext(conversationID uuid.UUID, listType ReferenceListType, items []ReferenceItem, now time.Time) ReferenceContext {
	return ReferenceContext{
		ID:             uuid.New(),
		ConversationID: conversationID,
		ListType:       listType,
		Items:          items,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ReferenceContextTTL),
	}
}
