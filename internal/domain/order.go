package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxCheckoutOutboundMessages is the budget invariant of this /
// P7: from ProductSelected through PaymentInitiated inclusive, at most 3
// outbound messages are emitted.
const MaxCheckoutOutboundMessages = 3

// CheckoutSession is the per-conversation cursor driving the state machine.
type CheckoutSession struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	TenantID       uuid.UUID
	ProductVariantID *uuid.UUID
	Quantity       int
	OrderID        *uuid.UUID
	PaymentRequestID *uuid.UUID
	State          CheckoutState
	MessageCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BudgetRemaining reports how many more outbound messages this session may
// emit before breaching the outbound message budget.
func (c CheckoutSession) BudgetRemaining() int {
	remaining := MaxCheckoutOutboundMessages - c.MessageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OrderStatus is the lifecycle of an Order row.
type OrderStatus string

const (
	OrderDraft          OrderStatus = "draft"
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderFulfilled      OrderStatus = "fulfilled"
	OrderCanceled       OrderStatus = "canceled"
)

// OrderLineItem is one product-variant/quantity line, priced server-side
// from the catalog at order-creation time: any client-supplied
// price field is ignored.
type OrderLineItem struct {
	ProductVariantID uuid.UUID
	Quantity         int
	UnitPriceAtCreation decimal.Decimal
}

// LineTotal is quantity * unit price, computed at read time so the stored
// total and the recomputed total can be compared in tests (P8).
func (l OrderLineItem) LineTotal() decimal.Decimal {
	return l.UnitPriceAtCreation.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is tenant-scoped; totals are always server-computed, never trusted
// from client input.
type Order struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ConversationID uuid.UUID
	CustomerID     uuid.UUID
	Status         OrderStatus
	LineItems      []OrderLineItem
	Total          decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ComputeTotal sums line totals; callers must use this rather than any
// customer- or model-supplied figure ("No ad-hoc or
// model-hallucinated prices").
func ComputeTotal(items []OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// PaymentRequestStatus is the lifecycle of one PaymentRequest.
type PaymentRequestStatus string

const (
	PaymentPending   PaymentRequestStatus = "pending"
	PaymentInitiated PaymentRequestStatus = "initiated"
	PaymentSucceeded PaymentRequestStatus = "succeeded"
	PaymentFailed    PaymentRequestStatus = "failed"
	PaymentExpired   PaymentRequestStatus = "expired"
)

// PaymentRequest is linked to at most one Order.
type PaymentRequest struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	OrderID   uuid.UUID
	Provider  string
	Status    PaymentRequestStatus
	ProviderRef string
	CreatedAt time.Time
	UpdatedAt time.Time
}
