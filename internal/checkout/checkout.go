// Package checkout drives the deterministic state machine that turns a
// browsing conversation into a paid order. Catalog and payment
// capabilities are narrow collaborator interfaces, not reimplemented here
// (out of scope).
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/metrics"
	"github.com/tulia-commerce/convoapi/internal/store"
)

// ErrInvalidTransition is returned when a caller requests a transition the
// current state doesn't allow.
var ErrInvalidTransition = errors.New("checkout: invalid state transition")

// ErrBudgetExceeded is returned when the 3-outbound-message budget
// (ProductSelected through PaymentInitiated inclusive) is spent;
// callers must hand off rather than keep emitting messages.
var ErrBudgetExceeded = errors.New("checkout: outbound message budget exceeded")

// ErrOutOfStock is returned when a product reference resolves to a variant
// that isn't available in the requested quantity.
var ErrOutOfStock = errors.New("checkout: requested quantity exceeds available stock")

// ErrUnverifiedCallback is returned when a payment callback's signature
// doesn't verify; the callback is logged and dropped, never trusted.
var ErrUnverifiedCallback = errors.New("checkout: payment callback signature did not verify")

// VariantInfo is what the catalog collaborator returns about a variant.
type VariantInfo struct {
	Price           decimal.Decimal
	AvailableStock  int
}

// Catalog resolves product variant price and stock. Admin/CRUD for the
// catalog itself is out of scope — this is a narrow
// capability contract over an external collaborator.
type Catalog interface {
	VariantInfo(ctx context.Context, tenantID, variantID uuid.UUID) (VariantInfo, error)
}

// PaymentInitiator invokes the tenant's configured payment capability.
// Returns a provider reference on success.
type PaymentInitiator interface {
	Initiate(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, provider string) (providerRef string, err error)
}

// CallbackVerifier authenticates a provider-signed payment callback.
// Unverifiable signatures are logged and dropped, never trusted.
type CallbackVerifier interface {
	VerifySignature(payload []byte, signature string) bool
}

var transitions = map[domain.CheckoutState][]domain.CheckoutState{
	domain.CheckoutBrowsing:              {domain.CheckoutProductSelected},
	domain.CheckoutProductSelected:       {domain.CheckoutProductSelected, domain.CheckoutQuantityConfirmed},
	domain.CheckoutQuantityConfirmed:     {domain.CheckoutPaymentMethodSelected, domain.CheckoutProductSelected},
	domain.CheckoutPaymentMethodSelected: {domain.CheckoutPaymentInitiated, domain.CheckoutFailed},
	domain.CheckoutPaymentInitiated:      {domain.CheckoutPaid, domain.CheckoutFailed},
	domain.CheckoutPaid:                  {domain.CheckoutClosed},
	domain.CheckoutFailed:                {domain.CheckoutClosed, domain.CheckoutProductSelected},
	domain.CheckoutClosed:                {},
}

func canTransition(from, to domain.CheckoutState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func budgeted(s domain.CheckoutState) bool {
	switch s {
	case domain.CheckoutProductSelected, domain.CheckoutQuantityConfirmed,
		domain.CheckoutPaymentMethodSelected, domain.CheckoutPaymentInitiated:
		return true
	}
	return false
}

// Machine drives CheckoutSession transitions for one tenant's conversations.
type Machine struct {
	orders   *store.OrderStore
	catalog  Catalog
	payments PaymentInitiator
	verifier CallbackVerifier
	log      zerolog.Logger
}

// New builds a Machine.
func New(orders *store.OrderStore, catalog Catalog, payments PaymentInitiator, verifier CallbackVerifier, log zerolog.Logger) *Machine {
	return &Machine{orders: orders, catalog: catalog, payments: payments, verifier: verifier, log: log}
}

func (m *Machine) transition(ctx context.Context, cs *domain.CheckoutSession, to domain.CheckoutState) error {
	if !canTransition(cs.State, to) {
		return ErrInvalidTransition
	}
	from := cs.State
	cs.State = to
	if err := m.orders.UpdateCheckoutSession(ctx, cs); err != nil {
		return err
	}
	metrics.CheckoutTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

// RecordOutboundMessage must be called by the orchestrator immediately
// after it actually sends a message while the session is in a budgeted
// state (ProductSelected through PaymentInitiated). It enforces the
// 3-message cap; callers must hand off on ErrBudgetExceeded
// rather than keep talking.
func (m *Machine) RecordOutboundMessage(ctx context.Context, cs *domain.CheckoutSession) error {
	if !budgeted(cs.State) {
		return nil
	}
	if cs.BudgetRemaining() <= 0 {
		metrics.CheckoutOutboundBudgetExceeded.Inc()
		return ErrBudgetExceeded
	}
	cs.MessageCount++
	return m.orders.UpdateCheckoutSession(ctx, cs)
}

// SelectProduct moves Browsing (or re-selection from ProductSelected) to
// ProductSelected once the reference resolver (internal/refctx) has
// already mapped the customer's phrase to a variant id.
func (m *Machine) SelectProduct(ctx context.Context, tenantID, conversationID, variantID uuid.UUID) (*domain.CheckoutSession, error) {
	cs, err := m.orders.GetOrCreateCheckoutSession(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	info, err := m.catalog.VariantInfo(ctx, tenantID, variantID)
	if err != nil {
		return nil, err
	}
	if info.AvailableStock <= 0 {
		return nil, ErrOutOfStock
	}

	if cs.State == domain.CheckoutBrowsing {
		if err := m.transition(ctx, cs, domain.CheckoutProductSelected); err != nil {
			return nil, err
		}
	} else if cs.State != domain.CheckoutProductSelected {
		return nil, ErrInvalidTransition
	}

	cs.ProductVariantID = &variantID
	cs.Quantity = 1
	if err := m.orders.UpdateCheckoutSession(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// ConfirmQuantity moves ProductSelected to QuantityConfirmed once the
// customer has supplied a positive integer not exceeding stock.
func (m *Machine) ConfirmQuantity(ctx context.Context, tenantID, conversationID uuid.UUID, quantity int) (*domain.CheckoutSession, error) {
	if quantity <= 0 {
		return nil, errors.New("checkout: quantity must be positive")
	}

	cs, err := m.orders.GetOrCreateCheckoutSession(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if cs.State != domain.CheckoutProductSelected || cs.ProductVariantID == nil {
		return nil, ErrInvalidTransition
	}

	info, err := m.catalog.VariantInfo(ctx, tenantID, *cs.ProductVariantID)
	if err != nil {
		return nil, err
	}
	if quantity > info.AvailableStock {
		return nil, ErrOutOfStock
	}

	cs.Quantity = quantity
	if err := m.transition(ctx, cs, domain.CheckoutQuantityConfirmed); err != nil {
		return nil, err
	}
	return cs, nil
}

// CreateOrder moves QuantityConfirmed to PaymentMethodSelected, atomically
// creating an Order priced entirely from catalog prices (no
// client- or model-supplied price is ever trusted).
func (m *Machine) CreateOrder(ctx context.Context, tenantID, conversationID, customerID uuid.UUID) (*domain.CheckoutSession, *domain.Order, error) {
	cs, err := m.orders.GetOrCreateCheckoutSession(ctx, tenantID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if cs.State != domain.CheckoutQuantityConfirmed || cs.ProductVariantID == nil {
		return nil, nil, ErrInvalidTransition
	}

	info, err := m.catalog.VariantInfo(ctx, tenantID, *cs.ProductVariantID)
	if err != nil {
		return nil, nil, err
	}
	if cs.Quantity > info.AvailableStock {
		return nil, nil, ErrOutOfStock
	}

	items := []store.VariantPrice{{ProductVariantID: *cs.ProductVariantID, UnitPrice: info.Price}}
	quantities := map[uuid.UUID]int{*cs.ProductVariantID: cs.Quantity}

	order, err := m.orders.CreateOrder(ctx, tenantID, conversationID, customerID, items, quantities)
	if err != nil {
		return nil, nil, err
	}
	cs.OrderID = &order.ID

	if err := m.transition(ctx, cs, domain.CheckoutPaymentMethodSelected); err != nil {
		return nil, nil, err
	}
	return cs, order, nil
}

// InitiatePayment moves PaymentMethodSelected to PaymentInitiated. Payment
// initiation is retried once with a short backoff; persistent failure
// transitions straight to Failed rather than leaving the session stuck.
func (m *Machine) InitiatePayment(ctx context.Context, tenantID, conversationID uuid.UUID, provider string) (*domain.CheckoutSession, error) {
	cs, err := m.orders.GetOrCreateCheckoutSession(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if cs.State != domain.CheckoutPaymentMethodSelected || cs.OrderID == nil {
		return nil, ErrInvalidTransition
	}

	pr, err := m.orders.CreatePaymentRequest(ctx, tenantID, *cs.OrderID, provider)
	if err != nil {
		return nil, err
	}
	cs.PaymentRequestID = &pr.ID

	var amount decimal.Decimal
	if cs.Quantity > 0 && cs.ProductVariantID != nil {
		info, err := m.catalog.VariantInfo(ctx, tenantID, *cs.ProductVariantID)
		if err == nil {
			amount = info.Price.Mul(decimal.NewFromInt(int64(cs.Quantity)))
		}
	}

	providerRef, initErr := m.initiateWithRetry(ctx, *cs.OrderID, amount, provider)
	if initErr != nil {
		m.log.Warn().Err(initErr).Str("orderId", cs.OrderID.String()).Msg("payment initiation failed persistently")
		if err := m.orders.MarkPaymentResult(ctx, pr.ID, false, ""); err != nil {
			return nil, err
		}
		if err := m.transition(ctx, cs, domain.CheckoutFailed); err != nil {
			return nil, err
		}
		return cs, nil
	}

	if err := m.orders.MarkPaymentInitiated(ctx, pr.ID, providerRef); err != nil {
		return nil, err
	}
	if err := m.transition(ctx, cs, domain.CheckoutPaymentInitiated); err != nil {
		return nil, err
	}
	return cs, nil
}

// initiateWithRetry retries exactly once with a short fixed backoff;
// persistent failure transitions the session to Failed.
func (m *Machine) initiateWithRetry(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, provider string) (string, error) {
	var providerRef string
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 1), ctx)

	err := backoff.Retry(func() error {
		ref, err := m.payments.Initiate(ctx, orderID, amount, provider)
		if err != nil {
			return err
		}
		providerRef = ref
		return nil
	}, policy)
	if err != nil {
		return "", err
	}
	return providerRef, nil
}

// HandlePaymentCallback applies a provider callback. Signatures that don't
// verify are logged and dropped — the callback never mutates state.
func (m *Machine) HandlePaymentCallback(ctx context.Context, tenantID, conversationID, paymentRequestID uuid.UUID, rawPayload []byte, signature string, succeeded bool, providerRef string) (*domain.CheckoutSession, error) {
	if m.verifier != nil && !m.verifier.VerifySignature(rawPayload, signature) {
		m.log.Warn().Str("paymentRequestId", paymentRequestID.String()).Msg("dropping payment callback: signature did not verify")
		return nil, ErrUnverifiedCallback
	}

	cs, err := m.orders.GetOrCreateCheckoutSession(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if cs.State != domain.CheckoutPaymentInitiated {
		return nil, ErrInvalidTransition
	}

	if err := m.orders.MarkPaymentResult(ctx, paymentRequestID, succeeded, providerRef); err != nil {
		return nil, err
	}

	target := domain.CheckoutFailed
	if succeeded {
		target = domain.CheckoutPaid
	}
	if err := m.transition(ctx, cs, target); err != nil {
		return nil, err
	}
	return cs, nil
}

// Close moves a terminal Paid or Failed session to Closed, ending the
// checkout flow's involvement in the conversation.
func (m *Machine) Close(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.CheckoutSession, error) {
	cs, err := m.orders.GetOrCreateCheckoutSession(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if err := m.transition(ctx, cs, domain.CheckoutClosed); err != nil {
		return nil, err
	}
	return cs, nil
}
