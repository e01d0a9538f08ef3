package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// OrderStore persists CheckoutSession, Order, and PaymentRequest rows.
type OrderStore struct {
	DB *pgxpool.Pool
}

// NewOrderStore creates an OrderStore.
func NewOrderStore(db *pgxpool.Pool) *OrderStore {
	return &OrderStore{DB: db}
}

// GetOrCreateCheckoutSession returns the conversation's checkout cursor,
// creating a fresh Browsing-state one if none exists.
func (s *OrderStore) GetOrCreateCheckoutSession(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.CheckoutSession, error) {
	var cs domain.CheckoutSession
	err := s.DB.QueryRow(ctx, `
		SELECT id, conversation_id, tenant_id, product_variant_id, quantity, order_id,
		       payment_request_id, state, message_count, created_at, updated_at
		FROM checkout_session WHERE conversation_id = $1
	`, conversationID).Scan(
		&cs.ID, &cs.ConversationID, &cs.TenantID, &cs.ProductVariantID, &cs.Quantity, &cs.OrderID,
		&cs.PaymentRequestID, &cs.State, &cs.MessageCount, &cs.CreatedAt, &cs.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.DB.QueryRow(ctx, `
			INSERT INTO checkout_session (conversation_id, tenant_id, state)
			VALUES ($1, $2, 'browsing')
			RETURNING id, conversation_id, tenant_id, product_variant_id, quantity, order_id,
			          payment_request_id, state, message_count, created_at, updated_at
		`, conversationID, tenantID).Scan(
			&cs.ID, &cs.ConversationID, &cs.TenantID, &cs.ProductVariantID, &cs.Quantity, &cs.OrderID,
			&cs.PaymentRequestID, &cs.State, &cs.MessageCount, &cs.CreatedAt, &cs.UpdatedAt,
		)
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// UpdateCheckoutSession persists the full checkout cursor after a state
// transition (internal/checkout owns the transition rules; this just
// writes the result).
func (s *OrderStore) UpdateCheckoutSession(ctx context.Context, cs *domain.CheckoutSession) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE checkout_session
		SET product_variant_id = $1, quantity = $2, order_id = $3, payment_request_id = $4,
		    state = $5, message_count = $6, updated_at = now()
		WHERE id = $7
	`, cs.ProductVariantID, cs.Quantity, cs.OrderID, cs.PaymentRequestID, cs.State, cs.MessageCount, cs.ID)
	return err
}

// VariantPrice resolves the current catalog unit price for a product
// variant; order totals are always computed from this, never from
// caller-supplied values.
type VariantPrice struct {
	ProductVariantID uuid.UUID
	UnitPrice        decimal.Decimal
}

// CreateOrder prices line items from currentPrices and persists the order
// with a server-computed total in a single transaction.
func (s *OrderStore) CreateOrder(ctx context.Context, tenantID, conversationID, customerID uuid.UUID, items []VariantPrice, quantities map[uuid.UUID]int) (*domain.Order, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lineItems := make([]domain.OrderLineItem, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, domain.OrderLineItem{
			ProductVariantID:    it.ProductVariantID,
			Quantity:            quantities[it.ProductVariantID],
			UnitPriceAtCreation: it.UnitPrice,
		})
	}
	total := domain.ComputeTotal(lineItems)

	order := domain.Order{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		CustomerID:     customerID,
		Status:         domain.OrderDraft,
		LineItems:      lineItems,
		Total:          total,
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, tenant_id, conversation_id, customer_id, status, total)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, order.ID, order.TenantID, order.ConversationID, order.CustomerID, order.Status, order.Total); err != nil {
		return nil, err
	}

	for _, li := range lineItems {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_line_item (order_id, product_variant_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
		`, order.ID, li.ProductVariantID, li.Quantity, li.UnitPriceAtCreation); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreatePaymentRequest opens a payment request for an order, locking the
// order row for update so two concurrent initiations can't both succeed
// (at most one live payment request per order is allowed).
func (s *OrderStore) CreatePaymentRequest(ctx context.Context, tenantID, orderID uuid.UUID, provider string) (*domain.PaymentRequest, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status domain.OrderStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status); err != nil {
		return nil, err
	}
	var live bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM payment_request WHERE order_id = $1 AND status IN ('pending', 'initiated'))
	`, orderID).Scan(&live); err != nil {
		return nil, err
	}
	if live {
		return nil, errors.New("store: order already has a live payment request")
	}

	pr := domain.PaymentRequest{
		ID:       uuid.New(),
		TenantID: tenantID,
		OrderID:  orderID,
		Provider: provider,
		Status:   domain.PaymentPending,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO payment_request (id, tenant_id, order_id, provider, status)
		VALUES ($1, $2, $3, $4, $5)
	`, pr.ID, pr.TenantID, pr.OrderID, pr.Provider, pr.Status); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = 'pending_payment', updated_at = now() WHERE id = $1`, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &pr, nil
}

// MarkPaymentInitiated flips a payment request from pending to initiated
// once the payment capability has accepted the request.
func (s *OrderStore) MarkPaymentInitiated(ctx context.Context, paymentRequestID uuid.UUID, providerRef string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE payment_request SET status = 'initiated', provider_ref = $1, updated_at = now() WHERE id = $2
	`, providerRef, paymentRequestID)
	return err
}

// MarkPaymentResult updates a payment request's terminal status and, on
// success, the order's status, in one transaction (webhook callback path).
func (s *OrderStore) MarkPaymentResult(ctx context.Context, paymentRequestID uuid.UUID, succeeded bool, providerRef string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	status := domain.PaymentFailed
	if succeeded {
		status = domain.PaymentSucceeded
	}

	var orderID uuid.UUID
	if err := tx.QueryRow(ctx, `
		UPDATE payment_request SET status = $1, provider_ref = $2, updated_at = now()
		WHERE id = $3 RETURNING order_id
	`, status, providerRef, paymentRequestID).Scan(&orderID); err != nil {
		return err
	}

	if succeeded {
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = 'paid', updated_at = now() WHERE id = $1`, orderID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
