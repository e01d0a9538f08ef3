package tools

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type orderCreateParams struct {
	ProductVariantID string `json:"productVariantId"`
	Quantity         int    `json:"quantity"`
	CustomerID       string `json:"customerId"`
}

func handleOrderCreate(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var p orderCreateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Quantity <= 0 {
		return nil, NewToolError(ErrCodeInvalidParams, "quantity must be positive", nil)
	}

	variantID, err := uuid.Parse(p.ProductVariantID)
	if err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "productVariantId is not a valid UUID", nil)
	}
	customerID, err := uuid.Parse(p.CustomerID)
	if err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "customerId is not a valid UUID", nil)
	}

	order, err := tc.Orders.CreateOrder(ctx, tc.TenantID, tc.ConversationID, customerID, variantID, p.Quantity)
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, "order creation failed: "+err.Error(), nil)
	}
	return map[string]any{
		"orderId": order.ID,
		"total":   order.Total.String(),
		"status":  order.Status,
	}, nil
}
