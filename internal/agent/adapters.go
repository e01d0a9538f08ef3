package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/checkout"
	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/refctx"
)

// checkoutOrderAdapter satisfies the order_create tool's OrderCreator
// contract by driving checkout.Machine through the three steps a
// single-shot "I'll take 2 of the espresso blend" message implies:
// select the variant, confirm the quantity, then create the order. The
// machine's own transition table (internal/checkout) still enforces every
// invariant (stock, budget, state ordering); this adapter only sequences
// the calls the tool's narrower one-call contract doesn't expose directly.
type checkoutOrderAdapter struct {
	machine *checkout.Machine
}

func (a *checkoutOrderAdapter) CreateOrder(ctx context.Context, tenantID, conversationID, customerID, productVariantID uuid.UUID, quantity int) (*domain.Order, error) {
	if _, err := a.machine.SelectProduct(ctx, tenantID, conversationID, productVariantID); err != nil {
		return nil, err
	}
	if _, err := a.machine.ConfirmQuantity(ctx, tenantID, conversationID, quantity); err != nil {
		return nil, err
	}
	_, order, err := a.machine.CreateOrder(ctx, tenantID, conversationID, customerID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// referenceResolverAdapter satisfies the reference_resolve tool's
// ReferenceResolver contract over refctx.Manager's richer Result, folding
// every non-resolved outcome into a single error the tool layer reports
// back to the model rather than retrying.
type referenceResolverAdapter struct {
	manager *refctx.Manager
	now     time.Time
}

var errReferenceNotResolved = errors.New("agent: reference did not resolve to a single item")

func (a *referenceResolverAdapter) ResolveReference(ctx context.Context, conversationID uuid.UUID, phrase string) (*domain.ReferenceItem, error) {
	res, err := a.manager.Resolve(ctx, conversationID, phrase, a.now)
	if err != nil {
		return nil, err
	}
	if res.Outcome != refctx.OutcomeResolved {
		return nil, errReferenceNotResolved
	}
	return res.Item, nil
}
