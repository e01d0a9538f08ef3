package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

func TestCanTransitionFollowsTheDeclaredGraph(t *testing.T) {
	require.True(t, canTransition(domain.CheckoutBrowsing, domain.CheckoutProductSelected))
	require.True(t, canTransition(domain.CheckoutProductSelected, domain.CheckoutProductSelected),
		"re-selecting a different product while still selecting must be allowed")
	require.True(t, canTransition(domain.CheckoutQuantityConfirmed, domain.CheckoutPaymentMethodSelected))
	require.True(t, canTransition(domain.CheckoutFailed, domain.CheckoutProductSelected),
		"a failed payment must be able to restart the flow")

	require.False(t, canTransition(domain.CheckoutBrowsing, domain.CheckoutPaymentInitiated),
		"browsing must not be able to skip straight to payment")
	require.False(t, canTransition(domain.CheckoutClosed, domain.CheckoutBrowsing),
		"closed is terminal")
	require.False(t, canTransition(domain.CheckoutPaid, domain.CheckoutFailed))
}

func TestBudgetedCoversOnlyProductSelectedThroughPaymentInitiated(t *testing.T) {
	require.False(t, budgeted(domain.CheckoutBrowsing))
	require.True(t, budgeted(domain.CheckoutProductSelected))
	require.True(t, budgeted(domain.CheckoutQuantityConfirmed))
	require.True(t, budgeted(domain.CheckoutPaymentMethodSelected))
	require.True(t, budgeted(domain.CheckoutPaymentInitiated))
	require.False(t, budgeted(domain.CheckoutPaid))
	require.False(t, budgeted(domain.CheckoutFailed))
	require.False(t, budgeted(domain.CheckoutClosed))
}

func TestBudgetRemainingCountsDownFromMax(t *testing.T) {
	cs := domain.CheckoutSession{MessageCount: 0}
	require.Equal(t, domain.MaxCheckoutOutboundMessages, cs.BudgetRemaining())

	cs.MessageCount = domain.MaxCheckoutOutboundMessages
	require.Equal(t, 0, cs.BudgetRemaining())

	cs.MessageCount = domain.MaxCheckoutOutboundMessages + 1
	require.Equal(t, 0, cs.BudgetRemaining(), "budget must never go negative")
}
