package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusCreated, OrderStatusAwaitingPayment, true},
		{OrderStatusAwaitingPayment, OrderStatusPaid, true},
		{OrderStatusAwaitingPayment, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusCreated, OrderStatusPaid, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusCancelled, OrderStatusAwaitingPayment, false},
		{OrderStatusRefunded, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusRefunded, false},
		{OrderStatusPaid, OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestOrder_Transition(t *testing.T) {
	order := &Order{Status: OrderStatusAwaitingPayment}

	require.NoError(t, order.Transition(OrderStatusPaid))
	assert.Equal(t, OrderStatusPaid, order.Status)

	err := order.Transition(OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, OrderStatusPaid, order.Status, "failed transition must not change state")
}

func TestOrder_Transition_TerminalStates(t *testing.T) {
	for _, terminal := range []OrderStatus{OrderStatusCancelled, OrderStatusRefunded} {
		order := &Order{Status: terminal}
		for _, target := range []OrderStatus{
			OrderStatusCreated, OrderStatusAwaitingPayment,
			OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded,
		} {
			assert.ErrorIs(t, order.Transition(target), ErrInvalidTransition,
				"%s -> %s should be rejected", terminal, target)
		}
	}
}
