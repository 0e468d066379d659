package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentStatusInitiated, PaymentStatusSuccess, true},
		{PaymentStatusInitiated, PaymentStatusFailed, true},
		{PaymentStatusSuccess, PaymentStatusRefunded, true},
		{PaymentStatusInitiated, PaymentStatusRefunded, false},
		{PaymentStatusFailed, PaymentStatusSuccess, false},
		{PaymentStatusFailed, PaymentStatusRefunded, false},
		{PaymentStatusRefunded, PaymentStatusSuccess, false},
		{PaymentStatusRefunded, PaymentStatusRefunded, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestPayment_Transition(t *testing.T) {
	payment := &Payment{Status: PaymentStatusInitiated}

	require.NoError(t, payment.Transition(PaymentStatusSuccess))
	require.NoError(t, payment.Transition(PaymentStatusRefunded))

	err := payment.Transition(PaymentStatusRefunded)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentMethodCOD.Valid())
	assert.True(t, PaymentMethodOnline.Valid())
	assert.False(t, PaymentMethod("WIRE").Valid())
	assert.False(t, PaymentMethod("").Valid())
}
