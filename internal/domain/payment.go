package domain

import (
	"fmt"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodOnline PaymentMethod = "ONLINE"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodOnline
}

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

var validPaymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusInitiated: {PaymentStatusSuccess: true, PaymentStatusFailed: true},
	PaymentStatusSuccess:   {PaymentStatusRefunded: true},
	PaymentStatusFailed:    {},
	PaymentStatusRefunded:  {},
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	return validPaymentTransitions[s][target]
}

// Payment is one-to-one with an order. Its amount always equals the order
// total; TransactionID is set only for ONLINE payments.
type Payment struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"order_id"`
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	Amount        Money         `json:"amount"`
	TransactionID string        `json:"transaction_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (p *Payment) Transition(target PaymentStatus) error {
	if !p.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, p.Status, target)
	}
	p.Status = target
	return nil
}
