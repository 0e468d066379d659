package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRefunded        OrderStatus = "REFUNDED"
)

// validOrderTransitions defines the order state machine. CANCELLED and
// REFUNDED are terminal.
var validOrderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusCreated:         {OrderStatusAwaitingPayment: true},
	OrderStatusAwaitingPayment: {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:            {OrderStatusRefunded: true},
	OrderStatusCancelled:       {},
	OrderStatusRefunded:        {},
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return validOrderTransitions[s][target]
}

// OrderItem is a line item with the unit price snapshotted at placement
// time. It never changes after the order is created, so historical orders
// are insulated from later catalog price edits.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
}

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Items     []OrderItem `json:"items"`
	Total     Money       `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Transition validates and applies a status change in memory.
func (o *Order) Transition(target OrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	o.Status = target
	return nil
}

// ComputeTotal sums unit price times quantity over all items, enforcing a
// uniform currency.
func ComputeTotal(items []OrderItem) (Money, error) {
	if len(items) == 0 {
		return Money{}, ErrEmptyCart
	}
	total := Zero(items[0].UnitPrice.Currency)
	for _, item := range items {
		sum, err := total.Add(item.UnitPrice.MulInt(item.Quantity))
		if err != nil {
			return Money{}, err
		}
		total = sum
	}
	return total, nil
}
