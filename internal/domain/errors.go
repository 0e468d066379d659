package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart              = errors.New("cart has no items")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrConcurrentModification = errors.New("concurrent inventory modification")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrCurrencyMismatch       = errors.New("currency mismatch")
	ErrOrderNotFound          = errors.New("order not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrPaymentExists          = errors.New("payment already exists for order")
	ErrInvalidQuantity        = errors.New("quantity must be positive")
)

// StockShortfall reports which product could not be reserved.
// errors.Is(err, ErrInsufficientStock) matches it.
type StockShortfall struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockShortfall) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockShortfall) Unwrap() error { return ErrInsufficientStock }
