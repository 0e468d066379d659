package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ecomcore/fulfillment/internal/domain"
)

// Repository persists orders, their items, and the one-to-one payment row.
// An order is never visible without its items and payment: creation is a
// single transaction, and order/payment status changes always move together.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithPayment inserts the order, its line items, and the initial
// payment atomically. IDs and timestamps are assigned here.
func (r *Repository) CreateWithPayment(ctx context.Context, order *domain.Order, payment *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	order.ID = uuid.New().String()
	order.CreatedAt = now
	order.UpdatedAt = now
	payment.ID = uuid.New().String()
	payment.OrderID = order.ID
	payment.CreatedAt = now
	payment.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, order.ID, order.UserID, order.Total.Amount, order.Total.Currency, order.Status, now)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, currency)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), order.ID, item.ProductID, item.Quantity,
			item.UnitPrice.Amount, item.UnitPrice.Currency)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, method, status, amount, currency, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $8)
	`, payment.ID, payment.OrderID, payment.Method, payment.Status,
		payment.Amount.Amount, payment.Amount.Currency, payment.TransactionID, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrPaymentExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return tx.Commit()
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	var (
		total    decimal.Decimal
		currency string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, total, currency, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &total, &currency, &order.Status,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	order.Total = domain.MoneyFromDecimal(total, currency)

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, currency
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			item   domain.OrderItem
			amount decimal.Decimal
			cur    string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &amount, &cur); err != nil {
			return nil, err
		}
		item.UnitPrice = domain.MoneyFromDecimal(amount, cur)
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) GetPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var (
		amount   decimal.Decimal
		currency string
		txnID    sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, method, status, amount, currency, transaction_id, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID).Scan(&payment.ID, &payment.OrderID, &payment.Method, &payment.Status,
		&amount, &currency, &txnID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	payment.Amount = domain.MoneyFromDecimal(amount, currency)
	payment.TransactionID = txnID.String

	return payment, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, total, currency, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var (
			order    domain.Order
			total    decimal.Decimal
			currency string
		)
		if err := rows.Scan(&order.ID, &order.UserID, &total, &currency, &order.Status,
			&order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Total = domain.MoneyFromDecimal(total, currency)
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price, currency
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var (
			orderID string
			item    domain.OrderItem
			amount  decimal.Decimal
			cur     string
		)
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity, &amount, &cur); err != nil {
			return nil, err
		}
		item.UnitPrice = domain.MoneyFromDecimal(amount, cur)
		orderMap[orderID].Items = append(orderMap[orderID].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// MarkPaid moves payment INITIATED -> SUCCESS and order AWAITING_PAYMENT ->
// PAID in one transaction. txnID, when non-empty, is recorded on the payment.
func (r *Repository) MarkPaid(ctx context.Context, orderID, txnID string) error {
	return r.transition(ctx, orderID, transitionSpec{
		paymentFrom: domain.PaymentStatusInitiated,
		paymentTo:   domain.PaymentStatusSuccess,
		orderFrom:   domain.OrderStatusAwaitingPayment,
		orderTo:     domain.OrderStatusPaid,
		txnID:       txnID,
	})
}

// MarkFailed moves payment INITIATED -> FAILED and order AWAITING_PAYMENT ->
// CANCELLED in one transaction.
func (r *Repository) MarkFailed(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, transitionSpec{
		paymentFrom: domain.PaymentStatusInitiated,
		paymentTo:   domain.PaymentStatusFailed,
		orderFrom:   domain.OrderStatusAwaitingPayment,
		orderTo:     domain.OrderStatusCancelled,
	})
}

// MarkRefunded moves payment SUCCESS -> REFUNDED and order PAID -> REFUNDED
// in one transaction.
func (r *Repository) MarkRefunded(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, transitionSpec{
		paymentFrom: domain.PaymentStatusSuccess,
		paymentTo:   domain.PaymentStatusRefunded,
		orderFrom:   domain.OrderStatusPaid,
		orderTo:     domain.OrderStatusRefunded,
	})
}

type transitionSpec struct {
	paymentFrom domain.PaymentStatus
	paymentTo   domain.PaymentStatus
	orderFrom   domain.OrderStatus
	orderTo     domain.OrderStatus
	txnID       string
}

// transition applies a coupled order/payment status change. Both updates
// carry their current status as a precondition in the WHERE clause, so an
// observer can never see an order PAID with a non-SUCCESS payment or the
// reverse.
func (r *Repository) transition(ctx context.Context, orderID string, spec transitionSpec) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    transaction_id = COALESCE(NULLIF($4, ''), transaction_id),
		    updated_at = NOW()
		WHERE order_id = $1 AND status = $3
	`, orderID, spec.paymentTo, spec.paymentFrom, spec.txnID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: payment for order %s is not %s", domain.ErrInvalidTransition, orderID, spec.paymentFrom)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, orderID, spec.orderTo, spec.orderFrom)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: order %s is %s, expected %s", domain.ErrInvalidTransition, orderID, current, spec.orderFrom)
	}

	return tx.Commit()
}
