package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"github.com/ecomcore/fulfillment/internal/domain"
)

// maxAttempts bounds the conditional-write retry loop so checkout latency
// stays bounded under contention.
const maxAttempts = 5

// StockRecord is one inventory row. Version increments on every successful
// mutation and is the key for the conditional writes below.
type StockRecord struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Version   int64  `json:"version"`
}

// Ledger owns all mutations of available stock. Every write is a
// compare-and-swap keyed on the version read at the start of the attempt;
// version conflicts are retried with randomized exponential backoff up to
// maxAttempts before surfacing domain.ErrConcurrentModification.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLedger(db *sql.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

func (l *Ledger) GetStock(ctx context.Context, productID string) (*StockRecord, error) {
	rec := &StockRecord{}

	err := l.db.QueryRowContext(ctx, `
		SELECT product_id, quantity, version
		FROM inventory
		WHERE product_id = $1
	`, productID).Scan(&rec.ProductID, &rec.Quantity, &rec.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return rec, nil
}

func (l *Ledger) ListStock(ctx context.Context) ([]StockRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT product_id, quantity, version
		FROM inventory
		ORDER BY product_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []StockRecord
	for rows.Next() {
		var rec StockRecord
		if err := rows.Scan(&rec.ProductID, &rec.Quantity, &rec.Version); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Reserve decrements available stock by quantity and returns the remaining
// quantity. The availability check and the decrement happen against the same
// version, so a reservation can never succeed on stale state. Insufficient
// stock is a business failure and is not retried.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	var remaining int
	op := func() error {
		rec, err := l.GetStock(ctx, productID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if rec == nil {
			return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID))
		}
		if rec.Quantity < quantity {
			return backoff.Permanent(&domain.StockShortfall{
				ProductID: productID,
				Requested: quantity,
				Available: rec.Quantity,
			})
		}

		remaining, err = l.casAdjust(ctx, productID, -quantity, rec.Version)
		if err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) {
				l.logger.Debug("reserve hit version conflict, retrying",
					"product_id", productID, "version", rec.Version)
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, l.newBackOff(ctx)); err != nil {
		return 0, err
	}
	return remaining, nil
}

// Release returns previously reserved quantity to the pool. The ledger does
// not track who reserved what; callers must only release what they reserved.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	return l.adjust(ctx, productID, quantity)
}

// Restock is the administrative increment. It creates the inventory row the
// first time a product is stocked.
func (l *Ledger) Restock(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	var remaining int
	op := func() error {
		rec, err := l.GetStock(ctx, productID)
		if err != nil {
			return backoff.Permanent(err)
		}

		if rec == nil {
			res, err := l.db.ExecContext(ctx, `
				INSERT INTO inventory (product_id, quantity)
				VALUES ($1, $2)
				ON CONFLICT (product_id) DO NOTHING
			`, productID, quantity)
			if err != nil {
				var pqErr *pq.Error
				if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
					return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID))
				}
				return backoff.Permanent(err)
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return backoff.Permanent(err)
			}
			if inserted == 1 {
				remaining = quantity
				return nil
			}
			// Row appeared between the read and the insert; take the CAS path.
			return domain.ErrConcurrentModification
		}

		remaining, err = l.casAdjust(ctx, productID, quantity, rec.Version)
		if err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, l.newBackOff(ctx)); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (l *Ledger) adjust(ctx context.Context, productID string, delta int) (int, error) {
	var remaining int
	op := func() error {
		rec, err := l.GetStock(ctx, productID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if rec == nil {
			return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID))
		}

		remaining, err = l.casAdjust(ctx, productID, delta, rec.Version)
		if err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, l.newBackOff(ctx)); err != nil {
		return 0, err
	}
	return remaining, nil
}

// casAdjust is the single conditional write behind every mutation. Zero rows
// means the version moved since it was read.
func (l *Ledger) casAdjust(ctx context.Context, productID string, delta int, version int64) (int, error) {
	var quantity int
	err := l.db.QueryRowContext(ctx, `
		UPDATE inventory
		SET quantity = quantity + $2, version = version + 1, updated_at = NOW()
		WHERE product_id = $1 AND version = $3
		RETURNING quantity
	`, productID, delta, version).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrConcurrentModification
		}
		return 0, err
	}
	return quantity, nil
}

func (l *Ledger) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx)
}
