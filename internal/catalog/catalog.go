package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ecomcore/fulfillment/internal/domain"
)

// Catalog provides point-in-time price reads for order placement. The
// placement engine never writes through it; catalog maintenance is a
// separate concern.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) PriceOf(ctx context.Context, productID string) (domain.Money, error) {
	var (
		amount   decimal.Decimal
		currency string
	)

	err := c.db.QueryRowContext(ctx, `
		SELECT price, currency
		FROM products
		WHERE id = $1
	`, productID).Scan(&amount, &currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
		return domain.Money{}, err
	}

	return domain.MoneyFromDecimal(amount, currency), nil
}
