package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Item is a sellable unit. Items are owned by the catalog and are read-only
// to everything downstream of it.
type Item struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Quantity    int
	Threshold   int
	Category    string
	Code        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidationError reports an item field that violates catalog invariants.
type ValidationError struct {
	ItemID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("invalid catalog item: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid catalog item %s: %s %s", e.ItemID, e.Field, e.Reason)
}

// Validate checks the invariants every catalog source must uphold before
// serving an item: identity, a non-negative price of at most two decimal
// places, and non-negative stock counters.
func (it Item) Validate() error {
	switch {
	case it.ID == "":
		return &ValidationError{Field: "id", Reason: "is required"}
	case it.Name == "":
		return &ValidationError{ItemID: it.ID, Field: "name", Reason: "is required"}
	case it.Price.IsNegative():
		return &ValidationError{ItemID: it.ID, Field: "price", Reason: "must not be negative"}
	case !it.Price.Equal(it.Price.Truncate(2)):
		return &ValidationError{ItemID: it.ID, Field: "price", Reason: "must have at most 2 decimal places"}
	case it.Quantity < 0:
		return &ValidationError{ItemID: it.ID, Field: "quantity", Reason: "must not be negative"}
	case it.Threshold < 0:
		return &ValidationError{ItemID: it.ID, Field: "threshold", Reason: "must not be negative"}
	}
	return nil
}

// StockValue is the value of the units on hand at the current unit price.
func (it Item) StockValue() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Repository defines read operations for the catalog.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
}
