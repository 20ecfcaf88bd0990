// Package sale turns a cart into an immutable Transaction and hands it to
// whatever records sales.
package sale

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/inventrak/internal/domain/cart"
)

// ErrEmptyCart is returned when checking out a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrUnknownPaymentMethod is returned by ParsePaymentMethod for values outside
// the supported set.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
)

// PaymentMethods lists the supported methods in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentUPI}

// ParsePaymentMethod parses s case-insensitively. An empty string means cash.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PaymentCash, nil
	case PaymentCash, PaymentCard, PaymentUPI:
		return m, nil
	default:
		return "", errors.Wrapf(ErrUnknownPaymentMethod, "%q", s)
	}
}

// Transaction is the record of a completed checkout. It is never modified
// after Checkout returns it.
type Transaction struct {
	ID            string          `json:"id"`
	Lines         []cart.LineItem `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	CashierName   string          `json:"cashier_name"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Units returns the number of units sold.
func (t *Transaction) Units() int {
	n := 0
	for _, l := range t.Lines {
		n += l.Quantity
	}
	return n
}

// Details is the checkout context that is not part of the cart itself.
type Details struct {
	Cashier string
	Method  PaymentMethod
	// At defaults to the current time when zero.
	At time.Time
}

// Snapshot builds a Transaction from the cart's current state without
// modifying the cart.
func Snapshot(c *cart.Cart, d Details) (*Transaction, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	method := d.Method
	if method == "" {
		method = PaymentCash
	}
	return &Transaction{
		ID:            uuid.New().String(),
		Lines:         c.Lines(),
		Total:         c.Total(),
		CashierName:   d.Cashier,
		PaymentMethod: method,
		Timestamp:     at.UTC(),
	}, nil
}

// Checkout snapshots the cart into a Transaction and clears it. An empty cart
// fails with ErrEmptyCart and is left as is.
func Checkout(c *cart.Cart, d Details) (*Transaction, error) {
	tx, err := Snapshot(c, d)
	if err != nil {
		return nil, err
	}
	c.Clear()
	return tx, nil
}

// Sink receives finalized transactions.
type Sink interface {
	Record(ctx context.Context, tx *Transaction) error
}

// Log is a Sink that can also list what it has recorded, newest first.
type Log interface {
	Sink
	List(ctx context.Context) ([]Transaction, error)
}
