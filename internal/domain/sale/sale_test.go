package sale

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/inventrak/internal/domain/cart"
	"github.com/xenking/inventrak/internal/domain/catalog"
)

func testItem(id string, price int64) catalog.Item {
	return catalog.Item{ID: id, Name: "item " + id, Price: decimal.NewFromInt(price), Quantity: 10}
}

func TestCheckout_EmptyCart(t *testing.T) {
	c := cart.New()

	tx, err := Checkout(c, Details{})
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, tx)
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())
}

func TestCheckout_CapturesAndClears(t *testing.T) {
	c := cart.New()
	c.AddItem(testItem("A", 80))
	c.AddItem(testItem("A", 80))
	c.AddItem(testItem("B", 150))

	wantLines := c.Lines()
	wantTotal := c.Total()
	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	tx, err := Checkout(c, Details{Cashier: "Asha", Method: PaymentUPI, At: at})
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, wantLines, tx.Lines)
	assert.True(t, wantTotal.Equal(tx.Total))
	assert.Equal(t, "Asha", tx.CashierName)
	assert.Equal(t, PaymentUPI, tx.PaymentMethod)
	assert.Equal(t, at, tx.Timestamp)
	assert.Equal(t, 3, tx.Units())

	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())
}

func TestCheckout_TransactionIsDetachedFromCart(t *testing.T) {
	c := cart.New()
	c.AddItem(testItem("A", 80))

	tx, err := Checkout(c, Details{})
	require.NoError(t, err)

	c.AddItem(testItem("B", 150))
	require.Len(t, tx.Lines, 1)
	assert.Equal(t, "A", tx.Lines[0].ProductID)
	assert.True(t, decimal.NewFromInt(80).Equal(tx.Total))
	assert.Equal(t, PaymentCash, tx.PaymentMethod)
	assert.False(t, tx.Timestamp.IsZero())
}

func TestSnapshot_LeavesCart(t *testing.T) {
	c := cart.New()
	c.AddItem(testItem("A", 80))

	tx, err := Snapshot(c, Details{})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(80).Equal(tx.Total))
	assert.Equal(t, 1, c.Len())
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    PaymentMethod
		wantErr bool
	}{
		{in: "", want: PaymentCash},
		{in: "cash", want: PaymentCash},
		{in: "Card", want: PaymentCard},
		{in: " UPI ", want: PaymentUPI},
		{in: "cheque", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePaymentMethod(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrUnknownPaymentMethod, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

type recordingSink struct {
	got []*Transaction
	err error
}

func (s *recordingSink) Record(_ context.Context, tx *Transaction) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, tx)
	return nil
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	tx := &Transaction{ID: "tx-1", Total: decimal.NewFromInt(10)}

	t.Run("fans out", func(t *testing.T) {
		a, b := &recordingSink{}, &recordingSink{}
		require.NoError(t, MultiSink{a, b}.Record(ctx, tx))
		assert.Len(t, a.got, 1)
		assert.Len(t, b.got, 1)
	})

	t.Run("primary failure aborts", func(t *testing.T) {
		primary := &recordingSink{err: errors.New("db down")}
		secondary := &recordingSink{}
		err := MultiSink{primary, secondary}.Record(ctx, tx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
		assert.Empty(t, secondary.got)
	})

	t.Run("secondary failure is ignored", func(t *testing.T) {
		primary := &recordingSink{}
		secondary := &recordingSink{err: errors.New("broker down")}
		require.NoError(t, MultiSink{primary, secondary}.Record(ctx, tx))
		assert.Len(t, primary.got, 1)
	})

	t.Run("empty", func(t *testing.T) {
		require.NoError(t, MultiSink(nil).Record(ctx, tx))
	})

	t.Run("func adapter", func(t *testing.T) {
		var seen string
		sink := SinkFunc(func(_ context.Context, tx *Transaction) error {
			seen = tx.ID
			return nil
		})
		require.NoError(t, sink.Record(ctx, tx))
		assert.Equal(t, "tx-1", seen)
	})
}
