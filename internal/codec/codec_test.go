package codec

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/inventrak/internal/domain/cart"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/domain/report"
	"github.com/xenking/inventrak/internal/domain/sale"
)

func encode(f func(e *jx.Encoder)) string {
	var e jx.Encoder
	f(&e)
	return e.String()
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"80", "80.00"},
		{"0.1", "0.10"},
		{"0.30", "0.30"},
		{"140.025", "140.03"},
		{"0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := encode(func(e *jx.Encoder) { Money(e, decimal.RequireFromString(tt.in)) })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMoney(t *testing.T) {
	for _, in := range []string{`12.50`, `"12.50"`, `12.5`} {
		got, err := DecodeMoney(jx.DecodeStr(in))
		require.NoError(t, err, in)
		assert.True(t, decimal.RequireFromString("12.5").Equal(got), in)
	}
	_, err := DecodeMoney(jx.DecodeStr(`true`))
	require.Error(t, err)
}

func TestLine(t *testing.T) {
	c := cart.New()
	c.AddItem(catalog.Item{ID: "1", Name: "Basmati Rice (1kg)", Price: decimal.NewFromInt(80)})
	c.AddItem(catalog.Item{ID: "1", Name: "Basmati Rice (1kg)", Price: decimal.NewFromInt(80)})
	l, _ := c.Line("1")

	got := encode(func(e *jx.Encoder) { Line(e, l) })
	assert.JSONEq(t,
		`{"productId":"1","name":"Basmati Rice (1kg)","unitPrice":80.00,"quantity":2,"subtotal":160.00}`,
		got,
	)
}

func TestLines_Empty(t *testing.T) {
	assert.Equal(t, "[]", encode(func(e *jx.Encoder) { Lines(e, nil) }))
}

func TestTransactionRoundTrip(t *testing.T) {
	c := cart.New()
	c.AddItem(catalog.Item{ID: "a", Name: "A", Price: decimal.RequireFromString("0.10")})
	c.AddItem(catalog.Item{ID: "b", Name: "B", Price: decimal.RequireFromString("0.20")})
	tx, err := sale.Snapshot(c, sale.Details{
		Cashier: "Asha",
		Method:  sale.PaymentUPI,
		At:      time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	raw := encode(func(e *jx.Encoder) { Transaction(e, tx) })
	assert.Contains(t, raw, `"total":0.30`)
	assert.Contains(t, raw, `"units":2`)

	got, err := DecodeTransaction(jx.DecodeStr(raw))
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, "Asha", got.CashierName)
	assert.Equal(t, sale.PaymentUPI, got.PaymentMethod)
	assert.True(t, tx.Timestamp.Equal(got.Timestamp))
	assert.True(t, tx.Total.Equal(got.Total))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "a", got.Lines[0].ProductID)
	assert.True(t, decimal.RequireFromString("0.20").Equal(got.Lines[1].Subtotal))
}

func TestDecodeTransaction_Invalid(t *testing.T) {
	_, err := DecodeTransaction(jx.DecodeStr(`{"total":"abc"}`))
	require.Error(t, err)
}

func TestItem(t *testing.T) {
	it := catalog.Item{
		ID: "4", Name: "Tea Powder (250g)", Price: decimal.NewFromInt(120),
		Quantity: 3, Threshold: 5, Category: "Beverages", Code: "T001",
	}
	got := encode(func(e *jx.Encoder) { Item(e, it) })
	assert.JSONEq(t, `{
		"id":"4","name":"Tea Powder (250g)","price":120.00,"quantity":3,"threshold":5,
		"category":"Beverages","code":"T001","status":"low","statusLabel":"Low Stock"
	}`, got)
}

func TestSales(t *testing.T) {
	s := report.Sales{
		Count:         1,
		Units:         3,
		Revenue:       decimal.NewFromInt(310),
		AverageTicket: decimal.NewFromInt(310),
		ByMethod: []report.MethodTotal{
			{Method: sale.PaymentCash, Count: 1, Revenue: decimal.NewFromInt(310)},
		},
	}
	got := encode(func(e *jx.Encoder) { Sales(e, s) })
	assert.JSONEq(t, `{
		"count":1,"units":3,"revenue":310.00,"averageTicket":310.00,
		"byMethod":[{"method":"cash","count":1,"revenue":310.00}]
	}`, got)
}
