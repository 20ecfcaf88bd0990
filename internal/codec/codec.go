// Package codec writes domain values as JSON. Money is always emitted as a
// number with two fractional digits taken directly from the decimal, never
// through float64.
package codec

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/inventrak/internal/domain/auth"
	"github.com/xenking/inventrak/internal/domain/cart"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/domain/report"
	"github.com/xenking/inventrak/internal/domain/sale"
)

// Money writes d as a JSON number rounded to two places.
func Money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

// DecodeMoney reads a JSON number or numeric string into a decimal.
func DecodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.New("money must be a number")
	}
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

// Line writes a cart line.
func Line(e *jx.Encoder, l cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { Money(e, l.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("subtotal", func(e *jx.Encoder) { Money(e, l.Subtotal) })
	})
}

// Lines writes a list of cart lines; nil is written as an empty array.
func Lines(e *jx.Encoder, lines []cart.LineItem) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			Line(e, l)
		}
	})
}

// Transaction writes a completed sale.
func Transaction(e *jx.Encoder, tx *sale.Transaction) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(tx.ID) })
		e.Field("items", func(e *jx.Encoder) { Lines(e, tx.Lines) })
		e.Field("total", func(e *jx.Encoder) { Money(e, tx.Total) })
		e.Field("units", func(e *jx.Encoder) { e.Int(tx.Units()) })
		e.Field("cashierName", func(e *jx.Encoder) { e.Str(tx.CashierName) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(tx.PaymentMethod)) })
		e.Field("timestamp", func(e *jx.Encoder) { timestamp(e, tx.Timestamp) })
	})
}

// DecodeTransaction reads a sale written by Transaction. Derived fields are
// ignored.
func DecodeTransaction(d *jx.Decoder) (*sale.Transaction, error) {
	tx := &sale.Transaction{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			tx.ID, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				tx.Lines = append(tx.Lines, l)
				return nil
			})
		case "total":
			tx.Total, err = DecodeMoney(d)
		case "cashierName":
			tx.CashierName, err = d.Str()
		case "paymentMethod":
			var s string
			s, err = d.Str()
			tx.PaymentMethod = sale.PaymentMethod(s)
		case "timestamp":
			var s string
			if s, err = d.Str(); err == nil {
				tx.Timestamp, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode transaction")
	}
	return tx, nil
}

func decodeLine(d *jx.Decoder) (cart.LineItem, error) {
	var l cart.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			l.ProductID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "unitPrice":
			l.UnitPrice, err = DecodeMoney(d)
		case "quantity":
			l.Quantity, err = d.Int()
		case "subtotal":
			l.Subtotal, err = DecodeMoney(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

// Item writes a catalog item with its stock status.
func Item(e *jx.Encoder, it catalog.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { Money(e, it.Price) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("threshold", func(e *jx.Encoder) { e.Int(it.Threshold) })
		e.Field("category", func(e *jx.Encoder) { e.Str(it.Category) })
		e.Field("code", func(e *jx.Encoder) { e.Str(it.Code) })
		if it.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(it.Description) })
		}
		e.Field("status", func(e *jx.Encoder) { e.Str(string(it.Status())) })
		e.Field("statusLabel", func(e *jx.Encoder) { e.Str(it.Status().Label()) })
	})
}

// Items writes a list of catalog items.
func Items(e *jx.Encoder, items []catalog.Item) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			Item(e, it)
		}
	})
}

// Strings writes a list of strings.
func Strings(e *jx.Encoder, ss []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range ss {
			e.Str(s)
		}
	})
}

// User writes the public profile of a signed-in user.
func User(e *jx.Encoder, u auth.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(u.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(u.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
		e.Field("role", func(e *jx.Encoder) { e.Str(string(u.Role)) })
		e.Field("roleName", func(e *jx.Encoder) { e.Str(u.Role.DisplayName()) })
		if u.Phone != "" {
			e.Field("phone", func(e *jx.Encoder) { e.Str(u.Phone) })
		}
		if u.CompanyName != "" {
			e.Field("companyName", func(e *jx.Encoder) { e.Str(u.CompanyName) })
		}
		if u.BusinessCategory != "" {
			e.Field("businessCategory", func(e *jx.Encoder) { e.Str(string(u.BusinessCategory)) })
		}
		e.Field("tabs", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, t := range u.Role.Tabs() {
					e.Str(string(t))
				}
			})
		})
	})
}

// Inventory writes the inventory overview.
func Inventory(e *jx.Encoder, inv report.Inventory, items []catalog.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("totalProducts", func(e *jx.Encoder) { e.Int(inv.TotalProducts) })
		e.Field("lowStock", func(e *jx.Encoder) { e.Int(inv.LowStock) })
		e.Field("totalValue", func(e *jx.Encoder) { Money(e, inv.TotalValue) })
		e.Field("categories", func(e *jx.Encoder) { e.Int(inv.Categories) })
		e.Field("items", func(e *jx.Encoder) { Items(e, items) })
	})
}

// Alerts writes low-stock alerts.
func Alerts(e *jx.Encoder, alerts []report.Alert) {
	e.Arr(func(e *jx.Encoder) {
		for _, a := range alerts {
			e.Obj(func(e *jx.Encoder) {
				e.Field("item", func(e *jx.Encoder) { Item(e, a.Item) })
				e.Field("shortfall", func(e *jx.Encoder) { e.Int(a.Shortfall) })
			})
		}
	})
}

// Sales writes the sales summary.
func Sales(e *jx.Encoder, s report.Sales) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("count", func(e *jx.Encoder) { e.Int(s.Count) })
		e.Field("units", func(e *jx.Encoder) { e.Int(s.Units) })
		e.Field("revenue", func(e *jx.Encoder) { Money(e, s.Revenue) })
		e.Field("averageTicket", func(e *jx.Encoder) { Money(e, s.AverageTicket) })
		e.Field("byMethod", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, m := range s.ByMethod {
					e.Obj(func(e *jx.Encoder) {
						e.Field("method", func(e *jx.Encoder) { e.Str(string(m.Method)) })
						e.Field("count", func(e *jx.Encoder) { e.Int(m.Count) })
						e.Field("revenue", func(e *jx.Encoder) { Money(e, m.Revenue) })
					})
				}
			})
		})
	})
}
