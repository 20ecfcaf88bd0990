// Package report derives inventory and sales figures for the dashboard.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/domain/sale"
)

// Inventory summarises stock across the catalog.
type Inventory struct {
	TotalProducts int
	LowStock      int
	TotalValue    decimal.Decimal
	Categories    int
}

// Alert is a low-stock item with how far it has fallen below its threshold.
type Alert struct {
	Item      catalog.Item
	Shortfall int
}

// MethodTotal is the revenue taken through one payment method.
type MethodTotal struct {
	Method  sale.PaymentMethod
	Count   int
	Revenue decimal.Decimal
}

// Sales summarises recorded transactions.
type Sales struct {
	Count         int
	Units         int
	Revenue       decimal.Decimal
	AverageTicket decimal.Decimal
	ByMethod      []MethodTotal
}

// SummarizeInventory computes the inventory overview.
func SummarizeInventory(items []catalog.Item) Inventory {
	inv := Inventory{
		TotalProducts: len(items),
		TotalValue:    decimal.Zero,
		Categories:    len(catalog.Categories(items)),
	}
	for _, it := range items {
		if it.IsLowStock() {
			inv.LowStock++
		}
		inv.TotalValue = inv.TotalValue.Add(it.StockValue())
	}
	return inv
}

// LowStock returns items at or below their threshold, largest shortfall
// first. Ties keep catalog order.
func LowStock(items []catalog.Item) []Alert {
	out := make([]Alert, 0)
	for _, it := range items {
		if !it.IsLowStock() {
			continue
		}
		out = append(out, Alert{Item: it, Shortfall: it.Threshold - it.Quantity})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Shortfall > out[j].Shortfall
	})
	return out
}

// SummarizeSales aggregates transactions. Only transactions at or after since
// are counted; a zero since counts everything. The average ticket is rounded
// to two decimal places.
func SummarizeSales(txs []sale.Transaction, since time.Time) Sales {
	s := Sales{Revenue: decimal.Zero, AverageTicket: decimal.Zero}
	byMethod := make(map[sale.PaymentMethod]*MethodTotal, len(sale.PaymentMethods))
	for _, m := range sale.PaymentMethods {
		byMethod[m] = &MethodTotal{Method: m, Revenue: decimal.Zero}
	}

	for i := range txs {
		tx := &txs[i]
		if !since.IsZero() && tx.Timestamp.Before(since) {
			continue
		}
		s.Count++
		s.Units += tx.Units()
		s.Revenue = s.Revenue.Add(tx.Total)

		mt, ok := byMethod[tx.PaymentMethod]
		if !ok {
			mt = &MethodTotal{Method: tx.PaymentMethod, Revenue: decimal.Zero}
			byMethod[tx.PaymentMethod] = mt
		}
		mt.Count++
		mt.Revenue = mt.Revenue.Add(tx.Total)
	}

	if s.Count > 0 {
		s.AverageTicket = s.Revenue.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}

	for _, m := range sale.PaymentMethods {
		s.ByMethod = append(s.ByMethod, *byMethod[m])
		delete(byMethod, m)
	}
	extra := make([]MethodTotal, 0, len(byMethod))
	for _, mt := range byMethod {
		extra = append(extra, *mt)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Method < extra[j].Method })
	s.ByMethod = append(s.ByMethod, extra...)
	return s
}

// Service reads the catalog and the sales log to build reports.
type Service struct {
	catalog catalog.Repository
	sales   sale.Log
}

// NewService creates a report Service.
func NewService(items catalog.Repository, sales sale.Log) *Service {
	return &Service{catalog: items, sales: sales}
}

// Inventory returns the inventory overview.
func (s *Service) Inventory(ctx context.Context) (Inventory, []catalog.Item, error) {
	items, err := s.catalog.List(ctx)
	if err != nil {
		return Inventory{}, nil, errors.Wrap(err, "list catalog")
	}
	return SummarizeInventory(items), items, nil
}

// LowStock returns the current low-stock alerts.
func (s *Service) LowStock(ctx context.Context) ([]Alert, error) {
	items, err := s.catalog.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}
	return LowStock(items), nil
}

// Sales returns the sales summary since the given time.
func (s *Service) Sales(ctx context.Context, since time.Time) (Sales, error) {
	txs, err := s.sales.List(ctx)
	if err != nil {
		return Sales{}, errors.Wrap(err, "list sales")
	}
	return SummarizeSales(txs, since), nil
}
