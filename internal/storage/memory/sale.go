package memory

import (
	"context"
	"sync"

	"github.com/xenking/inventrak/internal/domain/sale"
)

var _ sale.Log = (*SaleLog)(nil)

// SaleLog is a sale.Log held in memory. When linked to a Catalog, recorded
// sales take the sold units off its shelf.
type SaleLog struct {
	mu    sync.RWMutex
	txs   []sale.Transaction
	seen  map[string]struct{}
	stock *Catalog
}

// NewSaleLog returns an empty SaleLog. stock may be nil.
func NewSaleLog(stock *Catalog) *SaleLog {
	return &SaleLog{seen: make(map[string]struct{}), stock: stock}
}

// Record stores tx. Recording the same transaction twice is a no-op.
func (l *SaleLog) Record(_ context.Context, tx *sale.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[tx.ID]; ok {
		return nil
	}
	l.seen[tx.ID] = struct{}{}

	cp := *tx
	cp.Lines = append(cp.Lines[:0:0], tx.Lines...)
	l.txs = append(l.txs, cp)

	if l.stock != nil {
		for _, line := range tx.Lines {
			l.stock.DecrementStock(line.ProductID, line.Quantity)
		}
	}
	return nil
}

// List returns all recorded sales, newest first.
func (l *SaleLog) List(_ context.Context) ([]sale.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]sale.Transaction, 0, len(l.txs))
	for i := len(l.txs) - 1; i >= 0; i-- {
		out = append(out, l.txs[i])
	}
	return out, nil
}
