// Package memory provides in-process stores. They back the server when no
// database is configured and serve as fakes in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/inventrak/internal/domain/catalog"
)

// MockItems returns the built-in demo catalog.
func MockItems() []catalog.Item {
	now := time.Now().UTC()
	mk := func(id, name string, price int64, qty int, category string, threshold int, code, desc string) catalog.Item {
		return catalog.Item{
			ID:          id,
			Name:        name,
			Price:       decimal.NewFromInt(price),
			Quantity:    qty,
			Threshold:   threshold,
			Category:    category,
			Code:        code,
			Description: desc,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return []catalog.Item{
		mk("1", "Rice (1kg)", 80, 50, "Groceries", 10, "R001", "Premium Basmati Rice"),
		mk("2", "Cooking Oil (1L)", 150, 25, "Groceries", 5, "O001", "Refined Sunflower Oil"),
		mk("3", "Sugar (1kg)", 45, 30, "Groceries", 8, "S001", "White Crystal Sugar"),
		mk("4", "Tea Powder (250g)", 120, 3, "Beverages", 5, "T001", "Premium Black Tea"),
		mk("5", "Biscuits Pack", 25, 40, "Snacks", 10, "B001", "Glucose Biscuits"),
		mk("6", "Shampoo (200ml)", 180, 2, "Personal Care", 5, "SH001", "Anti-dandruff Shampoo"),
	}
}

var _ catalog.Repository = (*Catalog)(nil)

// Catalog is a catalog.Repository held in memory.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]catalog.Item
}

// NewCatalog returns a Catalog holding items. Invalid items are rejected.
func NewCatalog(items ...catalog.Item) (*Catalog, error) {
	c := &Catalog{items: make(map[string]catalog.Item, len(items))}
	if err := c.Upsert(context.Background(), items); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all items ordered by ID.
func (c *Catalog) List(_ context.Context) ([]catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]catalog.Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID returns the item or catalog.ErrNotFound.
func (c *Catalog) GetByID(_ context.Context, id string) (*catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &it, nil
}

// Upsert validates and stores items. Nothing is stored when any item is
// invalid.
func (c *Catalog) Upsert(_ context.Context, items []catalog.Item) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	for _, it := range items {
		if prev, ok := c.items[it.ID]; ok && !prev.CreatedAt.IsZero() {
			it.CreatedAt = prev.CreatedAt
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
		c.items[it.ID] = it
	}
	return nil
}

// DecrementStock takes qty units of id off the shelf, stopping at zero.
// Unknown identifiers are ignored.
func (c *Catalog) DecrementStock(id string, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return
	}
	it.Quantity = max(it.Quantity-qty, 0)
	it.UpdatedAt = time.Now().UTC()
	c.items[id] = it
}
