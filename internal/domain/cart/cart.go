// Package cart implements the point-of-sale cart engine: line items keyed by
// catalog identifier, kept in insertion order, with totals derived exactly
// from unit prices and quantities.
//
// A Cart is not safe for concurrent use. Callers that share a cart between
// goroutines must serialise access themselves.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/inventrak/internal/domain/catalog"
)

// UnknownItemError reports an operation on a line that is not in the cart.
type UnknownItemError struct {
	ProductID string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("item %s is not in the cart", e.ProductID)
}

// LineItem is one catalog item's quantity and subtotal within a cart.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func newLine(productID, name string, price decimal.Decimal, qty int) LineItem {
	l := LineItem{
		ProductID: productID,
		Name:      name,
		UnitPrice: price,
	}
	l.setQuantity(qty)
	return l
}

// setQuantity is the only place a line's quantity changes, so the subtotal
// can never drift from UnitPrice × Quantity.
func (l *LineItem) setQuantity(qty int) {
	l.Quantity = qty
	l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// Cart is an ordered collection of line items with no duplicate identifiers.
// The zero value is an empty cart ready to use.
type Cart struct {
	lines []LineItem
	index map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddItem adds one unit of item. A new line starts at quantity 1; an
// existing line is incremented by one.
func (c *Cart) AddItem(item catalog.Item) {
	if i, ok := c.index[item.ID]; ok {
		c.lines[i].setQuantity(c.lines[i].Quantity + 1)
		return
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.index[item.ID] = len(c.lines)
	c.lines = append(c.lines, newLine(item.ID, item.Name, item.Price, 1))
}

// SetQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line. It returns false, leaving the cart untouched, when
// no line exists for productID.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i, ok := c.index[productID]
	if !ok {
		return false
	}
	if qty <= 0 {
		c.removeAt(i)
		return true
	}
	c.lines[i].setQuantity(qty)
	return true
}

// RemoveItem deletes the line for productID. It returns false when there was
// no such line.
func (c *Cart) RemoveItem(productID string) bool {
	i, ok := c.index[productID]
	if !ok {
		return false
	}
	c.removeAt(i)
	return true
}

func (c *Cart) removeAt(i int) {
	delete(c.index, c.lines[i].ProductID)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = nil
}

// Total returns the sum of all line subtotals, or zero for an empty cart.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// Lines returns a copy of the line items in insertion order.
func (c *Cart) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID.
func (c *Cart) Line(productID string) (LineItem, bool) {
	i, ok := c.index[productID]
	if !ok {
		return LineItem{}, false
	}
	return c.lines[i], true
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Units returns the total number of units across all lines.
func (c *Cart) Units() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Restore rebuilds a cart from previously captured lines, for example a
// persisted snapshot. Subtotals are recomputed, lines with a non-positive
// quantity are dropped and repeated identifiers are merged into the first
// occurrence.
func Restore(lines []LineItem) *Cart {
	c := New()
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if i, ok := c.index[l.ProductID]; ok {
			c.lines[i].setQuantity(c.lines[i].Quantity + l.Quantity)
			continue
		}
		if c.index == nil {
			c.index = make(map[string]int)
		}
		c.index[l.ProductID] = len(c.lines)
		c.lines = append(c.lines, newLine(l.ProductID, l.Name, l.UnitPrice, l.Quantity))
	}
	return c
}
