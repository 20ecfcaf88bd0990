package catalog

// StockStatus classifies an item's quantity against its reorder threshold.
type StockStatus string

const (
	// StockLow means the quantity is at or below the threshold.
	StockLow StockStatus = "low"
	// StockMedium means the quantity is at or below twice the threshold.
	StockMedium StockStatus = "medium"
	// StockInStock means the quantity is comfortably above the threshold.
	StockInStock StockStatus = "in_stock"
)

// Label is the human-readable form shown on inventory screens.
func (s StockStatus) Label() string {
	switch s {
	case StockLow:
		return "Low Stock"
	case StockMedium:
		return "Medium"
	case StockInStock:
		return "In Stock"
	default:
		return string(s)
	}
}

// Status returns the stock status of the item.
func (it Item) Status() StockStatus {
	switch {
	case it.Quantity <= it.Threshold:
		return StockLow
	case it.Quantity <= it.Threshold*2:
		return StockMedium
	default:
		return StockInStock
	}
}

// IsLowStock reports whether the item should raise a reorder alert.
func (it Item) IsLowStock() bool {
	return it.Status() == StockLow
}
