package models

// Stock statuses
const (
	StockStatusOutOfStock = "out_of_stock"
	StockStatusLow        = "low_stock"
	StockStatusMedium     = "medium_stock"
	StockStatusHigh       = "high_stock"
)

// StockStatusFor derives a product status from its quantity and reorder point.
func StockStatusFor(quantity, reorderPoint int) string {
	switch {
	case quantity <= 0:
		return StockStatusOutOfStock
	case quantity <= reorderPoint:
		return StockStatusLow
	case quantity <= 2*reorderPoint:
		return StockStatusMedium
	default:
		return StockStatusHigh
	}
}

// NeedsReorder reports whether a status should raise a stock alert.
func NeedsReorder(status string) bool {
	return status == StockStatusOutOfStock || status == StockStatusLow
}
