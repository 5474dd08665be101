package inventory

import (
	"errors"
	"time"
)

// StockStatus describes how much sellable stock remains for an item.
type StockStatus string

const (
	// StatusInStock means plenty of stock remains.
	StatusInStock StockStatus = "IN_STOCK"
	// StatusLowStock means stock is at or below the reorder threshold.
	StatusLowStock StockStatus = "LOW_STOCK"
	// StatusOutOfStock means nothing is left to sell.
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
)

// LowStockThreshold is the quantity at or below which an item counts as low.
const LowStockThreshold = 100

// Item is a marble product tracked in the inventory ledger.
type Item struct {
	ID           int64
	MarbleType   string
	Size         string
	Quantity     int64
	PurchaseRate float64
	SaleRate     float64
	Supplier     string
	Status       StockStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StatusFor derives the stock status from a quantity.
func StatusFor(qty int64) StockStatus {
	switch {
	case qty <= 0:
		return StatusOutOfStock
	case qty <= LowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// CreateInput describes a new inventory item.
type CreateInput struct {
	MarbleType   string
	Size         string
	Quantity     int64
	PurchaseRate float64
	SaleRate     float64
	Supplier     string
}

// UpdateInput describes an item update. Nil fields are left unchanged.
type UpdateInput struct {
	MarbleType   *string
	Size         *string
	Quantity     *int64
	PurchaseRate *float64
	SaleRate     *float64
	Supplier     *string
}

// ListFilter narrows item listings.
type ListFilter struct {
	Status StockStatus
	Search string
	Limit  int
	Offset int
}

var (
	// ErrNotFound indicates a missing inventory item.
	ErrNotFound = errors.New("inventory: item not found")
	// ErrInsufficientStock indicates a reservation larger than the stock on hand.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrValidation indicates invalid item data.
	ErrValidation = errors.New("inventory: validation failed")
)
