package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a registry row. CurrentQty and AvgPrice are derived from the
// ledger and never written directly by product APIs.
type Product struct {
	ID           int64
	SKU          string
	Name         string
	Category     string
	Variant      string
	Unit         string
	OpeningQty   int64
	OpeningPrice decimal.Decimal
	MinStock     int64
	CurrentQty   int64
	AvgPrice     decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StockStatus classifies a product against its threshold.
type StockStatus string

const (
	// StatusLow means current quantity is at or below the minimum.
	StatusLow StockStatus = "LOW"
	// StatusOK means current quantity is above the minimum.
	StatusOK StockStatus = "OK"
)

// StatusOf applies the boundary-inclusive low stock rule.
func StatusOf(currentQty, minStock int64) StockStatus {
	if currentQty <= minStock {
		return StatusLow
	}
	return StatusOK
}

// Ref is the minimal shape used by filter dropdowns.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

// Summary is a product joined with its movement aggregates for the dashboard.
type Summary struct {
	Product
	QtyIn     int64
	AmazonOut int64
	OthersOut int64
}

// TotalOut is the ranking key for top-selling views.
func (s Summary) TotalOut() int64 {
	return s.AmazonOut + s.OthersOut
}

// Status classifies the summary row.
func (s Summary) Status() StockStatus {
	return StatusOf(s.CurrentQty, s.MinStock)
}

// StockValue is the display valuation, rounded to 2 decimal places.
func (s Summary) StockValue() decimal.Decimal {
	return s.AvgPrice.Mul(decimal.NewFromInt(s.CurrentQty)).Round(2)
}

// CreateInput carries a new product registration.
type CreateInput struct {
	Name         string
	SKU          string
	Category     string
	Variant      string
	Unit         string
	MinStock     int64
	OpeningQty   int64
	OpeningPrice decimal.Decimal
	ActorID      int64
}

// ListFilter narrows the with-stock listing.
type ListFilter struct {
	Page       int
	Limit      int
	Search     string
	Status     string
	TopSelling bool
}

// Filtered reports whether any narrowing view is active. Pagination only
// applies to the unfiltered ALL view.
func (f ListFilter) Filtered() bool {
	return f.Search != "" || f.TopSelling || (f.Status != "" && f.Status != "ALL")
}
