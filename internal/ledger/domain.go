package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType enumerates the kinds of ledger entries.
type EntryType string

const (
	// EntryTypeIn records inbound stock (purchase or customer return).
	EntryTypeIn EntryType = "IN"
	// EntryTypeOut records outbound stock.
	EntryTypeOut EntryType = "OUT"
	// EntryTypeAdjust records a manual count correction.
	EntryTypeAdjust EntryType = "ADJUST"
	// EntryTypeOpeningCorrection rewrites the opening baseline.
	EntryTypeOpeningCorrection EntryType = "OPENING_CORRECTION"
	// EntryTypeMinStockUpdate records a change of the low-stock threshold.
	EntryTypeMinStockUpdate EntryType = "MIN_STOCK_UPDATE"
)

// StockType distinguishes fresh purchases from customer returns on IN entries.
type StockType string

const (
	StockTypeNew    StockType = "NEW"
	StockTypeReturn StockType = "RETURN"
)

// Source identifies the sales channel on OUT entries.
type Source string

const (
	SourceAmazon Source = "AMAZON"
	SourceOthers Source = "OTHERS"
)

// Condition describes returned goods.
type Condition string

const (
	ConditionGood    Condition = "GOOD"
	ConditionDamaged Condition = "DAMAGED"
)

// AdjustmentType gives the direction of an ADJUST entry.
type AdjustmentType string

const (
	AdjustmentIncrease AdjustmentType = "INCREASE"
	AdjustmentDecrease AdjustmentType = "DECREASE"
)

// Entry is an immutable row of the stock ledger. Qty carries the signed
// effect on current stock; entries that do not move stock keep Qty at zero.
type Entry struct {
	ID        int64
	ProductID int64
	Type      EntryType
	Qty       int64

	StockType      StockType
	Source         Source
	Condition      Condition
	AdjustmentType AdjustmentType

	InvoiceNo     string
	PurchasePrice decimal.Decimal
	InvoicePDFURL string
	Remarks       string
	Reason        string

	OpeningQty   int64
	OpeningPrice decimal.Decimal
	MinStock     int64

	OccurredAt time.Time
	CreatedBy  int64
	CreatedAt  time.Time
}

// ProductState is the slice of a product the valuation engine works on.
type ProductState struct {
	ProductID    int64
	Name         string
	OpeningQty   int64
	OpeningPrice decimal.Decimal
	MinStock     int64
	CurrentQty   int64
	AvgPrice     decimal.Decimal
}

// StockInInput posts an inbound movement.
type StockInInput struct {
	ProductID     int64
	Quantity      int64
	StockType     StockType
	InvoiceNo     string
	PurchasePrice decimal.Decimal
	InvoicePDFURL string
	Condition     Condition
	Remarks       string
	Date          time.Time
	ActorID       int64
}

// StockOutInput posts an outbound movement.
type StockOutInput struct {
	ProductID int64
	Quantity  int64
	Source    Source
	Date      time.Time
	ActorID   int64
}

// AdjustInput posts a manual correction.
type AdjustInput struct {
	ProductID int64
	Quantity  int64
	Type      AdjustmentType
	Reason    string
	Date      time.Time
	ActorID   int64
}

// OpeningInput rewrites the opening baseline of a product.
type OpeningInput struct {
	ProductID    int64
	OpeningQty   int64
	OpeningPrice decimal.Decimal
	ActorID      int64
}

// MinStockInput updates the low-stock threshold.
type MinStockInput struct {
	ProductID int64
	MinStock  int64
	Reason    string
	ActorID   int64
}

// MovementResult reports the derived state after a posted movement.
type MovementResult struct {
	EntryID    int64           `json:"entryId"`
	ProductID  int64           `json:"productId"`
	CurrentQty int64           `json:"currentQty"`
	AvgPrice   decimal.Decimal `json:"avgPurchasePrice"`
	StockValue decimal.Decimal `json:"stockValue"`
}

// HistoryFilter narrows ledger queries.
type HistoryFilter struct {
	ProductID int64
	Type      EntryType
	From      time.Time
	To        time.Time
	Search    string
	Limit     int
}

// HistoryRow is an entry joined with its product and actor for display.
type HistoryRow struct {
	Entry
	ProductName string
	ProductSKU  string
	UserEmail   string
}
