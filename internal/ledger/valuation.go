package ledger

import "github.com/shopspring/decimal"

// The weighted moving average is only disturbed by entries that bring stock
// in at a price: NEW purchases and opening corrections. Returns come back at
// the value they left with, outbound and adjustments move quantity only.

// WeightedAverage folds a priced inbound lot into the running average at
// full precision. When the resulting quantity is zero the incoming price
// becomes the new average.
func WeightedAverage(qty int64, avg decimal.Decimal, inQty int64, price decimal.Decimal) decimal.Decimal {
	newQty := qty + inQty
	if newQty <= 0 {
		return price
	}
	total := avg.Mul(decimal.NewFromInt(qty)).Add(price.Mul(decimal.NewFromInt(inQty)))
	return total.Div(decimal.NewFromInt(newQty))
}

// ReplayState is the outcome of folding a ledger over its baseline. MinQty
// is the lowest quantity the fold passes through, so callers can reject a
// baseline under which the recorded history would have run negative.
type ReplayState struct {
	Qty    int64
	Avg    decimal.Decimal
	MinQty int64
}

// Replay folds the movement history over the opening baseline, in posting
// order, and returns the derived quantity and average price. An
// OPENING_CORRECTION supersedes the baseline itself: every movement entry,
// including those posted before the correction, is reinterpreted against the
// corrected starting point.
func Replay(openingQty int64, openingPrice decimal.Decimal, entries []Entry) ReplayState {
	qty := openingQty
	avg := openingPrice
	for _, e := range entries {
		if e.Type == EntryTypeOpeningCorrection {
			qty = e.OpeningQty
			avg = e.OpeningPrice
		}
	}
	minQty := qty
	for _, e := range entries {
		switch e.Type {
		case EntryTypeIn:
			if e.StockType == StockTypeNew {
				avg = WeightedAverage(qty, avg, e.Qty, e.PurchasePrice)
			}
			qty += e.Qty
		case EntryTypeOut:
			qty += e.Qty
		case EntryTypeAdjust:
			qty += e.Qty
		case EntryTypeOpeningCorrection, EntryTypeMinStockUpdate:
			// baseline already applied above; thresholds never touch
			// quantity or valuation
		}
		if qty < minQty {
			minQty = qty
		}
	}
	return ReplayState{Qty: qty, Avg: avg, MinQty: minQty}
}

// StockValue is the display value of the position, rounded to 2 decimal
// places. Rounding happens here only; the average itself stays unrounded.
func StockValue(qty int64, avg decimal.Decimal) decimal.Decimal {
	return avg.Mul(decimal.NewFromInt(qty)).Round(2)
}
