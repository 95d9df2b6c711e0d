package ledger

import (
	"time"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// Validation is pure: it inspects the input and nothing else. Stock
// sufficiency is checked later, under the product row lock.

// ValidateStockIn checks an inbound movement request.
func ValidateStockIn(in StockInInput) error {
	if in.ProductID <= 0 {
		return shared.ValidationError("productId", "product is required")
	}
	if in.Quantity <= 0 {
		return shared.ValidationError("quantity", "quantity must be greater than zero")
	}
	switch in.StockType {
	case StockTypeNew:
		if in.InvoiceNo == "" {
			return shared.ValidationError("invoiceNo", "invoice number is required for new stock")
		}
		if in.PurchasePrice.IsNegative() {
			return shared.ValidationError("purchasePrice", "purchase price must not be negative")
		}
	case StockTypeReturn:
		if in.Condition != "" && in.Condition != ConditionGood && in.Condition != ConditionDamaged {
			return shared.ValidationError("condition", "condition must be GOOD or DAMAGED")
		}
	default:
		return shared.ValidationError("stockType", "stock type must be NEW or RETURN")
	}
	return nil
}

// ValidateStockOut checks an outbound movement request.
func ValidateStockOut(in StockOutInput, now time.Time) error {
	if in.ProductID <= 0 {
		return shared.ValidationError("productId", "product is required")
	}
	if in.Quantity <= 0 {
		return shared.ValidationError("quantity", "quantity must be greater than zero")
	}
	if in.Source != SourceAmazon && in.Source != SourceOthers {
		return shared.ValidationError("source", "source must be AMAZON or OTHERS")
	}
	if in.Date.IsZero() {
		return shared.ValidationError("date", "date is required")
	}
	if in.Date.After(endOfDay(now)) {
		return shared.ValidationError("date", "date must not be in the future")
	}
	return nil
}

// ValidateAdjust checks a manual correction request.
func ValidateAdjust(in AdjustInput) error {
	if in.ProductID <= 0 {
		return shared.ValidationError("productId", "product is required")
	}
	if in.Quantity <= 0 {
		return shared.ValidationError("quantity", "quantity must be greater than zero")
	}
	if in.Type != AdjustmentIncrease && in.Type != AdjustmentDecrease {
		return shared.ValidationError("adjustmentType", "adjustment type must be INCREASE or DECREASE")
	}
	return nil
}

// ValidateOpening checks an opening correction request.
func ValidateOpening(in OpeningInput) error {
	if in.ProductID <= 0 {
		return shared.ValidationError("productId", "product is required")
	}
	if in.OpeningQty < 0 {
		return shared.ValidationError("openingQty", "opening quantity must not be negative")
	}
	if in.OpeningPrice.IsNegative() {
		return shared.ValidationError("openingPrice", "opening price must not be negative")
	}
	return nil
}

// ValidateMinStock checks a threshold update request.
func ValidateMinStock(in MinStockInput) error {
	if in.ProductID <= 0 {
		return shared.ValidationError("productId", "product is required")
	}
	if in.MinStock < 0 {
		return shared.ValidationError("minStock", "minimum stock must not be negative")
	}
	return nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
