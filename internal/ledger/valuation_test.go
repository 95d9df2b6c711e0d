package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestWeightedAverageFirstLot(t *testing.T) {
	avg := WeightedAverage(0, decimal.Zero, 10, d("100"))
	require.True(t, avg.Equal(d("100")), "got %s", avg)
}

func TestWeightedAverageBlendsLots(t *testing.T) {
	avg := WeightedAverage(10, d("100"), 5, d("130"))
	// (10*100 + 5*130) / 15 = 110
	require.True(t, avg.Equal(d("110")), "got %s", avg)
}

func TestWeightedAverageKeepsFullPrecision(t *testing.T) {
	avg := WeightedAverage(3, d("10"), 1, d("11"))
	// 41/4 = 10.25
	require.True(t, avg.Equal(d("10.25")), "got %s", avg)

	avg = WeightedAverage(1, d("10"), 2, d("10.10"))
	// 30.2/3 = 10.0666... must not be rounded to 2 places
	require.True(t, avg.GreaterThan(d("10.06")), "got %s", avg)
	require.True(t, avg.LessThan(d("10.07")), "got %s", avg)
}

func TestWeightedAverageZeroPosition(t *testing.T) {
	avg := WeightedAverage(-5, d("100"), 5, d("80"))
	require.True(t, avg.Equal(d("80")), "got %s", avg)
}

func TestReplayMatchesIncrementalPosting(t *testing.T) {
	entries := []Entry{
		{Type: EntryTypeIn, Qty: 10, StockType: StockTypeNew, PurchasePrice: d("100")},
		{Type: EntryTypeOut, Qty: -4},
		{Type: EntryTypeIn, Qty: 6, StockType: StockTypeNew, PurchasePrice: d("130")},
		{Type: EntryTypeIn, Qty: 2, StockType: StockTypeReturn},
		{Type: EntryTypeAdjust, Qty: -1},
	}

	qty := int64(5)
	avg := d("90")
	for _, e := range entries {
		if e.Type == EntryTypeIn && e.StockType == StockTypeNew {
			avg = WeightedAverage(qty, avg, e.Qty, e.PurchasePrice)
		}
		qty += e.Qty
	}

	replayed := Replay(5, d("90"), entries)
	require.Equal(t, qty, replayed.Qty)
	require.True(t, avg.Equal(replayed.Avg), "incremental %s, replay %s", avg, replayed.Avg)
}

func TestReplayReturnLeavesAverageUntouched(t *testing.T) {
	entries := []Entry{
		{Type: EntryTypeIn, Qty: 3, StockType: StockTypeReturn, PurchasePrice: d("1")},
	}
	replayed := Replay(10, d("50"), entries)
	require.Equal(t, int64(13), replayed.Qty)
	require.True(t, replayed.Avg.Equal(d("50")), "got %s", replayed.Avg)
}

func TestReplayOutAndAdjustLeaveAverageUntouched(t *testing.T) {
	entries := []Entry{
		{Type: EntryTypeOut, Qty: -5},
		{Type: EntryTypeAdjust, Qty: 2},
		{Type: EntryTypeMinStockUpdate, MinStock: 7},
	}
	replayed := Replay(10, d("42.50"), entries)
	require.Equal(t, int64(7), replayed.Qty)
	require.True(t, replayed.Avg.Equal(d("42.50")), "got %s", replayed.Avg)
}

func TestReplayCorrectionReinterpretsHistory(t *testing.T) {
	// history recorded against a (13, 120) opening, later corrected to
	// (10, 100): the movements are refolded against the corrected start
	entries := []Entry{
		{Type: EntryTypeIn, Qty: 5, StockType: StockTypeNew, PurchasePrice: d("130")},
		{Type: EntryTypeOut, Qty: -4},
		{Type: EntryTypeOpeningCorrection, OpeningQty: 10, OpeningPrice: d("100")},
	}
	replayed := Replay(13, d("120"), entries)
	require.Equal(t, int64(11), replayed.Qty)
	// (10*100 + 5*130) / 15 = 110; the OUT leaves it alone
	require.True(t, replayed.Avg.Equal(d("110")), "got %s", replayed.Avg)
}

func TestReplayLastCorrectionWins(t *testing.T) {
	entries := []Entry{
		{Type: EntryTypeOpeningCorrection, OpeningQty: 4, OpeningPrice: d("25")},
		{Type: EntryTypeIn, Qty: 4, StockType: StockTypeNew, PurchasePrice: d("35")},
		{Type: EntryTypeOpeningCorrection, OpeningQty: 6, OpeningPrice: d("15")},
	}
	replayed := Replay(0, decimal.Zero, entries)
	require.Equal(t, int64(10), replayed.Qty)
	// (6*15 + 4*35) / 10 = 23
	require.True(t, replayed.Avg.Equal(d("23")), "got %s", replayed.Avg)
}

func TestReplayTracksMinimumQuantity(t *testing.T) {
	entries := []Entry{
		{Type: EntryTypeOut, Qty: -8},
		{Type: EntryTypeOpeningCorrection, OpeningQty: 3, OpeningPrice: d("10")},
		{Type: EntryTypeIn, Qty: 6, StockType: StockTypeNew, PurchasePrice: d("10")},
	}
	replayed := Replay(10, d("10"), entries)
	require.Equal(t, int64(1), replayed.Qty)
	require.Equal(t, int64(-5), replayed.MinQty)
}

func TestStockValueRoundsToTwoPlaces(t *testing.T) {
	avg := WeightedAverage(1, d("10"), 2, d("10.10"))
	value := StockValue(3, avg)
	require.True(t, value.Equal(d("30.20")), "got %s", value)

	require.True(t, StockValue(0, d("99.99")).Equal(decimal.Zero.Round(2)))
}
