package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

type memoryRepo struct {
	states  map[int64]*ProductState
	entries map[int64][]Entry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{states: make(map[int64]*ProductState), entries: make(map[int64][]Entry)}
}

func (r *memoryRepo) addProduct(st ProductState) {
	cp := st
	r.states[st.ProductID] = &cp
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetProductState(ctx context.Context, productID int64) (ProductState, error) {
	st, ok := r.states[productID]
	if !ok {
		return ProductState{}, shared.NotFoundError("product not found")
	}
	return *st, nil
}

func (r *memoryRepo) ListProductStates(ctx context.Context) ([]ProductState, error) {
	var states []ProductState
	for _, st := range r.states {
		states = append(states, *st)
	}
	return states, nil
}

func (r *memoryRepo) ListEntriesAsc(ctx context.Context, productID int64) ([]Entry, error) {
	// posting order, mirroring the SQL ORDER BY id
	entries := make([]Entry, len(r.entries[productID]))
	copy(entries, r.entries[productID])
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (r *memoryRepo) ListHistory(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error) {
	var rows []HistoryRow
	for productID, entries := range r.entries {
		if filter.ProductID != 0 && filter.ProductID != productID {
			continue
		}
		for _, e := range entries {
			if filter.Type != "" && e.Type != filter.Type {
				continue
			}
			rows = append(rows, HistoryRow{Entry: e})
		}
	}
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, productID int64) (ProductState, error) {
	return tx.repo.GetProductState(ctx, productID)
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries[entry.ProductID] = append(tx.repo.entries[entry.ProductID], entry)
	return entry.ID, nil
}

func (tx *memoryTx) ListEntriesAsc(ctx context.Context, productID int64) ([]Entry, error) {
	return tx.repo.ListEntriesAsc(ctx, productID)
}

func (tx *memoryTx) UpdateDerived(ctx context.Context, productID int64, qty int64, avg decimal.Decimal) error {
	st := tx.repo.states[productID]
	st.CurrentQty = qty
	st.AvgPrice = avg
	return nil
}

func (tx *memoryTx) UpdateOpening(ctx context.Context, productID int64, qty int64, price decimal.Decimal) error {
	st := tx.repo.states[productID]
	st.OpeningQty = qty
	st.OpeningPrice = price
	return nil
}

func (tx *memoryTx) UpdateMinStock(ctx context.Context, productID int64, minStock int64) error {
	tx.repo.states[productID].MinStock = minStock
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, nil)
}

func TestPostStockInNewReweightsAverage(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 10, AvgPrice: d("100")})
	svc := newTestService(repo)

	res, err := svc.PostStockIn(context.Background(), StockInInput{
		ProductID: 1, Quantity: 5, StockType: StockTypeNew, InvoiceNo: "INV-1", PurchasePrice: d("130"),
	}, "")
	require.NoError(t, err)
	require.Equal(t, int64(15), res.CurrentQty)
	require.True(t, res.AvgPrice.Equal(d("110")), "got %s", res.AvgPrice)
	require.True(t, res.StockValue.Equal(d("1650")), "got %s", res.StockValue)
	require.Len(t, repo.entries[1], 1)
	require.Equal(t, int64(5), repo.entries[1][0].Qty)
}

func TestPostStockInReturnKeepsAverage(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 10, AvgPrice: d("100")})
	svc := newTestService(repo)

	res, err := svc.PostStockIn(context.Background(), StockInInput{
		ProductID: 1, Quantity: 3, StockType: StockTypeReturn, Condition: ConditionGood,
	}, "")
	require.NoError(t, err)
	require.Equal(t, int64(13), res.CurrentQty)
	require.True(t, res.AvgPrice.Equal(d("100")), "got %s", res.AvgPrice)
}

func TestPostStockOutRejectsOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 4, AvgPrice: d("10")})
	svc := newTestService(repo)

	_, err := svc.PostStockOut(context.Background(), StockOutInput{
		ProductID: 1, Quantity: 5, Source: SourceOthers, Date: time.Now().AddDate(0, 0, -1),
	}, "")
	require.Error(t, err)
	require.Equal(t, shared.KindInsufficientStock, shared.KindOf(err))
	// nothing was written
	require.Empty(t, repo.entries[1])
	require.Equal(t, int64(4), repo.states[1].CurrentQty)
}

func TestPostStockOutExactDrainAllowed(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 4, AvgPrice: d("10")})
	svc := newTestService(repo)

	res, err := svc.PostStockOut(context.Background(), StockOutInput{
		ProductID: 1, Quantity: 4, Source: SourceAmazon, Date: time.Now().AddDate(0, 0, -1),
	}, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), res.CurrentQty)
	require.True(t, res.AvgPrice.Equal(d("10")), "average survives a drain, got %s", res.AvgPrice)
	require.Equal(t, int64(-4), repo.entries[1][0].Qty)
}

func TestPostAdjustmentDecreaseBoundedByStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 2, AvgPrice: d("10")})
	svc := newTestService(repo)

	_, err := svc.PostAdjustment(context.Background(), AdjustInput{
		ProductID: 1, Quantity: 3, Type: AdjustmentDecrease, Reason: "damaged in storage",
	}, "")
	require.Equal(t, shared.KindInsufficientStock, shared.KindOf(err))

	res, err := svc.PostAdjustment(context.Background(), AdjustInput{
		ProductID: 1, Quantity: 3, Type: AdjustmentIncrease, Reason: "found in recount",
	}, "")
	require.NoError(t, err)
	require.Equal(t, int64(5), res.CurrentQty)
	require.True(t, res.AvgPrice.Equal(d("10")), "got %s", res.AvgPrice)
}

func TestPreviewStockInMatchesPosting(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 10, AvgPrice: d("100")})
	svc := newTestService(repo)

	in := StockInInput{ProductID: 1, Quantity: 5, StockType: StockTypeNew, InvoiceNo: "INV-9", PurchasePrice: d("130")}
	preview, err := svc.PreviewStockIn(context.Background(), in)
	require.NoError(t, err)
	require.Empty(t, repo.entries[1], "preview must not write")

	posted, err := svc.PostStockIn(context.Background(), in, "")
	require.NoError(t, err)
	require.Equal(t, preview.CurrentQty, posted.CurrentQty)
	require.True(t, preview.AvgPrice.Equal(posted.AvgPrice))
	require.True(t, preview.StockValue.Equal(posted.StockValue))
}

func TestCorrectOpeningReplaysHistory(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, OpeningQty: 13, OpeningPrice: d("120"), CurrentQty: 13, AvgPrice: d("120")})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostStockIn(ctx, StockInInput{ProductID: 1, Quantity: 5, StockType: StockTypeNew, InvoiceNo: "INV-1", PurchasePrice: d("130")}, "")
	require.NoError(t, err)
	_, err = svc.PostStockOut(ctx, StockOutInput{ProductID: 1, Quantity: 4, Source: SourceOthers, Date: time.Now().AddDate(0, 0, -1)}, "")
	require.NoError(t, err)

	res, err := svc.CorrectOpening(ctx, OpeningInput{ProductID: 1, OpeningQty: 10, OpeningPrice: d("100")})
	require.NoError(t, err)
	// history is refolded against the corrected start, not discarded:
	// 10 + 5 - 4 = 11, avg (10*100 + 5*130) / 15 = 110
	require.Equal(t, int64(11), res.CurrentQty)
	require.True(t, res.AvgPrice.Equal(d("110")), "got %s", res.AvgPrice)
	require.Equal(t, int64(10), repo.states[1].OpeningQty)

	// a later IN builds on the corrected state
	after, err := svc.PostStockIn(ctx, StockInInput{ProductID: 1, Quantity: 5, StockType: StockTypeNew, InvoiceNo: "INV-2", PurchasePrice: d("174")}, "")
	require.NoError(t, err)
	require.Equal(t, int64(16), after.CurrentQty)
	// (11*110 + 5*174) / 16 = 130
	require.True(t, after.AvgPrice.Equal(d("130")), "got %s", after.AvgPrice)
}

func TestCorrectOpeningRejectsNegativeReplay(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, OpeningQty: 10, OpeningPrice: d("10"), CurrentQty: 2, AvgPrice: d("10")})
	repo.entries[1] = []Entry{{ID: 1, ProductID: 1, Type: EntryTypeOut, Qty: -8, OccurredAt: time.Now().AddDate(0, 0, -1)}}
	repo.nextID = 1
	svc := newTestService(repo)

	// the recorded OUT of 8 cannot have happened against an opening of 3
	_, err := svc.CorrectOpening(context.Background(), OpeningInput{ProductID: 1, OpeningQty: 3, OpeningPrice: d("10")})
	require.Error(t, err)
	require.Equal(t, shared.KindInsufficientStock, shared.KindOf(err))
	require.Equal(t, int64(2), repo.states[1].CurrentQty, "derived state must be untouched")
}

func TestUpdateMinStockDoesNotMoveStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 7, AvgPrice: d("12"), MinStock: 2})
	svc := newTestService(repo)

	res, err := svc.UpdateMinStock(context.Background(), MinStockInput{ProductID: 1, MinStock: 9, Reason: "seasonal demand"})
	require.NoError(t, err)
	require.Equal(t, int64(7), res.CurrentQty)
	require.Equal(t, int64(9), repo.states[1].MinStock)
	require.Len(t, repo.entries[1], 1)
	require.Equal(t, EntryTypeMinStockUpdate, repo.entries[1][0].Type)
	require.Equal(t, int64(0), repo.entries[1][0].Qty)
}

func TestPostMovementUnknownProduct(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.PostStockIn(context.Background(), StockInInput{ProductID: 42, Quantity: 1, StockType: StockTypeNew, InvoiceNo: "INV-1", PurchasePrice: d("1")}, "")
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestBackdatedEntryReplaysInPostingOrder(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostStockIn(ctx, StockInInput{ProductID: 1, Quantity: 10, StockType: StockTypeNew, InvoiceNo: "INV-1", PurchasePrice: d("100")}, "")
	require.NoError(t, err)
	_, err = svc.PostStockOut(ctx, StockOutInput{ProductID: 1, Quantity: 8, Source: SourceAmazon, Date: time.Now().AddDate(0, 0, -1)}, "")
	require.NoError(t, err)

	// dated before the OUT but posted after it; valuation uses posting order
	res, err := svc.PostStockIn(ctx, StockInInput{
		ProductID: 1, Quantity: 5, StockType: StockTypeNew, InvoiceNo: "INV-2",
		PurchasePrice: d("130"), Date: time.Now().AddDate(0, 0, -7),
	}, "")
	require.NoError(t, err)
	require.Equal(t, int64(7), res.CurrentQty)
	// (2*100 + 5*130) / 7
	require.True(t, res.AvgPrice.Equal(d("850").Div(d("7"))), "got %s", res.AvgPrice)

	mismatches, err := svc.VerifyIntegrity(ctx, false)
	require.NoError(t, err)
	require.Empty(t, mismatches, "replay must agree with incremental posting")
}

func TestVerifyIntegrityFindsAndRepairsDrift(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, OpeningQty: 10, OpeningPrice: d("5"), CurrentQty: 99, AvgPrice: d("5")})
	repo.entries[1] = []Entry{{ProductID: 1, Type: EntryTypeOut, Qty: -2}}
	svc := newTestService(repo)

	mismatches, err := svc.VerifyIntegrity(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, int64(99), mismatches[0].StoredQty)
	require.Equal(t, int64(8), mismatches[0].ReplayedQty)
	require.Equal(t, int64(99), repo.states[1].CurrentQty, "dry run must not write")

	_, err = svc.VerifyIntegrity(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, int64(8), repo.states[1].CurrentQty)

	mismatches, err = svc.VerifyIntegrity(context.Background(), false)
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestHistoryAppliesCapAndFilter(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1})
	repo.entries[1] = []Entry{
		{ProductID: 1, Type: EntryTypeIn, Qty: 5},
		{ProductID: 1, Type: EntryTypeOut, Qty: -2},
	}
	svc := newTestService(repo)

	rows, err := svc.History(context.Background(), HistoryFilter{ProductID: 1, Type: EntryTypeOut})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, EntryTypeOut, rows[0].Type)
}
