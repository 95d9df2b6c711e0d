package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates read-side caches after a committed write.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service coordinates ledger operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       CacheBumper
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cache CacheBumper, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, cache: cache, logger: logger, now: time.Now}
}

// PostStockIn appends an inbound entry. NEW stock re-weights the average
// price; RETURN stock only restores quantity.
func (s *Service) PostStockIn(ctx context.Context, in StockInInput, idemKey string) (MovementResult, error) {
	if err := ValidateStockIn(in); err != nil {
		return MovementResult{}, err
	}
	occurred := in.Date
	if occurred.IsZero() {
		occurred = s.now().UTC()
	}
	entry := Entry{
		ProductID:     in.ProductID,
		Type:          EntryTypeIn,
		Qty:           in.Quantity,
		StockType:     in.StockType,
		Condition:     in.Condition,
		InvoiceNo:     in.InvoiceNo,
		PurchasePrice: in.PurchasePrice,
		InvoicePDFURL: in.InvoicePDFURL,
		Remarks:       in.Remarks,
		OccurredAt:    occurred,
		CreatedBy:     in.ActorID,
	}
	return s.postMovement(ctx, entry, idemKey, func(st ProductState) (int64, decimal.Decimal, error) {
		avg := st.AvgPrice
		if in.StockType == StockTypeNew {
			avg = WeightedAverage(st.CurrentQty, st.AvgPrice, in.Quantity, in.PurchasePrice)
		}
		return st.CurrentQty + in.Quantity, avg, nil
	})
}

// PreviewStockIn computes the post-movement state without writing anything.
// It shares the valuation code with the posting path so the preview can
// never drift from what posting would produce.
func (s *Service) PreviewStockIn(ctx context.Context, in StockInInput) (MovementResult, error) {
	if err := ValidateStockIn(in); err != nil {
		return MovementResult{}, err
	}
	st, err := s.repo.GetProductState(ctx, in.ProductID)
	if err != nil {
		return MovementResult{}, err
	}
	avg := st.AvgPrice
	if in.StockType == StockTypeNew {
		avg = WeightedAverage(st.CurrentQty, st.AvgPrice, in.Quantity, in.PurchasePrice)
	}
	qty := st.CurrentQty + in.Quantity
	return MovementResult{ProductID: in.ProductID, CurrentQty: qty, AvgPrice: avg, StockValue: StockValue(qty, avg)}, nil
}

// PostStockOut appends an outbound entry. The average price is untouched.
func (s *Service) PostStockOut(ctx context.Context, in StockOutInput, idemKey string) (MovementResult, error) {
	if err := ValidateStockOut(in, s.now()); err != nil {
		return MovementResult{}, err
	}
	entry := Entry{
		ProductID:  in.ProductID,
		Type:       EntryTypeOut,
		Qty:        -in.Quantity,
		Source:     in.Source,
		OccurredAt: in.Date,
		CreatedBy:  in.ActorID,
	}
	return s.postMovement(ctx, entry, idemKey, func(st ProductState) (int64, decimal.Decimal, error) {
		newQty := st.CurrentQty - in.Quantity
		if newQty < 0 {
			return 0, decimal.Decimal{}, shared.InsufficientStockError(
				fmt.Sprintf("cannot remove %d units, only %d in stock", in.Quantity, st.CurrentQty))
		}
		return newQty, st.AvgPrice, nil
	})
}

// PostAdjustment appends a count correction in either direction.
func (s *Service) PostAdjustment(ctx context.Context, in AdjustInput, idemKey string) (MovementResult, error) {
	if err := ValidateAdjust(in); err != nil {
		return MovementResult{}, err
	}
	qtyChange := in.Quantity
	if in.Type == AdjustmentDecrease {
		qtyChange = -in.Quantity
	}
	occurred := in.Date
	if occurred.IsZero() {
		occurred = s.now().UTC()
	}
	entry := Entry{
		ProductID:      in.ProductID,
		Type:           EntryTypeAdjust,
		Qty:            qtyChange,
		AdjustmentType: in.Type,
		Reason:         in.Reason,
		OccurredAt:     occurred,
		CreatedBy:      in.ActorID,
	}
	return s.postMovement(ctx, entry, idemKey, func(st ProductState) (int64, decimal.Decimal, error) {
		newQty := st.CurrentQty + qtyChange
		if newQty < 0 {
			return 0, decimal.Decimal{}, shared.InsufficientStockError(
				fmt.Sprintf("cannot decrease by %d units, only %d in stock", in.Quantity, st.CurrentQty))
		}
		return newQty, st.AvgPrice, nil
	})
}

// CorrectOpening rewrites the opening baseline and replays the entire entry
// history against it, so every derived value reflects the corrected start.
func (s *Service) CorrectOpening(ctx context.Context, in OpeningInput) (MovementResult, error) {
	if err := ValidateOpening(in); err != nil {
		return MovementResult{}, err
	}
	var result MovementResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProductForUpdate(ctx, in.ProductID); err != nil {
			return err
		}
		if err := tx.UpdateOpening(ctx, in.ProductID, in.OpeningQty, in.OpeningPrice); err != nil {
			return err
		}
		entry := Entry{
			ProductID:    in.ProductID,
			Type:         EntryTypeOpeningCorrection,
			OpeningQty:   in.OpeningQty,
			OpeningPrice: in.OpeningPrice,
			OccurredAt:   s.now().UTC(),
			CreatedBy:    in.ActorID,
		}
		entryID, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entries, err := tx.ListEntriesAsc(ctx, in.ProductID)
		if err != nil {
			return err
		}
		state := Replay(in.OpeningQty, in.OpeningPrice, entries)
		if state.MinQty < 0 {
			return shared.InsufficientStockError(
				fmt.Sprintf("corrected opening would take stock to %d, history cannot go negative", state.MinQty))
		}
		if err := tx.UpdateDerived(ctx, in.ProductID, state.Qty, state.Avg); err != nil {
			return err
		}
		result = MovementResult{EntryID: entryID, ProductID: in.ProductID, CurrentQty: state.Qty, AvgPrice: state.Avg, StockValue: StockValue(state.Qty, state.Avg)}
		return nil
	})
	if err != nil {
		return MovementResult{}, err
	}
	s.afterCommit(ctx, in.ActorID, EntryTypeOpeningCorrection, in.ProductID, map[string]any{
		"opening_qty":   in.OpeningQty,
		"opening_price": in.OpeningPrice.String(),
	})
	return result, nil
}

// UpdateMinStock records a threshold change as a ledger entry. Quantity and
// valuation are untouched.
func (s *Service) UpdateMinStock(ctx context.Context, in MinStockInput) (MovementResult, error) {
	if err := ValidateMinStock(in); err != nil {
		return MovementResult{}, err
	}
	var result MovementResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		st, err := tx.GetProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if err := tx.UpdateMinStock(ctx, in.ProductID, in.MinStock); err != nil {
			return err
		}
		entry := Entry{
			ProductID:  in.ProductID,
			Type:       EntryTypeMinStockUpdate,
			MinStock:   in.MinStock,
			Reason:     in.Reason,
			OccurredAt: s.now().UTC(),
			CreatedBy:  in.ActorID,
		}
		entryID, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		result = MovementResult{EntryID: entryID, ProductID: in.ProductID, CurrentQty: st.CurrentQty, AvgPrice: st.AvgPrice, StockValue: StockValue(st.CurrentQty, st.AvgPrice)}
		return nil
	})
	if err != nil {
		return MovementResult{}, err
	}
	s.afterCommit(ctx, in.ActorID, EntryTypeMinStockUpdate, in.ProductID, map[string]any{
		"min_stock": in.MinStock,
		"reason":    in.Reason,
	})
	return result, nil
}

// historyCap bounds unpaginated history queries.
const historyCap = 10000

// History lists ledger entries newest first.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error) {
	if filter.Limit <= 0 || filter.Limit > historyCap {
		filter.Limit = historyCap
	}
	if !filter.To.IsZero() {
		filter.To = endOfDay(filter.To)
	}
	return s.repo.ListHistory(ctx, filter)
}

// IntegrityMismatch reports a product whose stored derived state disagrees
// with a full replay of its ledger.
type IntegrityMismatch struct {
	ProductID   int64
	Name        string
	StoredQty   int64
	ReplayedQty int64
	StoredAvg   decimal.Decimal
	ReplayedAvg decimal.Decimal
}

// VerifyIntegrity replays every product ledger and returns the mismatches.
// With repair set, stored state is rewritten to the replayed values.
func (s *Service) VerifyIntegrity(ctx context.Context, repair bool) ([]IntegrityMismatch, error) {
	states, err := s.repo.ListProductStates(ctx)
	if err != nil {
		return nil, err
	}
	var mismatches []IntegrityMismatch
	for _, st := range states {
		entries, err := s.repo.ListEntriesAsc(ctx, st.ProductID)
		if err != nil {
			return nil, err
		}
		replayed := Replay(st.OpeningQty, st.OpeningPrice, entries)
		if replayed.Qty == st.CurrentQty && replayed.Avg.Equal(st.AvgPrice) {
			continue
		}
		mismatches = append(mismatches, IntegrityMismatch{
			ProductID:   st.ProductID,
			Name:        st.Name,
			StoredQty:   st.CurrentQty,
			ReplayedQty: replayed.Qty,
			StoredAvg:   st.AvgPrice,
			ReplayedAvg: replayed.Avg,
		})
		if repair {
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				if _, err := tx.GetProductForUpdate(ctx, st.ProductID); err != nil {
					return err
				}
				fresh, err := tx.ListEntriesAsc(ctx, st.ProductID)
				if err != nil {
					return err
				}
				fixed := Replay(st.OpeningQty, st.OpeningPrice, fresh)
				return tx.UpdateDerived(ctx, st.ProductID, fixed.Qty, fixed.Avg)
			})
			if err != nil {
				return mismatches, err
			}
		}
	}
	return mismatches, nil
}

type derive func(ProductState) (int64, decimal.Decimal, error)

func (s *Service) postMovement(ctx context.Context, entry Entry, idemKey string, fn derive) (MovementResult, error) {
	insertedKey := false
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "ledger"); err != nil {
			return MovementResult{}, err
		}
		insertedKey = true
	}

	var result MovementResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		st, err := tx.GetProductForUpdate(ctx, entry.ProductID)
		if err != nil {
			return err
		}
		newQty, newAvg, err := fn(st)
		if err != nil {
			return err
		}
		entryID, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		if err := tx.UpdateDerived(ctx, entry.ProductID, newQty, newAvg); err != nil {
			return err
		}
		result = MovementResult{EntryID: entryID, ProductID: entry.ProductID, CurrentQty: newQty, AvgPrice: newAvg, StockValue: StockValue(newQty, newAvg)}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return MovementResult{}, err
	}

	s.afterCommit(ctx, entry.CreatedBy, entry.Type, entry.ProductID, map[string]any{
		"qty":        entry.Qty,
		"stock_type": string(entry.StockType),
		"source":     string(entry.Source),
	})
	return result, nil
}

func (s *Service) afterCommit(ctx context.Context, actorID int64, entryType EntryType, productID int64, meta map[string]any) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("ledger:%s", entryType),
			Entity:   "stock_entry",
			EntityID: fmt.Sprintf("%s:%d", entryType, productID),
			Meta:     meta,
		}); err != nil && s.logger != nil {
			s.logger.Warn("audit record", slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
			s.logger.Warn("cache bump", slog.Any("error", err))
		}
	}
}
