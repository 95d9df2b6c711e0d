package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bym-inventory/bym-inventory/internal/platform/db"
	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// TxRepository exposes transactional operations used by the service. All
// writes for a movement run through one of these inside a single tx.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (ProductState, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	ListEntriesAsc(ctx context.Context, productID int64) ([]Entry, error)
	UpdateDerived(ctx context.Context, productID int64, qty int64, avg decimal.Decimal) error
	UpdateOpening(ctx context.Context, productID int64, qty int64, price decimal.Decimal) error
	UpdateMinStock(ctx context.Context, productID int64, minStock int64) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListHistory(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error)
	ListProductStates(ctx context.Context) ([]ProductState, error)
	ListEntriesAsc(ctx context.Context, productID int64) ([]Entry, error)
	GetProductState(ctx context.Context, productID int64) (ProductState, error)
}

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const productStateColumns = `id, name, opening_qty, opening_price, min_stock, current_qty, avg_price`

func scanProductState(row pgx.Row) (ProductState, error) {
	var st ProductState
	err := row.Scan(&st.ProductID, &st.Name, &st.OpeningQty, &st.OpeningPrice, &st.MinStock, &st.CurrentQty, &st.AvgPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductState{}, shared.NotFoundError("product not found")
		}
		return ProductState{}, err
	}
	return st, nil
}

// GetProductForUpdate locks the product row, serializing writers per product.
func (r *txRepo) GetProductForUpdate(ctx context.Context, productID int64) (ProductState, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productStateColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID)
	return scanProductState(row)
}

const entryColumns = `product_id, entry_type, qty, stock_type, source, condition, adjustment_type,
	invoice_no, purchase_price, invoice_pdf_url, remarks, reason,
	opening_qty, opening_price, min_stock, occurred_at, created_by, created_at`

func (r *txRepo) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`,
		entry.ProductID, entry.Type, entry.Qty, entry.StockType, entry.Source, entry.Condition, entry.AdjustmentType,
		entry.InvoiceNo, entry.PurchasePrice, entry.InvoicePDFURL, entry.Remarks, entry.Reason,
		entry.OpeningQty, entry.OpeningPrice, entry.MinStock, entry.OccurredAt, entry.CreatedBy, createdAt,
	).Scan(&id)
	return id, err
}

const entrySelectColumns = `id, ` + entryColumns

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.ID, &e.ProductID, &e.Type, &e.Qty, &e.StockType, &e.Source, &e.Condition, &e.AdjustmentType,
			&e.InvoiceNo, &e.PurchasePrice, &e.InvoicePDFURL, &e.Remarks, &e.Reason,
			&e.OpeningQty, &e.OpeningPrice, &e.MinStock, &e.OccurredAt, &e.CreatedBy, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Valuation folds entries in posting order, not occurred_at order, so that a
// backdated movement replays exactly as it was applied incrementally.
const listEntriesAscSQL = `SELECT ` + entrySelectColumns + ` FROM stock_entries WHERE product_id = $1 ORDER BY id ASC`

func (r *txRepo) ListEntriesAsc(ctx context.Context, productID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, listEntriesAscSQL, productID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *txRepo) UpdateDerived(ctx context.Context, productID int64, qty int64, avg decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET current_qty = $2, avg_price = $3, updated_at = NOW() WHERE id = $1`, productID, qty, avg)
	return err
}

func (r *txRepo) UpdateOpening(ctx context.Context, productID int64, qty int64, price decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET opening_qty = $2, opening_price = $3, updated_at = NOW() WHERE id = $1`, productID, qty, price)
	return err
}

func (r *txRepo) UpdateMinStock(ctx context.Context, productID int64, minStock int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET min_stock = $2, updated_at = NOW() WHERE id = $1`, productID, minStock)
	return err
}

// GetProductState reads derived state without locking.
func (r *Repository) GetProductState(ctx context.Context, productID int64) (ProductState, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productStateColumns+` FROM products WHERE id = $1`, productID)
	return scanProductState(row)
}

// ListProductStates loads every product, used by the integrity job.
func (r *Repository) ListProductStates(ctx context.Context) ([]ProductState, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productStateColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var states []ProductState
	for rows.Next() {
		var st ProductState
		if err := rows.Scan(&st.ProductID, &st.Name, &st.OpeningQty, &st.OpeningPrice, &st.MinStock, &st.CurrentQty, &st.AvgPrice); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// ListEntriesAsc loads a product's full history in posting order for replay.
func (r *Repository) ListEntriesAsc(ctx context.Context, productID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, listEntriesAscSQL, productID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListHistory returns entries joined with product and user, newest first.
func (r *Repository) ListHistory(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error) {
	query := `SELECT e.id, e.product_id, e.entry_type, e.qty, e.stock_type, e.source, e.condition, e.adjustment_type,
		e.invoice_no, e.purchase_price, e.invoice_pdf_url, e.remarks, e.reason,
		e.opening_qty, e.opening_price, e.min_stock, e.occurred_at, e.created_by, e.created_at,
		p.name, p.sku, COALESCE(u.email, '')
		FROM stock_entries e
		JOIN products p ON p.id = e.product_id
		LEFT JOIN users u ON u.id = e.created_by
		WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.ProductID != 0 {
		argCount++
		query += ` AND e.product_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ProductID)
	}
	if filter.Type != "" {
		argCount++
		query += ` AND e.entry_type = $` + strconv.Itoa(argCount)
		args = append(args, filter.Type)
	}
	if !filter.From.IsZero() {
		argCount++
		query += ` AND e.occurred_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		query += ` AND e.occurred_at <= $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}
	if filter.Search != "" {
		argCount++
		placeholder := `$` + strconv.Itoa(argCount)
		query += ` AND (p.name ILIKE ` + placeholder + ` OR p.sku ILIKE ` + placeholder +
			` OR e.invoice_no ILIKE ` + placeholder + ` OR u.email ILIKE ` + placeholder + `)`
		args = append(args, "%"+filter.Search+"%")
	}

	query += ` ORDER BY e.occurred_at DESC, e.id DESC`

	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HistoryRow
	for rows.Next() {
		var h HistoryRow
		err := rows.Scan(&h.ID, &h.ProductID, &h.Type, &h.Qty, &h.StockType, &h.Source, &h.Condition, &h.AdjustmentType,
			&h.InvoiceNo, &h.PurchasePrice, &h.InvoicePDFURL, &h.Remarks, &h.Reason,
			&h.OpeningQty, &h.OpeningPrice, &h.MinStock, &h.OccurredAt, &h.CreatedBy, &h.CreatedAt,
			&h.ProductName, &h.ProductSKU, &h.UserEmail)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
