package product

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// Repository defines persistence for the product registry.
type Repository interface {
	Create(ctx context.Context, p Product) (Product, error)
	CreateBatch(ctx context.Context, products []Product) ([]Product, error)
	ListRefs(ctx context.Context) ([]Ref, error)
	ListSummaries(ctx context.Context, search string, limit int) ([]Summary, error)
	ExistingSKUs(ctx context.Context, skus []string) (map[string]struct{}, error)
	ListLowStock(ctx context.Context) ([]Product, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const insertProductSQL = `INSERT INTO products
	(sku, name, category, variant, unit, opening_qty, opening_price, min_stock, current_qty, avg_price, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	RETURNING id`

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, insertProductSQL,
		p.SKU, p.Name, p.Category, p.Variant, p.Unit,
		p.OpeningQty, p.OpeningPrice, p.MinStock, p.CurrentQty, p.AvgPrice, now,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, shared.ValidationError("sku", "sku already exists")
		}
		return Product{}, err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

// CreateBatch inserts all rows in one transaction; a single failure rolls
// the whole batch back.
func (r *repository) CreateBatch(ctx context.Context, products []Product) ([]Product, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	created := make([]Product, 0, len(products))
	for _, p := range products {
		err := tx.QueryRow(ctx, insertProductSQL,
			p.SKU, p.Name, p.Category, p.Variant, p.Unit,
			p.OpeningQty, p.OpeningPrice, p.MinStock, p.CurrentQty, p.AvgPrice, now,
		).Scan(&p.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, shared.ValidationError("sku", "sku already exists: "+p.SKU)
			}
			return nil, err
		}
		p.CreatedAt = now
		p.UpdatedAt = now
		created = append(created, p)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repository) ListRefs(ctx context.Context) ([]Ref, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sku FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.SKU); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *repository) ListSummaries(ctx context.Context, search string, limit int) ([]Summary, error) {
	query := `SELECT p.id, p.sku, p.name, p.category, p.variant, p.unit,
		p.opening_qty, p.opening_price, p.min_stock, p.current_qty, p.avg_price, p.created_at, p.updated_at,
		COALESCE(SUM(CASE WHEN e.entry_type = 'IN' THEN e.qty ELSE 0 END), 0) AS qty_in,
		COALESCE(SUM(CASE WHEN e.entry_type = 'OUT' AND e.source = 'AMAZON' THEN -e.qty ELSE 0 END), 0) AS amazon_out,
		COALESCE(SUM(CASE WHEN e.entry_type = 'OUT' AND e.source = 'OTHERS' THEN -e.qty ELSE 0 END), 0) AS others_out
		FROM products p
		LEFT JOIN stock_entries e ON e.product_id = p.id
		WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if search != "" {
		argCount++
		placeholder := `$` + strconv.Itoa(argCount)
		query += ` AND (p.name ILIKE ` + placeholder + ` OR p.sku ILIKE ` + placeholder + `)`
		args = append(args, "%"+search+"%")
	}

	query += ` GROUP BY p.id ORDER BY p.name`

	if limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		err := rows.Scan(&s.ID, &s.SKU, &s.Name, &s.Category, &s.Variant, &s.Unit,
			&s.OpeningQty, &s.OpeningPrice, &s.MinStock, &s.CurrentQty, &s.AvgPrice, &s.CreatedAt, &s.UpdatedAt,
			&s.QtyIn, &s.AmazonOut, &s.OthersOut)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *repository) ExistingSKUs(ctx context.Context, skus []string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT sku FROM products WHERE sku = ANY($1)`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	existing := make(map[string]struct{})
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, err
		}
		existing[sku] = struct{}{}
	}
	return existing, rows.Err()
}

// ListLowStock returns products at or below their threshold.
func (r *repository) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sku, name, category, variant, unit,
		opening_qty, opening_price, min_stock, current_qty, avg_price, created_at, updated_at
		FROM products WHERE current_qty <= min_stock ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Variant, &p.Unit,
			&p.OpeningQty, &p.OpeningPrice, &p.MinStock, &p.CurrentQty, &p.AvgPrice, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
