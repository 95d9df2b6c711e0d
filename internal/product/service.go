package product

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const (
	// defaultPageSize applies to the unfiltered ALL view only.
	defaultPageSize = 20
	// topSellingCap bounds the top-selling view.
	topSellingCap = 50
	// filteredCap bounds every non-paginated view.
	filteredCap = 10000
)

// Service coordinates registry operations.
type Service struct {
	repo   Repository
	audit  AuditPort
	cache  *Cache
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

// Create registers a product. The opening position seeds the derived state:
// quantity starts at the opening quantity and the average price at the
// opening price.
func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	p, err := buildProduct(in)
	if err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, in.ActorID, "product:create", created.ID, map[string]any{"sku": created.SKU, "name": created.Name})
	s.bump(ctx)
	return created, nil
}

// ListRefs returns id/name pairs for dropdowns.
func (s *Service) ListRefs(ctx context.Context) ([]Ref, error) {
	return s.repo.ListRefs(ctx)
}

// ListWithStock returns dashboard rows. The unfiltered ALL view paginates
// with a default page size; every narrowed view returns the full matching
// set under a hard cap instead.
func (s *Service) ListWithStock(ctx context.Context, filter ListFilter) ([]Summary, shared.Pagination, error) {
	summaries, err := s.loadSummaries(ctx, filter.Search)
	if err != nil {
		return nil, shared.Pagination{}, err
	}

	if filter.Status == "LOW" || filter.Status == "OK" {
		want := StockStatus(filter.Status)
		kept := summaries[:0]
		for _, sum := range summaries {
			if sum.Status() == want {
				kept = append(kept, sum)
			}
		}
		summaries = kept
	}

	if filter.TopSelling {
		sort.SliceStable(summaries, func(i, j int) bool {
			return summaries[i].TotalOut() > summaries[j].TotalOut()
		})
		top := topSellingCap
		if filter.Limit > 0 && filter.Limit < top {
			top = filter.Limit
		}
		if len(summaries) > top {
			summaries = summaries[:top]
		}
	}

	if filter.Filtered() {
		if len(summaries) > filteredCap {
			summaries = summaries[:filteredCap]
		}
		return summaries, shared.NewPagination(1, len(summaries), len(summaries)), nil
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	total := len(summaries)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return summaries[start:end], shared.NewPagination(page, limit, total), nil
}

// DashboardSummaries returns the full summary set for CSV export.
func (s *Service) DashboardSummaries(ctx context.Context) ([]Summary, error) {
	return s.loadSummaries(ctx, "")
}

// LowStock lists products at or below their threshold.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) loadSummaries(ctx context.Context, search string) ([]Summary, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.ListSummaries(ctx, search, filteredCap)
	}
	if s.cache == nil {
		summaries, err := s.repo.ListSummaries(ctx, search, filteredCap)
		return summaries, err
	}
	key, err := s.cache.BuildKey(ctx, "dashboard", "summaries", search)
	if err != nil {
		return s.repo.ListSummaries(ctx, search, filteredCap)
	}
	var summaries []Summary
	if err := s.cache.FetchJSON(ctx, key, &summaries, loader); err != nil {
		if s.logger != nil {
			s.logger.Warn("summary cache fetch", slog.Any("error", err))
		}
		return s.repo.ListSummaries(ctx, search, filteredCap)
	}
	return summaries, nil
}

func buildProduct(in CreateInput) (Product, error) {
	name := shared.NormalizeIdentifier(in.Name)
	sku := shared.NormalizeIdentifier(in.SKU)
	if name == "" {
		return Product{}, shared.ValidationError("name", "name is required")
	}
	if sku == "" {
		return Product{}, shared.ValidationError("sku", "sku is required")
	}
	if in.OpeningQty < 0 {
		return Product{}, shared.ValidationError("openingQty", "opening quantity must not be negative")
	}
	if in.OpeningPrice.IsNegative() {
		return Product{}, shared.ValidationError("openingPrice", "opening price must not be negative")
	}
	if in.MinStock < 0 {
		return Product{}, shared.ValidationError("minStock", "minimum stock must not be negative")
	}
	return Product{
		SKU:          sku,
		Name:         name,
		Category:     shared.NormalizeIdentifier(in.Category),
		Variant:      shared.NormalizeIdentifier(in.Variant),
		Unit:         shared.NormalizeIdentifier(in.Unit),
		OpeningQty:   in.OpeningQty,
		OpeningPrice: in.OpeningPrice,
		MinStock:     in.MinStock,
		CurrentQty:   in.OpeningQty,
		AvgPrice:     in.OpeningPrice,
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(productID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("cache bump", slog.Any("error", err))
	}
}

// BulkReport summarises a bulk import run.
type BulkReport struct {
	Created int        `json:"created"`
	Errors  []RowError `json:"errors"`
}

// BulkImport validates parsed rows, rejects duplicate SKUs (both within the
// file and against the registry) and inserts the valid remainder in one
// transaction.
func (s *Service) BulkImport(ctx context.Context, inputs []CreateInput, rowErrors []RowError, actorID int64) (BulkReport, error) {
	report := BulkReport{Errors: rowErrors}

	var products []Product
	var skus []string
	seen := make(map[string]int)
	for i, in := range inputs {
		p, err := buildProduct(in)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: i + 2, Message: shared.UserSafeMessage(err)})
			continue
		}
		if prev, dup := seen[p.SKU]; dup {
			report.Errors = append(report.Errors, RowError{Row: i + 2, Message: fmt.Sprintf("duplicate sku %s, first used on row %d", p.SKU, prev)})
			continue
		}
		seen[p.SKU] = i + 2
		products = append(products, p)
		skus = append(skus, p.SKU)
	}

	if len(products) > 0 {
		existing, err := s.repo.ExistingSKUs(ctx, skus)
		if err != nil {
			return report, err
		}
		kept := products[:0]
		for _, p := range products {
			if _, ok := existing[p.SKU]; ok {
				report.Errors = append(report.Errors, RowError{Row: seen[p.SKU], Message: "sku already exists: " + p.SKU})
				continue
			}
			kept = append(kept, p)
		}
		products = kept
	}

	if len(products) > 0 {
		created, err := s.repo.CreateBatch(ctx, products)
		if err != nil {
			return report, err
		}
		report.Created = len(created)
		s.recordAudit(ctx, actorID, "product:bulk_import", 0, map[string]any{"created": report.Created, "rejected": len(report.Errors)})
		s.bump(ctx)
	}
	return report, nil
}
