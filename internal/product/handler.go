package product

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/bym-inventory/bym-inventory/internal/auth"
	"github.com/bym-inventory/bym-inventory/internal/export"
	"github.com/bym-inventory/bym-inventory/internal/platform/httpx"
	"github.com/bym-inventory/bym-inventory/internal/shared"
)

const bulkUploadMaxBytes = 10 << 20

// Handler wires HTTP endpoints for the product registry.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	authz       auth.Middleware
	validator   *validator.Validate
	bulkMaxRows int
	exports     singleflight.Group
}

// NewHandler constructs the product handler.
func NewHandler(logger *slog.Logger, service *Service, authz auth.Middleware, bulkMaxRows int) *Handler {
	return &Handler{logger: logger, service: service, authz: authz, validator: validator.New(), bulkMaxRows: bulkMaxRows}
}

// MountRoutes registers /products routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleViewer, auth.RoleAdmin, auth.RoleSuperadmin))
		r.Get("/", h.handleList)
		r.Get("/with-stock", h.handleListWithStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleAdmin, auth.RoleSuperadmin))
		r.Post("/", h.handleCreate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleSuperadmin))
		r.Post("/bulk-upload", h.handleBulkUpload)
		r.Get("/bulk-template", h.handleBulkTemplate)
	})
}

// MountDashboardRoutes registers /dashboard routes.
func (h *Handler) MountDashboardRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleViewer, auth.RoleAdmin, auth.RoleSuperadmin))
		r.Get("/export", h.handleDashboardExport)
	})
}

type createRequest struct {
	Name         string          `json:"name" validate:"required"`
	SKU          string          `json:"sku" validate:"required"`
	Category     string          `json:"category"`
	Variant      string          `json:"variant"`
	Unit         string          `json:"unit"`
	MinStock     int64           `json:"minStock" validate:"gte=0"`
	OpeningQty   int64           `json:"openingQty" validate:"gte=0"`
	OpeningPrice decimal.Decimal `json:"openingPrice"`
}

type productResponse struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Variant      string          `json:"variant"`
	Unit         string          `json:"unit"`
	OpeningQty   int64           `json:"openingQty"`
	OpeningPrice decimal.Decimal `json:"openingPrice"`
	MinStock     int64           `json:"minStock"`
	CurrentQty   int64           `json:"currentQty"`
	AvgPrice     decimal.Decimal `json:"avgPurchasePrice"`
}

type summaryResponse struct {
	productResponse
	StockValue decimal.Decimal `json:"stockValue"`
	Status     StockStatus     `json:"status"`
	QtyIn      int64           `json:"qtyIn"`
	AmazonOut  int64           `json:"amazonOut"`
	OthersOut  int64           `json:"othersOut"`
}

func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Category:     p.Category,
		Variant:      p.Variant,
		Unit:         p.Unit,
		OpeningQty:   p.OpeningQty,
		OpeningPrice: p.OpeningPrice,
		MinStock:     p.MinStock,
		CurrentQty:   p.CurrentQty,
		AvgPrice:     p.AvgPrice,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	refs, err := h.service.ListRefs(r.Context())
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": refs})
}

func (h *Handler) handleListWithStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search:     q.Get("search"),
		Status:     q.Get("status"),
		TopSelling: q.Get("topSelling") == "true",
	}
	if raw := q.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			filter.Page = page
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	summaries, pagination, err := h.service.ListWithStock(r.Context(), filter)
	if err != nil {
		h.logger.Error("list with stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, summaryResponse{
			productResponse: toProductResponse(s.Product),
			StockValue:      s.StockValue(),
			Status:          s.Status(),
			QtyIn:           s.QtyIn,
			AmazonOut:       s.AmazonOut,
			OthersOut:       s.OthersOut,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": rows, "pagination": pagination})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("body", err.Error()))
		return
	}
	in := CreateInput{
		Name:         req.Name,
		SKU:          req.SKU,
		Category:     req.Category,
		Variant:      req.Variant,
		Unit:         req.Unit,
		MinStock:     req.MinStock,
		OpeningQty:   req.OpeningQty,
		OpeningPrice: req.OpeningPrice,
		ActorID:      auth.CurrentUserID(shared.SessionFromContext(r.Context())),
	}
	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		if shared.KindOf(err) == "" {
			h.logger.Error("create product", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(created))
}

func (h *Handler) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, bulkUploadMaxBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, shared.ValidationError("file", "a CSV file upload is required"))
		return
	}
	defer file.Close()

	inputs, rowErrors, err := ParseBulkCSV(file, h.bulkMaxRows)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := auth.CurrentUserID(shared.SessionFromContext(r.Context()))
	report, err := h.service.BulkImport(r.Context(), inputs, rowErrors, actorID)
	if err != nil {
		if shared.KindOf(err) == "" {
			h.logger.Error("bulk import", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleBulkTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="product-template.csv"`)
	_, _ = w.Write(BulkTemplate())
}

func (h *Handler) handleDashboardExport(w http.ResponseWriter, r *http.Request) {
	v, err, _ := h.exports.Do("dashboard", func() (interface{}, error) {
		summaries, err := h.service.DashboardSummaries(r.Context())
		if err != nil {
			return nil, err
		}
		records := make([]export.ProductRecord, 0, len(summaries))
		for _, s := range summaries {
			records = append(records, export.ProductRecord{
				Name:       s.Name,
				SKU:        s.SKU,
				Category:   s.Category,
				Variant:    s.Variant,
				Unit:       s.Unit,
				CurrentQty: strconv.FormatInt(s.CurrentQty, 10),
				AvgPrice:   s.AvgPrice.Round(2).String(),
				StockValue: s.StockValue().String(),
				MinStock:   strconv.FormatInt(s.MinStock, 10),
				Status:     string(s.Status()),
			})
		}
		return export.DashboardCSV(records)
	})
	if err != nil {
		h.logger.Error("dashboard export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard.csv"`)
	_, _ = w.Write(v.([]byte))
}
