package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/bym-inventory/bym-inventory/internal/auth"
	"github.com/bym-inventory/bym-inventory/internal/export"
	"github.com/bym-inventory/bym-inventory/internal/platform/httpx"
	"github.com/bym-inventory/bym-inventory/internal/shared"
)

const idempotencyHeader = "X-Idempotency-Key"

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     auth.Middleware
	validator *validator.Validate
	exports   singleflight.Group
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, authz auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz, validator: validator.New()}
}

// MountRoutes registers /stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleAdmin, auth.RoleSuperadmin))
		r.Post("/in", h.handleStockIn)
		r.Post("/in/preview", h.handleStockInPreview)
		r.Post("/adjust", h.handleAdjust)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleViewer, auth.RoleAdmin, auth.RoleSuperadmin))
		r.Post("/out", h.handleStockOut)
		r.Get("/history", h.handleHistory)
		r.Get("/export", h.handleExport)
	})
}

// MountRootRoutes registers the ledger routes that live outside /stock.
func (h *Handler) MountRootRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleAdmin, auth.RoleSuperadmin))
		r.Put("/inventory/opening", h.handleOpening)
	})
}

// MountProductRoutes registers ledger routes under the /products subtree.
func (h *Handler) MountProductRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireRole(auth.RoleAdmin, auth.RoleSuperadmin))
		r.Put("/{id}/min-stock", h.handleMinStock)
	})
}

type stockInRequest struct {
	ProductID     int64            `json:"productId" validate:"required,gt=0"`
	Quantity      int64            `json:"quantity" validate:"required,gt=0"`
	StockType     string           `json:"stockType" validate:"required,oneof=NEW RETURN"`
	InvoiceNo     string           `json:"invoiceNo" validate:"required_if=StockType NEW"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice" validate:"required_if=StockType NEW"`
	InvoicePDFURL string           `json:"invoicePdfUrl"`
	Condition     string           `json:"condition" validate:"omitempty,oneof=GOOD DAMAGED"`
	Remarks       string           `json:"remarks"`
	Date          string           `json:"date"`
}

type stockOutRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Source    string `json:"source" validate:"required,oneof=AMAZON OTHERS"`
	Date      string `json:"date" validate:"required"`
}

type adjustRequest struct {
	ProductID      int64  `json:"productId" validate:"required,gt=0"`
	Quantity       int64  `json:"quantity" validate:"required,gt=0"`
	AdjustmentType string `json:"adjustmentType" validate:"required,oneof=INCREASE DECREASE"`
	Reason         string `json:"reason"`
}

type openingRequest struct {
	ProductID    int64           `json:"productId" validate:"required,gt=0"`
	OpeningQty   int64           `json:"openingQty" validate:"gte=0"`
	OpeningPrice decimal.Decimal `json:"openingPrice"`
}

type minStockRequest struct {
	MinStock int64  `json:"minStock" validate:"gte=0"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleStockIn(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeStockIn(w, r)
	if !ok {
		return
	}
	result, err := h.service.PostStockIn(r.Context(), in, r.Header.Get(idempotencyHeader))
	if err != nil {
		h.respondMovementError(w, "stock in", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleStockInPreview(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeStockIn(w, r)
	if !ok {
		return
	}
	result, err := h.service.PreviewStockIn(r.Context(), in)
	if err != nil {
		h.respondMovementError(w, "stock in preview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decodeStockIn(w http.ResponseWriter, r *http.Request) (StockInInput, bool) {
	var req stockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return StockInInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("body", err.Error()))
		return StockInInput{}, false
	}
	date, ok := h.parseOptionalDate(w, req.Date)
	if !ok {
		return StockInInput{}, false
	}
	var price decimal.Decimal
	if req.PurchasePrice != nil {
		price = *req.PurchasePrice
	}
	return StockInInput{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		StockType:     StockType(req.StockType),
		InvoiceNo:     req.InvoiceNo,
		PurchasePrice: price,
		InvoicePDFURL: req.InvoicePDFURL,
		Condition:     Condition(req.Condition),
		Remarks:       req.Remarks,
		Date:          date,
		ActorID:       auth.CurrentUserID(shared.SessionFromContext(r.Context())),
	}, true
}

func (h *Handler) handleStockOut(w http.ResponseWriter, r *http.Request) {
	var req stockOutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("body", err.Error()))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.RespondError(w, shared.ValidationError("date", "date must be YYYY-MM-DD"))
		return
	}
	in := StockOutInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Source:    Source(req.Source),
		Date:      date,
		ActorID:   auth.CurrentUserID(shared.SessionFromContext(r.Context())),
	}
	result, err := h.service.PostStockOut(r.Context(), in, r.Header.Get(idempotencyHeader))
	if err != nil {
		h.respondMovementError(w, "stock out", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("body", err.Error()))
		return
	}
	in := AdjustInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Type:      AdjustmentType(req.AdjustmentType),
		Reason:    req.Reason,
		ActorID:   auth.CurrentUserID(shared.SessionFromContext(r.Context())),
	}
	result, err := h.service.PostAdjustment(r.Context(), in, r.Header.Get(idempotencyHeader))
	if err != nil {
		h.respondMovementError(w, "adjust", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleOpening(w http.ResponseWriter, r *http.Request) {
	var req openingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("body", err.Error()))
		return
	}
	in := OpeningInput{
		ProductID:    req.ProductID,
		OpeningQty:   req.OpeningQty,
		OpeningPrice: req.OpeningPrice,
		ActorID:      auth.CurrentUserID(shared.SessionFromContext(r.Context())),
	}
	result, err := h.service.CorrectOpening(r.Context(), in)
	if err != nil {
		h.respondMovementError(w, "opening correction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleMinStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ValidationError("id", "invalid product id"))
		return
	}
	var req minStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("body", err.Error()))
		return
	}
	in := MinStockInput{
		ProductID: productID,
		MinStock:  req.MinStock,
		Reason:    req.Reason,
		ActorID:   auth.CurrentUserID(shared.SessionFromContext(r.Context())),
	}
	result, err := h.service.UpdateMinStock(r.Context(), in)
	if err != nil {
		h.respondMovementError(w, "min stock update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseHistoryFilter(w, r)
	if !ok {
		return
	}
	rows, err := h.service.History(r.Context(), filter)
	if err != nil {
		h.logger.Error("list history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": historyResponse(rows)})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseHistoryFilter(w, r)
	if !ok {
		return
	}
	key := filter.From.Format("2006-01-02") + "|" + filter.To.Format("2006-01-02") + "|" +
		strconv.FormatInt(filter.ProductID, 10) + "|" + string(filter.Type) + "|" + filter.Search
	v, err, _ := h.exports.Do(key, func() (interface{}, error) {
		rows, err := h.service.History(r.Context(), filter)
		if err != nil {
			return nil, err
		}
		records := make([]export.HistoryRecord, 0, len(rows))
		for _, row := range rows {
			records = append(records, export.HistoryRecord{
				Product:   row.ProductName,
				Type:      string(row.Type),
				Qty:       strconv.FormatInt(row.Qty, 10),
				InvoiceNo: row.InvoiceNo,
				Date:      row.OccurredAt.Format("2006-01-02"),
				User:      row.UserEmail,
			})
		}
		return export.HistoryCSV(records)
	})
	if err != nil {
		h.logger.Error("export history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="stock-history.csv"`)
	_, _ = w.Write(v.([]byte))
}

func (h *Handler) parseHistoryFilter(w http.ResponseWriter, r *http.Request) (HistoryFilter, bool) {
	q := r.URL.Query()
	filter := HistoryFilter{Search: q.Get("search")}
	if raw := q.Get("productId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.ValidationError("productId", "invalid product id"))
			return HistoryFilter{}, false
		}
		filter.ProductID = id
	}
	if raw := q.Get("type"); raw != "" {
		filter.Type = EntryType(shared.NormalizeUpper(raw))
	}
	var ok bool
	if filter.From, ok = h.parseOptionalDate(w, q.Get("from")); !ok {
		return HistoryFilter{}, false
	}
	if filter.To, ok = h.parseOptionalDate(w, q.Get("to")); !ok {
		return HistoryFilter{}, false
	}
	return filter, true
}

func (h *Handler) parseOptionalDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.RespondError(w, shared.ValidationError("date", "dates must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return t, true
}

func (h *Handler) respondMovementError(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == "" && err != shared.ErrIdempotencyConflict {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

type historyEntry struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"productId"`
	ProductName   string          `json:"productName"`
	ProductSKU    string          `json:"productSku"`
	Type          EntryType       `json:"type"`
	Qty           int64           `json:"qty"`
	StockType     StockType       `json:"stockType,omitempty"`
	Source        Source          `json:"source,omitempty"`
	Condition     Condition       `json:"condition,omitempty"`
	InvoiceNo     string          `json:"invoiceNo,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	InvoicePDFURL string          `json:"invoicePdfUrl,omitempty"`
	Remarks       string          `json:"remarks,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Date          string          `json:"date"`
	User          string          `json:"user"`
}

func historyResponse(rows []HistoryRow) []historyEntry {
	out := make([]historyEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, historyEntry{
			ID:            row.ID,
			ProductID:     row.ProductID,
			ProductName:   row.ProductName,
			ProductSKU:    row.ProductSKU,
			Type:          row.Type,
			Qty:           row.Qty,
			StockType:     row.StockType,
			Source:        row.Source,
			Condition:     row.Condition,
			InvoiceNo:     row.InvoiceNo,
			PurchasePrice: row.PurchasePrice,
			InvoicePDFURL: row.InvoicePDFURL,
			Remarks:       row.Remarks,
			Reason:        row.Reason,
			Date:          row.OccurredAt.Format("2006-01-02"),
			User:          row.UserEmail,
		})
	}
	return out
}
