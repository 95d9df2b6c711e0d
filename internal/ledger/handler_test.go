package ledger

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/bym-inventory/bym-inventory/internal/auth"
	"github.com/bym-inventory/bym-inventory/internal/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLedgerRouter(repo *memoryRepo) chi.Router {
	handler := NewHandler(newTestLogger(), newTestService(repo), auth.Middleware{})
	r := chi.NewRouter()
	r.Route("/stock", handler.MountRoutes)
	handler.MountRootRoutes(r)
	r.Route("/products", handler.MountProductRoutes)
	return r
}

func doRequest(t *testing.T, router chi.Router, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		sess := &shared.Session{ID: "test-session"}
		sess.SetUser("1")
		sess.Set("role", role)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestStockInEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 10, AvgPrice: d("100")})
	router := newLedgerRouter(repo)

	body := `{"productId":1,"quantity":5,"stockType":"NEW","invoiceNo":"INV-1","purchasePrice":"130"}`
	res := doRequest(t, router, http.MethodPost, "/stock/in", body, "admin")
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	require.Contains(t, res.Body.String(), `"currentQty":15`)
	require.Contains(t, res.Body.String(), `"avgPurchasePrice":"110"`)
}

func TestStockInNewRequiresInvoiceAndPrice(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 10, AvgPrice: d("100")})
	router := newLedgerRouter(repo)

	body := `{"productId":1,"quantity":5,"stockType":"NEW","purchasePrice":"130"}`
	res := doRequest(t, router, http.MethodPost, "/stock/in", body, "admin")
	require.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())

	body = `{"productId":1,"quantity":5,"stockType":"NEW","invoiceNo":"INV-1"}`
	res = doRequest(t, router, http.MethodPost, "/stock/in", body, "admin")
	require.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())

	// returns need neither
	body = `{"productId":1,"quantity":5,"stockType":"RETURN"}`
	res = doRequest(t, router, http.MethodPost, "/stock/in", body, "admin")
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
}

func TestStockInRequiresAdminRole(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1})
	router := newLedgerRouter(repo)

	body := `{"productId":1,"quantity":5,"stockType":"NEW","invoiceNo":"INV-1","purchasePrice":"1"}`
	res := doRequest(t, router, http.MethodPost, "/stock/in", body, "viewer")
	require.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(t, router, http.MethodPost, "/stock/in", body, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestStockOutAllowsViewerRole(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 10, AvgPrice: d("5")})
	router := newLedgerRouter(repo)

	body := `{"productId":1,"quantity":3,"source":"AMAZON","date":"2026-01-10"}`
	res := doRequest(t, router, http.MethodPost, "/stock/out", body, "viewer")
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	require.Contains(t, res.Body.String(), `"currentQty":7`)
}

func TestStockOutOverdrawMapsToConflict(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1, CurrentQty: 1, AvgPrice: d("5")})
	router := newLedgerRouter(repo)

	body := `{"productId":1,"quantity":3,"source":"AMAZON","date":"2026-01-10"}`
	res := doRequest(t, router, http.MethodPost, "/stock/out", body, "admin")
	require.Equal(t, http.StatusConflict, res.Code, res.Body.String())
	require.Contains(t, res.Body.String(), "Insufficient Stock")
}

func TestStockInValidationMapsToBadRequest(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1})
	router := newLedgerRouter(repo)

	body := `{"productId":1,"quantity":5,"stockType":"USED"}`
	res := doRequest(t, router, http.MethodPost, "/stock/in", body, "admin")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMinStockEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 7, CurrentQty: 4, AvgPrice: d("2")})
	router := newLedgerRouter(repo)

	res := doRequest(t, router, http.MethodPut, "/products/7/min-stock", `{"minStock":9}`, "admin")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, int64(9), repo.states[7].MinStock)
}

func TestHistoryExportIsCSV(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(ProductState{ProductID: 1})
	repo.entries[1] = []Entry{{ProductID: 1, Type: EntryTypeIn, Qty: 5, InvoiceNo: "INV-1"}}
	router := newLedgerRouter(repo)

	res := doRequest(t, router, http.MethodGet, "/stock/export", "", "viewer")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "text/csv", res.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(res.Body.String(), "Product,Type,Qty,Invoice No,Date,User"))
}
