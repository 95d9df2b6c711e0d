package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bym-inventory/bym-inventory/internal/auth"
	"github.com/bym-inventory/bym-inventory/internal/ledger"
	"github.com/bym-inventory/bym-inventory/internal/observability"
	"github.com/bym-inventory/bym-inventory/internal/product"
	"github.com/bym-inventory/bym-inventory/internal/shared"
	"github.com/bym-inventory/bym-inventory/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	ProductHandler *product.Handler
	LedgerHandler  *ledger.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/products", func(r chi.Router) {
		params.ProductHandler.MountRoutes(r)
		params.LedgerHandler.MountProductRoutes(r)
	})
	r.Route("/dashboard", params.ProductHandler.MountDashboardRoutes)
	r.Route("/stock", params.LedgerHandler.MountRoutes)
	params.LedgerHandler.MountRootRoutes(r)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
