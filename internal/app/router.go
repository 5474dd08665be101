package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marbledesk/marbledesk/internal/auth"
	"github.com/marbledesk/marbledesk/internal/customers"
	"github.com/marbledesk/marbledesk/internal/inventory"
	"github.com/marbledesk/marbledesk/internal/observability"
	"github.com/marbledesk/marbledesk/internal/orders"
	"github.com/marbledesk/marbledesk/internal/reports"
	"github.com/marbledesk/marbledesk/internal/shared"
	"github.com/marbledesk/marbledesk/internal/supply"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	InventoryHandler *inventory.Handler
	CustomersHandler *customers.Handler
	OrdersHandler    *orders.Handler
	SupplyHandler    *supply.Handler
	ReportsHandler   *reports.Handler
	ReportsService   *reports.Service
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Marbledesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
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

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		if params.ReportsService != nil {
			r.Use(InvalidateSummaryOnWrite(params.ReportsService, params.Logger))
		}
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/customers", params.CustomersHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/supply-orders", params.SupplyHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
