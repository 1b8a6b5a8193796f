package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/catalog"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/gateway"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/procurement"
	"github.com/meridian-retail/meridian/internal/returns"
	"github.com/meridian-retail/meridian/internal/sales"
	"github.com/meridian-retail/meridian/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CatalogHandler     *catalog.Handler
	InventoryHandler   *inventory.Handler
	SalesHandler       *sales.Handler
	ReturnsHandler     *returns.Handler
	ProcurementHandler *procurement.Handler
	DrawerHandler      *cashdrawer.Handler
	CreditHandler      *credit.Handler
	GatewayHandler     *gateway.Handler
	Idempotency        *shared.IdempotencyStore
}

// NewRouter constructs the chi.Router with the API surface.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(TenancyMiddleware(params.Logger))
			r.Route("/products", params.CatalogHandler.MountRoutes)
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
			r.Route("/sales", func(r chi.Router) {
				r.Use(IdempotencyMiddleware(params.Idempotency, "sales"))
				params.SalesHandler.MountRoutes(r)
			})
			r.Route("/returns", func(r chi.Router) {
				r.Use(IdempotencyMiddleware(params.Idempotency, "returns"))
				params.ReturnsHandler.MountRoutes(r)
			})
			r.Route("/purchase-orders", func(r chi.Router) {
				r.Use(IdempotencyMiddleware(params.Idempotency, "procurement"))
				params.ProcurementHandler.MountRoutes(r)
			})
			r.Route("/drawers", params.DrawerHandler.MountRoutes)
			r.Route("/customers", params.CreditHandler.MountRoutes)
		})
		// Callback authentication is the body signature.
		r.Route("/gateway", params.GatewayHandler.MountRoutes)
	})

	return r
}
