package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidorduna/agromarket-backend/api/controllers"
	"github.com/davidorduna/agromarket-backend/api/middleware"
	cartsvc "github.com/davidorduna/agromarket-backend/internal/cart"
	catalogsvc "github.com/davidorduna/agromarket-backend/internal/catalog"
	inventorysvc "github.com/davidorduna/agromarket-backend/internal/inventory"
	ordersvc "github.com/davidorduna/agromarket-backend/internal/orders"
	paymentsvc "github.com/davidorduna/agromarket-backend/internal/payments"
	salesvc "github.com/davidorduna/agromarket-backend/internal/sales"
	"github.com/davidorduna/agromarket-backend/pkg/config"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	"github.com/davidorduna/agromarket-backend/pkg/logger"
	"github.com/davidorduna/agromarket-backend/pkg/metrics"
)

// Services bundles everything the router exposes over HTTP.
type Services struct {
	Catalog   catalogsvc.Service
	Cart      cartsvc.Service
	Inventory inventorysvc.Service
	Orders    ordersvc.Service
	Payments  paymentsvc.Service
	Sales     salesvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	sessions middleware.SessionChecker,
	pingers []controllers.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers...))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	adminOnly := middleware.RequireRole(enums.UserRoleAdministrator.String(), logg)

	r.Route("/api/v1", func(r chi.Router) {
		// Public storefront reads.
		r.Get("/products", controllers.ProductList(svcs.Catalog, logg))
		r.Get("/products/{productId}", controllers.ProductGet(svcs.Catalog, logg))
		r.Get("/categories", controllers.CategoryList(svcs.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartView(svcs.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(svcs.Cart, logg))
				r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCreate(svcs.Orders, logg))
				r.Get("/", controllers.OrderList(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.OrderGet(svcs.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
				r.With(adminOnly).Patch("/{orderId}/status", controllers.AdminOrderAdvance(svcs.Orders, logg))
				r.With(adminOnly).Get("/admin", controllers.AdminOrderList(svcs.Orders, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", controllers.PaymentProcess(svcs.Payments, logg))
				r.Get("/{paymentId}", controllers.PaymentGet(svcs.Payments, logg))
				r.With(adminOnly).Get("/", controllers.AdminPaymentList(svcs.Payments, logg))
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", controllers.SaleList(svcs.Sales, logg))
				r.Get("/order/{orderId}", controllers.SaleGetByOrder(svcs.Sales, logg))
				r.With(adminOnly).Get("/admin", controllers.AdminSaleList(svcs.Sales, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/products", controllers.AdminProductCreate(svcs.Catalog, logg))
				r.Patch("/products/{productId}", controllers.AdminProductUpdate(svcs.Catalog, logg))
				r.Post("/categories", controllers.AdminCategoryCreate(svcs.Catalog, logg))

				r.Route("/inventory", func(r chi.Router) {
					r.Get("/", controllers.AdminInventoryList(svcs.Inventory, logg))
					r.Get("/{productId}", controllers.AdminInventoryGet(svcs.Inventory, logg))
					r.Post("/{productId}/restock", controllers.AdminInventoryRestock(svcs.Inventory, logg))
				})
			})
		})
	})

	return r
}
