package handlers

import (
	"net/http"

	"order-system/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes собирает обработчики для роутера
type Routes struct {
	Cart        *CartHandler
	Orders      *OrderHandler
	AdminOrders *AdminOrderHandler
	Promo       *PromoHandler
	AdminPromo  *AdminPromoHandler
	Health      *HealthHandler
	RateLimit   *RateLimitHandler

	// Authenticate кладёт identity в контекст; nil означает, что все запросы анонимные
	Authenticate func(http.Handler) http.Handler
	Limiter      MiddlewareLimiter
	AdminRole    string
}

// NewRouter настраивает маршруты HTTP сервера
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(AccessLog(log))
	r.Use(Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health check endpoints
	r.Get("/health", routes.Health.Health)
	r.Get("/health/readiness", routes.Health.Readiness)
	r.Get("/health/liveness", routes.Health.Liveness)

	r.Route("/api", func(api chi.Router) {
		if routes.Authenticate != nil {
			api.Use(routes.Authenticate)
		}
		api.Use(RateLimitMiddleware(routes.Limiter, log))

		api.Get("/health", routes.Health.Ping)
		api.Get("/rate-limit/status", routes.RateLimit.Status)

		api.Route("/cart", func(cart chi.Router) {
			cart.Use(RequireUser)
			cart.Get("/", routes.Cart.GetCart)
			cart.Delete("/", routes.Cart.ClearCart)
			cart.Post("/items", routes.Cart.AddItem)
			cart.Patch("/items/{productId}", routes.Cart.UpdateItem)
			cart.Delete("/items/{productId}", routes.Cart.RemoveItem)
		})

		api.Route("/orders", func(orders chi.Router) {
			orders.Post("/", routes.Orders.CreateOrder)
			orders.Group(func(owned chi.Router) {
				owned.Use(RequireUser)
				owned.Get("/my", routes.Orders.ListMyOrders)
				owned.Get("/{id}", routes.Orders.GetOrder)
				owned.Patch("/{id}/status", routes.Orders.UpdateOrderStatus)
				owned.Post("/{id}/cancel", routes.Orders.CancelOrder)
			})
		})

		api.Post("/promocodes/validate", routes.Promo.Validate)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(RequireRole(routes.AdminRole))

			admin.Get("/orders", routes.AdminOrders.ListOrders)
			admin.Get("/orders/{id}", routes.AdminOrders.GetOrder)
			admin.Patch("/orders/{id}/status", routes.AdminOrders.UpdateOrderStatus)

			admin.Get("/promocodes", routes.AdminPromo.ListPromoCodes)
			admin.Post("/promocodes", routes.AdminPromo.CreatePromoCode)
			admin.Put("/promocodes/{id}", routes.AdminPromo.UpdatePromoCode)
			admin.Delete("/promocodes/{id}", routes.AdminPromo.DeletePromoCode)
		})
	})

	return r
}
