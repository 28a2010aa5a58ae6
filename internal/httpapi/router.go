package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP surface. The webhook route bypasses the
// owner middleware: the payment provider, not a shopper, calls it.
func NewRouter(carts *CartHandler, deliveries *DeliveryHandler, checkouts *CheckoutHandler, orders *OrdersHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/payment", checkouts.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(OwnerMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddLine)
			r.Patch("/items", carts.UpdateLine)
			r.Delete("/items", carts.RemoveLine)
			r.Post("/merge", carts.Merge)
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Get("/calendar", deliveries.Calendar)
			r.Get("/estimate", deliveries.Estimate)
		})

		r.Post("/checkout/session", checkouts.CreateSession)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Get("/{orderID}", orders.GetOrder)
		})
	})

	return r
}
