package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/orderflow-checkout/internal/cart"
	"github.com/joao-fontenele/orderflow-checkout/internal/identity"
	"github.com/joao-fontenele/orderflow-checkout/internal/inventory"
	"github.com/joao-fontenele/orderflow-checkout/internal/orders"
	"github.com/joao-fontenele/orderflow-checkout/internal/telemetry"
)

type routerDeps struct {
	orders    *orders.Handler
	cart      *cart.Handler
	inventory *inventory.Handler
	metrics   http.Handler
	health    func(context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(25 * time.Second))
	r.Use(telemetry.WithHTTPRoute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if err := d.health(r.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
	if d.metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		for _, path := range []string{"/payment/webhook", "/midtrans/webhook"} {
			r.Post(path, d.orders.HandleWebhook)
			r.Get(path, d.orders.HandleWebhookProbe)
		}
		r.Get("/payment/public-key", d.orders.HandlePublicKey)

		r.Group(func(r chi.Router) {
			r.Use(identity.Require)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", d.cart.HandleList)
				r.Post("/", d.cart.HandleSet)
				r.Delete("/", d.cart.HandleClear)
				r.Delete("/{productId}", d.cart.HandleRemove)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", d.orders.HandleCheckout)
				r.Get("/", d.orders.HandleListMine)
				r.Get("/all", d.orders.HandleListAll)
				r.Get("/{id}", d.orders.HandleGet)
				r.Put("/{id}/shipping", d.orders.HandleUpdateShipping)
			})

			r.Post("/payment/pay", d.orders.HandlePay)

			r.Get("/stock", d.inventory.HandleListStock)
			r.Get("/stock/{productId}", d.inventory.HandleGetStock)
		})
	})

	return r
}
