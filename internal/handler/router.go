package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes builds the API router. Ambient middleware (request ids, logging,
// recovery, CORS, rate limiting) is applied by the caller around the whole
// server, health endpoints included.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/cart", h.getCart)
			r.Post("/cart/items", h.addCartItem)
			r.Patch("/cart/items/{itemID}", h.updateCartItem)
			r.Delete("/cart/items/{itemID}", h.removeCartItem)

			r.Post("/addresses", h.createAddress)

			r.Post("/checkout", h.doCheckout)

			r.Post("/coupons/apply", h.applyCoupon)
			r.Get("/coupons/available", h.availableCoupons)

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Get("/orders/{id}/history", h.orderHistory)
			r.Delete("/orders/{id}", h.cancelOrder)

			r.Post("/payments/intent", h.createPaymentIntent)
			r.Post("/payments/verify", h.verifyPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Post("/coupons", h.createCoupon)
			r.Get("/coupons", h.listCoupons)
			r.Patch("/coupons/{id}", h.updateCoupon)
			r.Delete("/coupons/{id}", h.deleteCoupon)

			r.Get("/orders", h.adminListOrders)
			r.Patch("/orders/{id}", h.updateOrderStatus)
		})
	})

	return r
}
