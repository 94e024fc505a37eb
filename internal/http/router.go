package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the storefront API. The identity middleware runs on every
// route so cart requests always carry a device id.
func NewRouter(h *Handler, identity func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(identity)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productId}", h.GetProduct)
		r.Get("/categories", h.ListCategories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{lineId}", h.SetQuantity)
			r.Delete("/items/{lineId}", h.RemoveItem)
			r.Post("/coupon", h.ApplyCoupon)
		})

		r.Post("/checkout", h.Checkout)

		r.Get("/orders", h.ListMyOrders)
		r.Get("/orders/{orderId}", h.GetMyOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/products", h.SaveProduct)
			r.Put("/products/{productId}", h.SaveProduct)
			r.Delete("/products/{productId}", h.DeleteProduct)

			r.Get("/orders", h.ListOrders)
			r.Put("/orders/{orderId}/status", h.UpdateOrderStatus)
			r.Get("/earnings", h.GetEarnings)

			r.Post("/categories", h.SaveCategory)
			r.Delete("/categories/{slug}", h.DeleteCategory)

			r.Get("/coupons", h.ListCoupons)
			r.Post("/coupons", h.SaveCoupon)
			r.Delete("/coupons/{code}", h.DeleteCoupon)
		})
	})

	return r
}
