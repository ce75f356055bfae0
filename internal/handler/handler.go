// Package handler exposes the cart-to-order pipeline over HTTP. Handlers
// decode and validate requests, delegate to the domain services, and map
// domain errors onto the response taxonomy.
package handler

import (
	"net/http"

	"github.com/hallmart/storefront/internal/domain/auth"
	"github.com/hallmart/storefront/internal/domain/cart"
	"github.com/hallmart/storefront/internal/domain/order"
)

// Handler serves the storefront API.
type Handler struct {
	carts     *cart.Service
	factory   *order.Factory
	lifecycle *order.Lifecycle
	orders    order.Repository
	security  *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts *cart.Service,
	factory *order.Factory,
	lifecycle *order.Lifecycle,
	orders order.Repository,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		carts:     carts,
		factory:   factory,
		lifecycle: lifecycle,
		orders:    orders,
		security:  NewSecurity(apikeys, pepper),
	}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{lineID}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{lineID}", h.RemoveCartItem)
	mux.HandleFunc("POST /api/cart/merge", h.MergeCart)

	mux.HandleFunc("POST /api/checkout", h.Checkout)

	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{orderNumber}", h.GetOrder)

	mux.HandleFunc("POST /api/admin/orders/{orderNumber}/status",
		h.security.RequireAdmin(h.UpdateOrderStatus))
}

// identityFrom resolves the request identity the external auth collaborator
// established. The gateway forwards it in headers.
func identityFrom(r *http.Request) auth.Identity {
	return auth.Identity{
		CustomerID: r.Header.Get("X-Customer-ID"),
		SessionID:  r.Header.Get("X-Session-ID"),
	}
}
