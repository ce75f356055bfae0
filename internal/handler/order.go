package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hallmart/storefront/internal/domain/order"
)

type orderLineResponse struct {
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url"`
}

type orderResponse struct {
	OrderNumber       string              `json:"order_number"`
	Items             []orderLineResponse `json:"items"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	Discount          decimal.Decimal     `json:"discount"`
	ShippingCost      decimal.Decimal     `json:"shipping_cost"`
	Tax               decimal.Decimal     `json:"tax"`
	Total             decimal.Decimal     `json:"total"`
	CardMasked        string              `json:"card_masked"`
	TransactionStatus string              `json:"transaction_status"`
	Status            string              `json:"status"`
	StatusOrdinal     int                 `json:"status_ordinal"`
	CreatedAt         time.Time           `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderLineResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderLineResponse{
			VariantID: it.VariantID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			ImageURL:  it.ImageURL,
		}
	}
	return orderResponse{
		OrderNumber:       o.OrderNumber,
		Items:             items,
		Subtotal:          o.Subtotal,
		Discount:          o.Discount,
		ShippingCost:      o.ShippingCost,
		Tax:               o.Tax,
		Total:             o.Total,
		CardMasked:        o.CardMasked,
		TransactionStatus: string(o.TransactionStatus),
		Status:            string(o.Status),
		StatusOrdinal:     o.Status.Ordinal(),
		CreatedAt:         o.CreatedAt,
	}
}

// ListOrders returns the current customer's order history, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ownerRef, err := identityFrom(r).OwnerRef()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	orders, err := h.orders.ListByCustomer(r.Context(), ownerRef)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOrder returns one order by its order number. Customers may only see
// their own orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ownerRef, err := identityFrom(r).OwnerRef()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.GetByNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if o.CustomerRef != ownerRef {
		// Indistinguishable from absent, to avoid leaking order numbers.
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus advances an order through the fulfillment state machine.
// Admin only.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	next, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.lifecycle.Transition(r.Context(), r.PathValue("orderNumber"), next)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
