package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hallmart/storefront/internal/domain/cart"
)

type cartItemResponse struct {
	LineID    string          `json:"line_id"`
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
}

type cartResponse struct {
	ID        string             `json:"id"`
	Items     []cartItemResponse `json:"items"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	ItemCount int                `json:"item_count"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResponse{
			LineID:    it.LineID,
			VariantID: it.VariantID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			ImageURL:  it.ImageURL,
			Quantity:  it.Quantity,
		}
	}
	return cartResponse{
		ID:        c.ID,
		Items:     items,
		Subtotal:  c.Subtotal(),
		ItemCount: c.ItemCount(),
		UpdatedAt: c.UpdatedAt,
	}
}

// GetCart returns the current owner's cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ownerRef, err := identityFrom(r).OwnerRef()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	c, err := h.carts.Get(r.Context(), ownerRef)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type addItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// AddCartItem adds a variant to the cart, incrementing the line when the
// variant is already present.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	ownerRef, err := identityFrom(r).OwnerRef()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.carts.AddItem(r.Context(), ownerRef, req.VariantID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItem sets a line's quantity to an absolute value; zero removes
// the line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	ownerRef, err := identityFrom(r).OwnerRef()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req updateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateItemQuantity(r.Context(), ownerRef, r.PathValue("lineID"), req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// RemoveCartItem deletes a line. Removing an absent line succeeds.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ownerRef, err := identityFrom(r).OwnerRef()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), ownerRef, r.PathValue("lineID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// MergeCart folds the request's session cart into the authenticated
// customer's cart. Called by the auth collaborator on login.
func (h *Handler) MergeCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !id.Authenticated() || id.SessionID == "" {
		writeError(w, http.StatusBadRequest, "merge requires both a customer and a session identity")
		return
	}

	c, err := h.carts.Merge(r.Context(), "session:"+id.SessionID, "customer:"+id.CustomerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}
