package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hallmart/storefront/internal/domain/checkout"
	"github.com/hallmart/storefront/internal/domain/order"
)

type checkoutSelection struct {
	VariantID string          `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type checkoutRequest struct {
	Customer struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Address    string `json:"address"`
		City       string `json:"city"`
		PostalCode string `json:"postal_code"`
	} `json:"customer"`
	Payment struct {
		CardNumber string `json:"card_number"`
		Expiry     string `json:"expiry"`
		CVV        string `json:"cvv"`
	} `json:"payment"`
	Items     []checkoutSelection `json:"items"`
	PromoCode string              `json:"promo_code"`
}

type checkoutResponse struct {
	OrderNumber       string          `json:"order_number"`
	TransactionStatus string          `json:"transaction_status"`
	Total             decimal.Decimal `json:"total"`
}

// Checkout validates the submission and runs the one-shot cart-to-order
// transaction.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ownerRef, err := identityFrom(r).OwnerRef()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	raw := checkout.Input{
		Customer: checkout.CustomerInfo{
			Name:       req.Customer.Name,
			Email:      req.Customer.Email,
			Address:    req.Customer.Address,
			City:       req.Customer.City,
			PostalCode: req.Customer.PostalCode,
		},
		Card: checkout.CardInfo{
			Number: req.Payment.CardNumber,
			Expiry: req.Payment.Expiry,
			CVV:    req.Payment.CVV,
		},
	}
	for _, sel := range req.Items {
		raw.Items = append(raw.Items, checkout.Selection{
			VariantID: sel.VariantID,
			Quantity:  sel.Quantity,
			UnitPrice: sel.UnitPrice,
		})
	}

	input, err := checkout.Validate(raw, time.Now())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.factory.CreateOrder(r.Context(), order.CreateOrderRequest{
		OwnerRef:    ownerRef,
		CustomerRef: ownerRef,
		Input:       *input,
		PromoCode:   req.PromoCode,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderNumber:       o.OrderNumber,
		TransactionStatus: string(o.TransactionStatus),
		Total:             o.Total,
	})
}
