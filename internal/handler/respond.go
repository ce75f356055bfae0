package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hallmart/storefront/internal/domain/auth"
	"github.com/hallmart/storefront/internal/domain/cart"
	"github.com/hallmart/storefront/internal/domain/catalog"
	"github.com/hallmart/storefront/internal/domain/checkout"
	"github.com/hallmart/storefront/internal/domain/order"
)

// errorBody is the structured error shape every failure response carries.
type errorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Variant string            `json:"variant_id,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Code: status, Message: message})
}

// writeDomainError maps domain errors onto the HTTP error taxonomy.
// Validation and inventory failures carry enough detail to redraw the form;
// payment failures get a generic customer-facing message while the classified
// reason stays on the audit record.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *checkout.ValidationError
		oos  *cart.OutOfStockError
		iie  *order.InsufficientInventoryError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    http.StatusBadRequest,
			Message: "invalid checkout input",
			Fields:  verr.Fields,
		})
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &oos):
		writeJSON(w, http.StatusConflict, errorBody{
			Code:    http.StatusConflict,
			Message: oos.Error(),
			Variant: oos.VariantID,
		})
	case errors.As(err, &iie):
		writeJSON(w, http.StatusConflict, errorBody{
			Code:    http.StatusConflict,
			Message: iie.Error(),
			Variant: iie.VariantID,
		})
	case errors.Is(err, order.ErrPaymentDeclined), errors.Is(err, order.ErrPaymentError):
		writeError(w, http.StatusPaymentRequired, "payment could not be completed")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrNoIdentity):
		writeError(w, http.StatusUnauthorized, "identity required")
	default:
		zctx.From(r.Context()).Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}
