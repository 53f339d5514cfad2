package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/ayurmed/orders/internal/checkout"
	"github.com/ayurmed/orders/internal/domain/cart"
	"github.com/ayurmed/orders/internal/domain/coupon"
	"github.com/ayurmed/orders/internal/domain/order"
	"github.com/ayurmed/orders/internal/payment"
)

// respondError maps domain errors to HTTP statuses, falling back to a logged
// 500 for anything unclassified.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		belowMin      *coupon.BelowMinimumError
		badTransition *order.InvalidTransitionError
	)
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "error", err.Error())
	case errors.Is(err, cart.ErrLineNotFound):
		writeMessage(w, http.StatusNotFound, "error", err.Error())
	case errors.Is(err, coupon.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "error", err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "error", err.Error())
	case errors.Is(err, order.ErrStaleTransition):
		writeMessage(w, http.StatusConflict, "error", err.Error())
	case errors.Is(err, coupon.ErrDuplicateCode):
		writeMessage(w, http.StatusConflict, "error", err.Error())
	case errors.As(err, &badTransition):
		writeMessage(w, http.StatusConflict, "error", err.Error())
	case errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrLimitReached),
		errors.As(err, &belowMin),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidAddress),
		errors.Is(err, order.ErrTrackingRequired),
		errors.Is(err, order.ErrCannotCancelAfterShipping),
		errors.Is(err, payment.ErrSignatureMismatch):
		writeMessage(w, http.StatusBadRequest, "error", err.Error())
	default:
		internalError(w, r, err)
	}
}
