// Package handler exposes the order lifecycle over HTTP. Caller identity
// arrives in trusted gateway headers; the handlers perform no credential
// verification of their own.
package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ayurmed/orders/internal/checkout"
	"github.com/ayurmed/orders/internal/domain/cart"
	"github.com/ayurmed/orders/internal/domain/coupon"
	"github.com/ayurmed/orders/internal/domain/order"
	"github.com/ayurmed/orders/internal/payment"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	carts     *cart.Service
	addresses AddressBook
	checkout  *checkout.Service
	coupons   coupon.Repository
	engine    *coupon.Engine
	orders    *order.Service
	payments  *payment.Service
	now       func() time.Time
}

// NewHandler constructs a Handler with the required services.
func NewHandler(
	carts *cart.Service,
	addresses AddressBook,
	checkoutSvc *checkout.Service,
	coupons coupon.Repository,
	engine *coupon.Engine,
	orders *order.Service,
	payments *payment.Service,
) *Handler {
	return &Handler{
		carts:     carts,
		addresses: addresses,
		checkout:  checkoutSvc,
		coupons:   coupons,
		engine:    engine,
		orders:    orders,
		payments:  payments,
		now:       time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, field, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart(field)
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeMessage(w, http.StatusBadRequest, "error", msg)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeMessage(w, http.StatusInternalServerError, "error", "internal server error")
}

// encodeDecimal writes a decimal as a JSON number with two decimal places.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}
