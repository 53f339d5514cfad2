package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/ayurmed/orders/internal/checkout"
)

func (h *Handler) doCheckout(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	req := checkout.Request{UserID: actor.UserID}
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "address_id":
			v, err := d.Int64()
			req.AddressID = v
			return err
		case "payment_method":
			v, err := d.Str()
			req.PaymentMethod = v
			return err
		case "coupon_code":
			v, err := d.Str()
			req.CouponCode = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.AddressID <= 0 {
		badRequest(w, "address_id is required")
		return
	}
	if req.PaymentMethod == "" {
		badRequest(w, "payment_method is required")
		return
	}

	res, err := h.checkout.Checkout(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_ids")
	e.ArrStart()
	for _, id := range res.OrderIDs {
		e.Int64(id)
	}
	e.ArrEnd()
	e.FieldStart("orders")
	e.ArrStart()
	for i := range res.Orders {
		encodeOrder(&e, &res.Orders[i])
	}
	e.ArrEnd()
	e.FieldStart("pricing")
	e.ObjStart()
	e.FieldStart("subtotal")
	encodeDecimal(&e, res.Pricing.Subtotal)
	e.FieldStart("discount")
	encodeDecimal(&e, res.Pricing.Discount)
	e.FieldStart("shipping")
	encodeDecimal(&e, res.Pricing.Shipping)
	e.FieldStart("tax")
	encodeDecimal(&e, res.Pricing.Tax)
	e.FieldStart("total")
	encodeDecimal(&e, res.Pricing.Total)
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}
