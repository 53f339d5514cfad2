package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/ayurmed/orders/internal/payment"
)

func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	amount := decimal.Zero
	var currency string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "amount":
			v, err := decodeDecimal(d)
			amount = v
			return err
		case "currency":
			v, err := d.Str()
			currency = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if !amount.IsPositive() {
		badRequest(w, "amount must be positive")
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), amount, currency)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("gateway_order_id")
	e.Str(intent.GatewayOrderID)
	e.FieldStart("amount")
	encodeDecimal(&e, intent.Amount)
	e.FieldStart("currency")
	e.Str(intent.Currency)
	e.FieldStart("receipt")
	e.Str(intent.Receipt)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	req := payment.VerifyRequest{Actor: actor}
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "gateway_order_id":
			v, err := d.Str()
			req.GatewayOrderID = v
			return err
		case "gateway_payment_id":
			v, err := d.Str()
			req.GatewayPaymentID = v
			return err
		case "signature":
			v, err := d.Str()
			req.Signature = v
			return err
		case "order_ids":
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Int64()
				if err != nil {
					return err
				}
				req.OrderIDs = append(req.OrderIDs, id)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		badRequest(w, "gateway_order_id, gateway_payment_id and signature are required")
		return
	}
	if len(req.OrderIDs) == 0 {
		badRequest(w, "order_ids is required")
		return
	}

	res, err := h.payments.Verify(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("confirmed")
	e.Int(res.Confirmed)
	e.FieldStart("already_confirmed")
	e.Int(res.AlreadyConfirmed)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
