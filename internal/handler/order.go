package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/ayurmed/orders/internal/domain/order"
)

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("user_id")
	e.Int64(o.UserID)
	e.FieldStart("item_id")
	e.Int64(o.ItemID)
	e.FieldStart("quantity")
	e.Int(o.Quantity)
	e.FieldStart("order_date")
	e.Str(o.OrderDate.Format(time.RFC3339))
	e.FieldStart("status")
	e.Int(int(o.Status))
	e.FieldStart("status_name")
	e.Str(o.Status.Label())
	e.FieldStart("address_id")
	e.Int64(o.AddressID)
	e.FieldStart("tracking_number")
	encodeOptStr(e, o.TrackingNumber)
	e.FieldStart("shipped_date")
	encodeOptTime(e, o.ShippedDate)
	e.FieldStart("delivered_date")
	encodeOptTime(e, o.DeliveredDate)
	e.FieldStart("estimated_delivery")
	encodeOptTime(e, o.EstimatedDelivery)
	e.FieldStart("payment_method")
	e.Str(o.PaymentMethod)
	e.FieldStart("coupon_code")
	encodeOptStr(e, o.CouponCode)
	e.FieldStart("discount_amount")
	encodeDecimal(e, o.DiscountAmount)
	e.FieldStart("final_amount")
	encodeDecimal(e, o.FinalAmount)
	e.ObjEnd()
}

func encodeOptStr(e *jx.Encoder, s *string) {
	if s != nil {
		e.Str(*s)
	} else {
		e.Null()
	}
}

func encodeOptTime(e *jx.Encoder, t *time.Time) {
	if t != nil {
		e.Str(t.Format(time.RFC3339))
	} else {
		e.Null()
	}
}

func encodeOrderList(orders []order.Order) *jx.Encoder {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	e.ObjEnd()
	return &e
}

func orderIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	orders, err := h.orders.ListByUser(r.Context(), actor.UserID, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrderList(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	id, ok := orderIDParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), id, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	id, ok := orderIDParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}

	events, err := h.orders.History(r.Context(), id, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("events")
	e.ArrStart()
	for _, ev := range events {
		e.ObjStart()
		e.FieldStart("status")
		e.Int(int(ev.Status))
		e.FieldStart("status_name")
		e.Str(ev.StatusName)
		e.FieldStart("note")
		e.Str(ev.Note)
		e.FieldStart("actor_id")
		if ev.ActorID != nil {
			e.Int64(*ev.ActorID)
		} else {
			e.Null()
		}
		e.FieldStart("created_at")
		e.Str(ev.CreatedAt.Format(time.RFC3339))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// cancelOrder is a status change to Cancelled, never a row deletion.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	id, ok := orderIDParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}

	o, err := h.orders.Cancel(r.Context(), id, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	status, err := strconv.Atoi(r.URL.Query().Get("status"))
	if err != nil || !order.Status(status).Valid() {
		badRequest(w, "status query parameter is required")
		return
	}
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 || limit > 200 {
			badRequest(w, "invalid limit")
			return
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			badRequest(w, "invalid offset")
			return
		}
	}

	orders, err := h.orders.ListByStatus(r.Context(), order.Status(status), limit, offset, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrderList(orders))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	id, ok := orderIDParam(r)
	if !ok {
		badRequest(w, "invalid order id")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	status := -1
	var trackingNumber, note string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Int()
			status = v
			return err
		case "tracking_number":
			v, err := d.Str()
			trackingNumber = v
			return err
		case "note":
			v, err := d.Str()
			note = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if !order.Status(status).Valid() {
		badRequest(w, "unknown status")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, order.Status(status), trackingNumber, note, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}
