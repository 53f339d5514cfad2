package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/ayurmed/orders/internal/domain/cart"
)

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("user_id")
	e.Int64(c.UserID)
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range c.Lines {
		e.ObjStart()
		e.FieldStart("item_id")
		e.Int64(l.ItemID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	c, err := h.carts.Get(r.Context(), actor.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCart(&e, c)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	var itemID int64
	var quantity int
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "item_id":
			v, err := d.Int64()
			itemID = v
			return err
		case "quantity":
			v, err := d.Int()
			quantity = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if itemID <= 0 {
		badRequest(w, "item_id is required")
		return
	}

	if err := h.carts.AddItem(r.Context(), actor.UserID, itemID, quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.getCartResponse(w, r, actor.UserID, http.StatusOK)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		badRequest(w, "invalid item id")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	quantity := -1
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		quantity = v
		return err
	}); err != nil || quantity < 0 {
		badRequest(w, "quantity must be a non-negative integer")
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), actor.UserID, itemID, quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.getCartResponse(w, r, actor.UserID, http.StatusOK)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		badRequest(w, "invalid item id")
		return
	}

	if err := h.carts.RemoveItem(r.Context(), actor.UserID, itemID); err != nil {
		respondError(w, r, err)
		return
	}
	h.getCartResponse(w, r, actor.UserID, http.StatusOK)
}

func (h *Handler) getCartResponse(w http.ResponseWriter, r *http.Request, userID int64, status int) {
	c, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var e jx.Encoder
	encodeCart(&e, c)
	writeJSON(w, status, &e)
}
