package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/jx"
)

// AddressBook persists delivery addresses. Orders reference addresses by id;
// checkout verifies ownership before accepting one.
type AddressBook interface {
	Create(ctx context.Context, userID int64, line1, line2, city, state, postalCode, phone string) (int64, error)
}

func (h *Handler) createAddress(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	var line1, line2, city, state, postalCode, phone string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "line1":
			dst = &line1
		case "line2":
			dst = &line2
		case "city":
			dst = &city
		case "state":
			dst = &state
		case "postal_code":
			dst = &postalCode
		case "phone":
			dst = &phone
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}

	if line1 == "" || city == "" || state == "" || postalCode == "" {
		badRequest(w, "line1, city, state and postal_code are required")
		return
	}

	id, err := h.addresses.Create(r.Context(), actor.UserID, line1, line2, city, state, postalCode, phone)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(id)
	e.FieldStart("user_id")
	e.Int64(actor.UserID)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}
