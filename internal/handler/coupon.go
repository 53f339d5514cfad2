package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/ayurmed/orders/internal/domain/coupon"
)

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("discount_type")
	e.Str(string(c.DiscountType))
	e.FieldStart("discount_value")
	encodeDecimal(e, c.DiscountValue)
	e.FieldStart("min_order_value")
	encodeDecimal(e, c.MinOrderValue)
	e.FieldStart("max_discount")
	if c.MaxDiscount != nil {
		encodeDecimal(e, *c.MaxDiscount)
	} else {
		e.Null()
	}
	e.FieldStart("expiry_date")
	if c.ExpiryDate != nil {
		e.Str(c.ExpiryDate.Format(time.RFC3339))
	} else {
		e.Null()
	}
	e.FieldStart("usage_limit")
	if c.UsageLimit != nil {
		e.Int(*c.UsageLimit)
	} else {
		e.Null()
	}
	e.FieldStart("used_count")
	e.Int(c.UsedCount)
	e.FieldStart("is_active")
	e.Bool(c.Active)
	e.ObjEnd()
}

func encodeCouponList(coupons []coupon.Coupon) *jx.Encoder {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("coupons")
	e.ArrStart()
	for i := range coupons {
		encodeCoupon(&e, &coupons[i])
	}
	e.ArrEnd()
	e.ObjEnd()
	return &e
}

// applyCoupon previews a coupon against an order amount without consuming a
// use. Redemption happens only at checkout commit.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	var code string
	amount := decimal.Zero
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			code = v
			return err
		case "order_amount":
			v, err := decodeDecimal(d)
			amount = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if code == "" {
		badRequest(w, "code is required")
		return
	}

	discount, err := h.engine.ValidateAndPrice(r.Context(), code, amount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(coupon.NormalizeCode(code))
	e.FieldStart("discount")
	encodeDecimal(&e, discount)
	e.FieldStart("final_amount")
	encodeDecimal(&e, amount.Sub(discount))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) availableCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListAvailable(r.Context(), h.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCouponList(coupons))
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	c := coupon.Coupon{Active: true}
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			c.Code = coupon.NormalizeCode(v)
			return err
		case "discount_type":
			v, err := d.Str()
			c.DiscountType = coupon.DiscountType(v)
			return err
		case "discount_value":
			v, err := decodeDecimal(d)
			c.DiscountValue = v
			return err
		case "min_order_value":
			v, err := decodeDecimal(d)
			c.MinOrderValue = v
			return err
		case "max_discount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := decodeDecimal(d)
			c.MaxDiscount = &v
			return err
		case "expiry_date":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339, s)
			c.ExpiryDate = &t
			return err
		case "usage_limit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Int()
			c.UsageLimit = &v
			return err
		case "is_active":
			v, err := d.Bool()
			c.Active = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}

	if c.Code == "" {
		badRequest(w, "code is required")
		return
	}
	if c.DiscountType != coupon.DiscountPercentage && c.DiscountType != coupon.DiscountFixed {
		badRequest(w, "discount_type must be percentage or fixed")
		return
	}
	if c.DiscountValue.IsNegative() {
		badRequest(w, "discount_value must not be negative")
		return
	}
	if c.DiscountType == coupon.DiscountPercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		badRequest(w, "percentage discount must be between 0 and 100")
		return
	}

	if err := h.coupons.Create(r.Context(), &c); err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCoupon(&e, &c)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCouponList(coupons))
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid coupon id")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}

	var upd coupon.Update
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "is_active":
			v, err := d.Bool()
			upd.Active = &v
			return err
		case "expiry_date":
			upd.SetExpiry = true
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339, s)
			upd.ExpiryDate = &t
			return err
		case "usage_limit":
			upd.SetLimit = true
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Int()
			upd.UsageLimit = &v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		badRequest(w, "invalid json")
		return
	}

	c, err := h.coupons.Update(r.Context(), id, upd)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCoupon(&e, c)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid coupon id")
		return
	}

	if err := h.coupons.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
