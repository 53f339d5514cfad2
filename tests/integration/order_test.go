//go:build integration

package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
)

// checkoutCart registers an address, fills the cart, and checks out. The
// stub catalog prices every item at 100.
func checkoutCart(t *testing.T, userID int64, paymentMethod string, items map[int64]int) checkoutResponse {
	t.Helper()

	addressID := createAddressAs(t, userID)

	for itemID, qty := range items {
		resp := doAs(t, http.MethodPost, "/api/cart/items", map[string]any{"item_id": itemID, "quantity": qty}, userID)
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp := doAs(t, http.MethodPost, "/api/checkout", map[string]any{
		"address_id":     addressID,
		"payment_method": paymentMethod,
	}, userID)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusCreated)
	return decodeJSON[checkoutResponse](t, resp)
}

func TestCheckout_CODCreatesConfirmedOrdersAndClearsCart(t *testing.T) {
	const userID = 301

	res := checkoutCart(t, userID, "cod", map[int64]int{1: 2, 2: 1})
	if len(res.Orders) != 2 {
		t.Fatalf("expected one order per cart line, got %d", len(res.Orders))
	}
	for _, o := range res.Orders {
		if o.StatusName != "Confirmed" {
			t.Fatalf("expected Confirmed for COD, got %s", o.StatusName)
		}
	}
	if res.Pricing.Subtotal != 300 {
		t.Fatalf("expected subtotal 300, got %v", res.Pricing.Subtotal)
	}

	resp := doAs(t, http.MethodGet, "/api/cart", nil, userID)
	defer resp.Body.Close()
	c := decodeJSON[cartResponse](t, resp)
	if len(c.Items) != 0 {
		t.Fatalf("expected cart cleared after checkout, got %+v", c.Items)
	}
}

func TestCheckout_EmptyCartRejected(t *testing.T) {
	const userID = 302
	addressID := createAddressAs(t, userID)

	resp := doAs(t, http.MethodPost, "/api/checkout", map[string]any{
		"address_id": addressID, "payment_method": "cod",
	}, userID)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestCheckout_ForeignAddressRejected(t *testing.T) {
	const userID = 303
	foreign := createAddressAs(t, 9999)

	resp := doAs(t, http.MethodPost, "/api/cart/items", map[string]any{"item_id": 1, "quantity": 1}, userID)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doAs(t, http.MethodPost, "/api/checkout", map[string]any{
		"address_id": foreign, "payment_method": "cod",
	}, userID)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestCheckout_CouponRedeemedOncePerCheckout(t *testing.T) {
	const userID = 304

	createCoupon(t, map[string]any{
		"code":           "once50",
		"discount_type":  "fixed",
		"discount_value": 50,
		"usage_limit":    10,
	})

	addressID := createAddressAs(t, userID)
	for _, itemID := range []int64{1, 2} {
		resp := doAs(t, http.MethodPost, "/api/cart/items", map[string]any{"item_id": itemID, "quantity": 1}, userID)
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp := doAs(t, http.MethodPost, "/api/checkout", map[string]any{
		"address_id": addressID, "payment_method": "cod", "coupon_code": "ONCE50",
	}, userID)
	wantStatus(t, resp, http.StatusCreated)
	res := decodeJSON[checkoutResponse](t, resp)
	resp.Body.Close()

	// Two equally priced lines split the 50 discount 25/25.
	var totalDiscount float64
	for _, o := range res.Orders {
		totalDiscount += o.DiscountAmount
	}
	if totalDiscount != 50 {
		t.Fatalf("expected total discount 50, got %v", totalDiscount)
	}

	resp = doAsAdmin(t, http.MethodGet, "/api/admin/coupons", nil, adminID)
	defer resp.Body.Close()
	list := decodeJSON[couponListResponse](t, resp)
	for _, c := range list.Coupons {
		if c.Code == "ONCE50" && c.UsedCount != 1 {
			t.Fatalf("expected exactly one redemption, used_count=%d", c.UsedCount)
		}
	}
}

func TestOrder_AdminPipelineAndHistory(t *testing.T) {
	const userID = 305

	res := checkoutCart(t, userID, "cod", map[int64]int{5: 1})
	orderID := res.OrderIDs[0]
	path := "/api/admin/orders/" + itoa(orderID)

	// Shipping without a tracking number is rejected.
	resp := doAsAdmin(t, http.MethodPatch, path, map[string]any{"status": 4}, adminID)
	wantStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	steps := []map[string]any{
		{"status": 2},
		{"status": 3},
		{"status": 4, "tracking_number": "TRK-12345"},
		{"status": 5},
		{"status": 6},
	}
	for _, body := range steps {
		resp := doAsAdmin(t, http.MethodPatch, path, body, adminID)
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	// Backwards move is rejected.
	resp = doAsAdmin(t, http.MethodPatch, path, map[string]any{"status": 4, "tracking_number": "TRK-X"}, adminID)
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = doAs(t, http.MethodGet, "/api/orders/"+itoa(orderID), nil, userID)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if o.StatusName != "Delivered" {
		t.Fatalf("expected Delivered, got %s", o.StatusName)
	}
	if o.TrackingNumber == nil || *o.TrackingNumber != "TRK-12345" {
		t.Fatalf("tracking number not persisted: %+v", o.TrackingNumber)
	}

	// One event per transition: placement plus five admin steps.
	resp = doAs(t, http.MethodGet, "/api/orders/"+itoa(orderID)+"/history", nil, userID)
	defer resp.Body.Close()
	hist := decodeJSON[historyResponse](t, resp)
	if len(hist.Events) != 6 {
		t.Fatalf("expected 6 status events, got %d", len(hist.Events))
	}
	if hist.Events[0].StatusName != "Confirmed" {
		t.Fatalf("expected placement event first, got %s", hist.Events[0].StatusName)
	}
}

func TestOrder_CustomerCancelRules(t *testing.T) {
	const userID = 306

	res := checkoutCart(t, userID, "cod", map[int64]int{1: 1, 2: 1})
	cancellable, shipped := res.OrderIDs[0], res.OrderIDs[1]

	// Ship the second order.
	for _, body := range []map[string]any{
		{"status": 2}, {"status": 3}, {"status": 4, "tracking_number": "TRK-9"},
	} {
		resp := doAsAdmin(t, http.MethodPatch, "/api/admin/orders/"+itoa(shipped), body, adminID)
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	// Customer can cancel before shipping.
	resp := doAs(t, http.MethodDelete, "/api/orders/"+itoa(cancellable), nil, userID)
	wantStatus(t, resp, http.StatusOK)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if o.StatusName != "Cancelled" {
		t.Fatalf("expected Cancelled, got %s", o.StatusName)
	}

	// But not after.
	resp = doAs(t, http.MethodDelete, "/api/orders/"+itoa(shipped), nil, userID)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestOrder_OwnershipEnforced(t *testing.T) {
	const userID = 307

	res := checkoutCart(t, userID, "cod", map[int64]int{1: 1})
	orderID := res.OrderIDs[0]

	resp := doAs(t, http.MethodGet, "/api/orders/"+itoa(orderID), nil, 308)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusForbidden)
}

func gatewaySignature(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(gatewayKeySecret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPayment_VerifyConfirmsPendingOrders(t *testing.T) {
	const userID = 309

	res := checkoutCart(t, userID, "online", map[int64]int{1: 1, 2: 1})
	for _, o := range res.Orders {
		if o.StatusName != "Pending Payment" {
			t.Fatalf("expected Pending Payment for online checkout, got %s", o.StatusName)
		}
	}

	body := map[string]any{
		"gateway_order_id":   "order_itest1",
		"gateway_payment_id": "pay_itest1",
		"signature":          gatewaySignature("order_itest1", "pay_itest1"),
		"order_ids":          res.OrderIDs,
	}

	resp := doAs(t, http.MethodPost, "/api/payments/verify", body, userID)
	wantStatus(t, resp, http.StatusOK)
	v := decodeJSON[verifyResponse](t, resp)
	resp.Body.Close()
	if v.Confirmed != 2 {
		t.Fatalf("expected 2 confirmed, got %+v", v)
	}

	// Replay is a no-op.
	resp = doAs(t, http.MethodPost, "/api/payments/verify", body, userID)
	wantStatus(t, resp, http.StatusOK)
	v = decodeJSON[verifyResponse](t, resp)
	resp.Body.Close()
	if v.Confirmed != 0 || v.AlreadyConfirmed != 2 {
		t.Fatalf("expected idempotent replay, got %+v", v)
	}

	resp = doAs(t, http.MethodGet, "/api/orders/"+itoa(res.OrderIDs[0]), nil, userID)
	defer resp.Body.Close()
	o := decodeJSON[orderResponse](t, resp)
	if o.StatusName != "Confirmed" {
		t.Fatalf("expected Confirmed after verify, got %s", o.StatusName)
	}
}

func TestPayment_BadSignatureRejected(t *testing.T) {
	const userID = 310

	res := checkoutCart(t, userID, "online", map[int64]int{1: 1})

	resp := doAs(t, http.MethodPost, "/api/payments/verify", map[string]any{
		"gateway_order_id":   "order_itest2",
		"gateway_payment_id": "pay_itest2",
		"signature":          "forged",
		"order_ids":          res.OrderIDs,
	}, userID)
	wantStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = doAs(t, http.MethodGet, "/api/orders/"+itoa(res.OrderIDs[0]), nil, userID)
	defer resp.Body.Close()
	o := decodeJSON[orderResponse](t, resp)
	if o.StatusName != "Pending Payment" {
		t.Fatalf("order must stay pending after bad signature, got %s", o.StatusName)
	}
}
