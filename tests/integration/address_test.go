//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestAddress_Create(t *testing.T) {
	const userID = 401

	resp := doAs(t, http.MethodPost, "/api/addresses", map[string]any{
		"line1":       "42 Harbour Road",
		"line2":       "Flat 3",
		"city":        "Mumbai",
		"state":       "MH",
		"postal_code": "400001",
		"phone":       "+91 99999 00000",
	}, userID)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusCreated)

	a := decodeJSON[addressResponse](t, resp)
	if a.ID <= 0 {
		t.Fatalf("expected a positive address id, got %d", a.ID)
	}
	if a.UserID != userID {
		t.Fatalf("expected owner %d, got %d", userID, a.UserID)
	}
}

func TestAddress_MissingFieldsRejected(t *testing.T) {
	resp := doAs(t, http.MethodPost, "/api/addresses", map[string]any{
		"city": "Pune",
	}, 402)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestAddress_RequiresIdentity(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/addresses", map[string]any{"line1": "x"}, 0, "")
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusUnauthorized)
}
