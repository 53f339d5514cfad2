//go:build integration

// Package integration drives the order server as a black box through its HTTP
// API: compose brings up postgres, a stub catalog, and the server itself.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"
)

const gatewayKeySecret = "integration-test-secret"

var (
	baseURL    string
	httpClient *http.Client
)

// Response types are defined locally to keep the tests truly black-box.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type addressResponse struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
}

type cartResponse struct {
	ID     int64      `json:"id"`
	UserID int64      `json:"user_id"`
	Items  []cartItem `json:"items"`
}

type cartItem struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type couponResponse struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	UsageLimit    *int    `json:"usage_limit"`
	UsedCount     int     `json:"used_count"`
	IsActive      bool    `json:"is_active"`
}

type couponListResponse struct {
	Coupons []couponResponse `json:"coupons"`
}

type applyCouponResponse struct {
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"final_amount"`
}

type orderResponse struct {
	ID             int64    `json:"id"`
	UserID         int64    `json:"user_id"`
	ItemID         int64    `json:"item_id"`
	Quantity       int      `json:"quantity"`
	Status         int      `json:"status"`
	StatusName     string   `json:"status_name"`
	TrackingNumber *string  `json:"tracking_number"`
	PaymentMethod  string   `json:"payment_method"`
	CouponCode     *string  `json:"coupon_code"`
	DiscountAmount float64  `json:"discount_amount"`
	FinalAmount    float64  `json:"final_amount"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

type checkoutResponse struct {
	OrderIDs []int64         `json:"order_ids"`
	Orders   []orderResponse `json:"orders"`
	Pricing  struct {
		Subtotal float64 `json:"subtotal"`
		Discount float64 `json:"discount"`
		Shipping float64 `json:"shipping"`
		Tax      float64 `json:"tax"`
		Total    float64 `json:"total"`
	} `json:"pricing"`
}

type historyResponse struct {
	Events []struct {
		Status     int    `json:"status"`
		StatusName string `json:"status_name"`
		Note       string `json:"note"`
		ActorID    *int64 `json:"actor_id"`
	} `json:"events"`
}

type verifyResponse struct {
	Confirmed        int `json:"confirmed"`
	AlreadyConfirmed int `json:"already_confirmed"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}

	// Start postgres + catalog stub + api, wait until readiness passes.
	err = dc.
		WaitForService("api", wait.ForHTTP("/readyz").WithPort("8080/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	apiContainer, err := dc.ServiceContainer(ctx, "api")
	if err != nil {
		log.Fatalf("api container: %v", err)
	}

	host, err := apiContainer.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}

	mappedPort, err := apiContainer.MappedPort(ctx, "8080/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	baseURL = fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	httpClient = &http.Client{Timeout: 10 * time.Second}
	log.Printf("API available at %s", baseURL)

	result := m.Run()

	// Stop the API container gracefully before teardown so in-flight
	// notification workers drain.
	stopTimeout := 30 * time.Second
	if err := apiContainer.Stop(ctx, &stopTimeout); err != nil {
		log.Printf("stop api container: %v", err)
	}

	if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
		log.Printf("compose down: %v", err)
	}

	return result
}

// createAddressAs registers a delivery address for userID through the API and
// returns its id.
func createAddressAs(t *testing.T, userID int64) int64 {
	t.Helper()
	resp := doAs(t, http.MethodPost, "/api/addresses", map[string]any{
		"line1":       "1 Test Street",
		"city":        "Pune",
		"state":       "MH",
		"postal_code": "411001",
	}, userID)
	defer resp.Body.Close()
	wantStatus(t, resp, http.StatusCreated)
	return decodeJSON[addressResponse](t, resp).ID
}

// HTTP helpers. Identity travels in the trusted gateway headers.

func newRequest(t *testing.T, method, path string, body any, userID int64, role string) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	return req
}

func do(t *testing.T, method, path string, body any, userID int64, role string) *http.Response {
	t.Helper()

	resp, err := httpClient.Do(newRequest(t, method, path, body, userID, role))
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func doAs(t *testing.T, method, path string, body any, userID int64) *http.Response {
	return do(t, method, path, body, userID, "")
}

func doAsAdmin(t *testing.T, method, path string, body any, adminID int64) *http.Response {
	return do(t, method, path, body, adminID, "admin")
}

func doGet(t *testing.T, path string) *http.Response {
	return do(t, http.MethodGet, path, nil, 0, "")
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return v
}

func itoa(id int64) string {
	return fmt.Sprintf("%d", id)
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}
