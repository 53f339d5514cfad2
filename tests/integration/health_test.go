//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// Both probes should pass once compose reports the API ready: postgres is up
// and the server has finished migrations.
func TestHealthProbes(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			resp := doGet(t, path)
			defer resp.Body.Close()

			wantStatus(t, resp, http.StatusOK)
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected JSON probe response, got %q", ct)
			}

			body := decodeJSON[healthResponse](t, resp)
			if body.Status != "ok" {
				t.Fatalf("expected status ok, got %q", body.Status)
			}
			if len(body.Checks) != 0 {
				t.Fatalf("no probe should be failing, got %v", body.Checks)
			}
		})
	}
}
