//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			resp := doGet(t, path)
			defer resp.Body.Close()
			expectStatus(t, resp, http.StatusOK)

			body := decodeJSON[healthResponse](t, resp)
			if body.Status != "ok" {
				t.Fatalf("expected status ok, got %q (checks: %v)", body.Status, body.Checks)
			}
		})
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	resp := do(t, http.MethodPost, "/readyz", "", nil)
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusMethodNotAllowed)
}
