package postalcodes

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testAddresses = []Address{
	{PostalCode: "01310-100", Street: "Avenida Paulista", District: "Bela Vista", City: "São Paulo", State: "SP"},
	{PostalCode: "13015904", Street: "Rua Barão de Jaguara", District: "Centro", City: "Campinas", State: "SP"},
}

func serve(t *testing.T, h http.Handler, method, target string) (*http.Response, addressResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	res := rec.Result()
	var payload addressResponse
	if method != http.MethodHead && strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return res, payload
}

func TestHandler_ReturnsAddress(t *testing.T) {
	t.Parallel()

	h := Handler(WithAddresses(testAddresses))
	res, payload := serve(t, h, http.MethodGet, "/api/postal-codes?code=01310-100")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}
	want := &Address{PostalCode: "01310100", Street: "Avenida Paulista", District: "Bela Vista", City: "São Paulo", State: "SP"}
	if diff := cmp.Diff(want, payload.Data); diff != "" {
		t.Fatalf("address mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_PathSegment(t *testing.T) {
	t.Parallel()

	h := Handler(WithAddresses(testAddresses))
	res, payload := serve(t, h, http.MethodGet, "/api/postal-codes/13015904")
	if res.StatusCode != http.StatusOK || payload.Data == nil || payload.Data.City != "Campinas" {
		t.Fatalf("expected Campinas, got %d %#v", res.StatusCode, payload.Data)
	}
}

func TestHandler_ErrorStatuses(t *testing.T) {
	t.Parallel()

	h := Handler(WithAddresses(testAddresses))
	cases := []struct {
		name   string
		method string
		target string
		status int
	}{
		{name: "unknown", method: http.MethodGet, target: "/api/postal-codes?code=99999999", status: http.StatusNotFound},
		{name: "short", method: http.MethodGet, target: "/api/postal-codes?code=0131", status: http.StatusBadRequest},
		{name: "post", method: http.MethodPost, target: "/api/postal-codes?code=01310100", status: http.StatusMethodNotAllowed},
		{name: "head", method: http.MethodHead, target: "/api/postal-codes?code=01310100", status: http.StatusOK},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, _ := serve(t, h, tc.method, tc.target)
			if res.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, res.StatusCode)
			}
		})
	}
}

func TestHandler_GuardStatus(t *testing.T) {
	t.Parallel()

	h := Handler(
		WithAddresses(testAddresses),
		WithGuard(func(*http.Request) error {
			return StatusError{Code: http.StatusUnauthorized, Err: errors.New("login required")}
		}),
	)
	res, _ := serve(t, h, http.MethodGet, "/api/postal-codes?code=01310100")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.StatusCode)
	}
}

func TestHandler_DefaultDirectory(t *testing.T) {
	t.Parallel()

	res, payload := serve(t, Handler(), http.MethodGet, "/api/postal-codes?code=20040020")
	if res.StatusCode != http.StatusOK || payload.Data == nil || payload.Data.City != "Rio de Janeiro" {
		t.Fatalf("expected embedded address, got %d %#v", res.StatusCode, payload.Data)
	}
}
