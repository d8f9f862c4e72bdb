package postalcodes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMountPath_JoinsBasePath(t *testing.T) {
	if got := MountPath("/admin"); got != "/admin/api/postal-codes" {
		t.Fatalf("unexpected mount path: %q", got)
	}
	if got := MountPath("admin/"); got != "/admin/api/postal-codes" {
		t.Fatalf("unexpected mount path: %q", got)
	}
	if got := MountPath("", WithRoutePath("cep")); got != "/cep" {
		t.Fatalf("unexpected mount path: %q", got)
	}
}

func TestRegisterRoutes_RegistersHandler(t *testing.T) {
	mux := http.NewServeMux()
	pattern, err := RegisterRoutes(mux, "/admin", WithAddresses(testAddresses))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pattern != "/admin/api/postal-codes" {
		t.Fatalf("unexpected registered pattern: %q", pattern)
	}

	for _, target := range []string{pattern + "?code=01310100", pattern + "/01310100"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", target, rec.Code)
		}
	}
}

func TestLoadAddresses_RejectsMalformedLines(t *testing.T) {
	if _, err := LoadAddresses(strings.NewReader("01310100|Avenida Paulista|São Paulo\n")); err == nil {
		t.Fatalf("expected field count error")
	}
	if _, err := LoadAddresses(strings.NewReader("0131|a|b|c|d\n")); err == nil {
		t.Fatalf("expected postal code error")
	}
	addrs, err := LoadAddresses(strings.NewReader("# header\n\n01310100|Avenida Paulista|Bela Vista|São Paulo|SP\n"))
	if err != nil || len(addrs) != 1 {
		t.Fatalf("expected one address, got %d (%v)", len(addrs), err)
	}
}
