package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	h := CORS(origins, "X-Handoff-Session-ID")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORSExplicitOriginAllowsCredentials(t *testing.T) {
	t.Parallel()

	rec := serveCORS([]string{"https://chat.example.com"}, http.MethodGet, "https://chat.example.com")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials for explicit origin")
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Handoff-Session-ID" {
		t.Fatalf("unexpected allow-headers %q", got)
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	t.Parallel()

	rec := serveCORS([]string{"*"}, http.MethodGet, "https://elsewhere.example")
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://elsewhere.example" {
		t.Fatal("expected wildcard to echo origin")
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatal("wildcard match must not allow credentials")
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	t.Parallel()

	rec := serveCORS([]string{"https://chat.example.com"}, http.MethodGet, "https://evil.example")
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin must not be allowed")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass through, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	rec := serveCORS([]string{"*"}, http.MethodOptions, "https://chat.example.com")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}
