package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyMiddleware_EmptyKeyDisablesCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	nextCalled := false
	handler := APIKeyMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusNoContent)
	}))

	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatalf("expected next handler to run when no key is configured")
	}
}

func TestAPIKeyMiddleware_RejectsWrongKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set(HeaderSentinelKey, "wrong")
	rec := httptest.NewRecorder()
	handler := APIKeyMiddleware("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected call to next handler")
	}))

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 status, got %d", rec.Code)
	}
}

func TestCORSMiddleware_Origins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"any origin", nil, "https://ui.example.com", "*"},
		{"listed origin", []string{"https://ui.example.com"}, "https://ui.example.com", "https://ui.example.com"},
		{"unlisted origin", []string{"https://ui.example.com"}, "https://evil.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler := CORSMiddleware(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("preflight should not reach next handler")
			}))

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 for preflight, got %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Fatalf("expected allow-origin %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51820"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Fatalf("expected host without port, got %q", got)
	}

	req.RemoteAddr = "198.51.100.4"
	if got := clientIP(req); got != "198.51.100.4" {
		t.Fatalf("expected bare address unchanged, got %q", got)
	}
}
