package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"https://tekkistudio.com/", "https://www.tekkistudio.com"})(next)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions", nil)
		req.Header.Set("Origin", "https://tekkistudio.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d", rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://tekkistudio.com" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/chat/sessions", nil)
		req.Header.Set("Origin", "https://www.tekkistudio.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("expected Allow-Methods on preflight")
		}
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/businesses", nil)
		req.Header.Set("Origin", "https://evil.example")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("foreign origin must not be allowed")
		}

		req = httptest.NewRequest(http.MethodOptions, "/api/businesses", nil)
		req.Header.Set("Origin", "https://evil.example")
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Errorf("foreign preflight status = %d, want 403", rr.Code)
		}
	})

	t.Run("wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/businesses", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		CORS([]string{"*"})(next).ServeHTTP(rr, req)

		if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Error("wildcard should allow any origin")
		}
	})
}

func TestAllowsOrigin(t *testing.T) {
	allowed := []string{"https://tekkistudio.com"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://tekkistudio.com", true},
		{"https://TekkiStudio.com/", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		if got := AllowsOrigin(allowed, tt.origin); got != tt.want {
			t.Errorf("AllowsOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
	if !AllowsOrigin([]string{"*"}, "https://anything.example") {
		t.Error("wildcard should allow any origin")
	}
}
