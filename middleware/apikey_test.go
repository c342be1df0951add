package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAPIKeyMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		apiKey     string
		path       string
		provided   string
		statusCode int
		errPart    string
	}{
		{"Disabled", "", "/lyrics", "", http.StatusOK, ""},
		{"Valid key", "secret", "/lyrics", "secret", http.StatusOK, ""},
		{"Missing key", "secret", "/lyrics", "", http.StatusUnauthorized, "API key required"},
		{"Wrong key", "secret", "/lyrics", "nope", http.StatusUnauthorized, "Invalid API key"},
		{"Public path", "secret", "/health", "", http.StatusOK, ""},
		{"Public prefix", "secret", "/docs/index", "", http.StatusOK, ""},
		{"Prefix needs star", "secret", "/health/deep", "", http.StatusUnauthorized, "API key required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyMiddleware(tt.apiKey, []string{"/health", "/docs/*"})(next)

			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.provided != "" {
				req.Header.Set("X-API-Key", tt.provided)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.statusCode {
				t.Errorf("Expected status %d, got %d", tt.statusCode, rec.Code)
			}
			if tt.errPart != "" {
				if !strings.Contains(rec.Body.String(), tt.errPart) {
					t.Errorf("Expected body to contain %q, got %q", tt.errPart, rec.Body.String())
				}
				if rec.Header().Get("Content-Type") != "application/json" {
					t.Errorf("Expected JSON error, got %q", rec.Header().Get("Content-Type"))
				}
			}
		})
	}
}
