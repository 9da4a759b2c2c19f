package mcp_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	plmcp "github.com/parleyhq/parley/internal/adapter/mcp"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
	}{
		{"bearer token", "Authorization", "Bearer sk-123", http.StatusOK},
		{"api key header", "X-API-Key", "sk-123", http.StatusOK},
		{"wrong key", "X-API-Key", "sk-999", http.StatusForbidden},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusForbidden},
		{"no credentials", "", "", http.StatusUnauthorized},
	}

	handler := plmcp.AuthMiddleware("sk-123", okHandler())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", http.NoBody)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	handler := plmcp.AuthMiddleware("", okHandler())

	req := httptest.NewRequest(http.MethodPost, "/mcp", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("empty key must disable auth, got %d", rec.Code)
	}
}
