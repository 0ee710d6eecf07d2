package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sha1n/mcp-docsearch-server/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, settings config.AuthSettings, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	middleware, err := NewMiddleware(settings)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	rec := httptest.NewRecorder()
	middleware(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestNewMiddleware_None(t *testing.T) {
	for _, authType := range []string{config.AuthTypeNone, ""} {
		rec := serve(t, config.AuthSettings{Type: authType}, httptest.NewRequest("GET", "/sse", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("auth type %q: expected status 200, got %d", authType, rec.Code)
		}
	}
}

func TestNewMiddleware_Basic(t *testing.T) {
	settings := config.AuthSettings{
		Type:  config.AuthTypeBasic,
		Basic: config.BasicAuthSettings{Username: "admin", Password: "secret"},
	}

	tests := []struct {
		name     string
		user     string
		pass     string
		setAuth  bool
		wantCode int
	}{
		{"valid", "admin", "secret", true, http.StatusOK},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "secret", true, http.StatusUnauthorized},
		{"no credentials", "", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/sse", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := serve(t, settings, req)
			if rec.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate header")
			}
		})
	}
}

func TestNewMiddleware_APIKey(t *testing.T) {
	settings := config.AuthSettings{
		Type:    config.AuthTypeAPIKey,
		APIKeys: []string{"key-one", "key-two"},
	}

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
	}{
		{"x-api-key first", "X-API-Key", "key-one", http.StatusOK},
		{"x-api-key second", "X-API-Key", "key-two", http.StatusOK},
		{"bearer", "Authorization", "Bearer key-two", http.StatusOK},
		{"bearer lowercase scheme", "Authorization", "bearer key-one", http.StatusOK},
		{"basic scheme ignored", "Authorization", "Basic key-one", http.StatusUnauthorized},
		{"invalid key", "X-API-Key", "key-three", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/sse", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := serve(t, settings, req)
			if rec.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}

func TestNewMiddleware_PublicPathsBypassAuth(t *testing.T) {
	settings := config.AuthSettings{Type: config.AuthTypeAPIKey, APIKeys: []string{"k"}}

	for _, path := range []string{"/health", "/ready"} {
		rec := serve(t, settings, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, rec.Code)
		}
	}

	rec := serve(t, settings, httptest.NewRequest("GET", "/health/extra", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected nested path to require auth, got %d", rec.Code)
	}
}

func TestNewMiddleware_ConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings config.AuthSettings
	}{
		{"basic without password", config.AuthSettings{Type: config.AuthTypeBasic, Basic: config.BasicAuthSettings{Username: "u"}}},
		{"apikey without keys", config.AuthSettings{Type: config.AuthTypeAPIKey}},
		{"unknown type", config.AuthSettings{Type: "oauth"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMiddleware(tt.settings); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestMatchesAny(t *testing.T) {
	if matchesAny("", []string{""}) {
		t.Error("Empty key must never match")
	}
	if !matchesAny("b", []string{"a", "b", "c"}) {
		t.Error("Expected match")
	}
}
