package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/sha1n/mcp-docsearch-server/internal/config"
)

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// publicPaths bypass authentication (probes)
var publicPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// IsPublicPath reports whether requests to path skip authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}

// NewMiddleware creates the authentication middleware selected by settings.
func NewMiddleware(settings config.AuthSettings) (Middleware, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler { return next }, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return guard(func(r *http.Request) bool {
			user, pass, ok := r.BasicAuth()
			return ok && equal(user, settings.Basic.Username) && equal(pass, settings.Basic.Password)
		}, `Basic realm="docsearch-mcp"`), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		keys := settings.APIKeys
		return guard(func(r *http.Request) bool {
			return matchesAny(requestAPIKey(r), keys)
		}, `Bearer realm="docsearch-mcp"`), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// guard rejects requests to non-public paths that fail the check.
func guard(check func(*http.Request) bool, challenge string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path) || check(r) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", challenge)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

// requestAPIKey reads the key from X-API-Key or an Authorization bearer token.
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// matchesAny compares key against every valid key without short-circuiting.
func matchesAny(key string, valid []string) bool {
	if key == "" {
		return false
	}
	found := 0
	for _, v := range valid {
		found |= subtle.ConstantTimeCompare([]byte(key), []byte(v))
	}
	return found == 1
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
