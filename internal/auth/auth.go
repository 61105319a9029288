// Package auth guards the history endpoints with a static Bearer token.
// Resolution itself stays public so the web UI works without credentials.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/star/kinematics1d/internal/httputil"
)

// ErrMissingToken is returned by Validate when auth is enabled without a token.
var ErrMissingToken = errors.New("auth enabled but no token configured")

// minTokenLength rejects tokens short enough to guess.
const minTokenLength = 16

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// Validate reports whether cfg can be enforced.
func (cfg Config) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Token == "" {
		return ErrMissingToken
	}
	if len(cfg.Token) < minTokenLength {
		return errors.New("auth token must be at least 16 characters")
	}
	return nil
}

// protectedPrefixes require a token when auth is enabled. Everything else is
// public.
var protectedPrefixes = []string{
	"/api/v1/resolutions",
}

// isProtected returns true if the path needs a token.
func isProtected(path string) bool {
	for _, prefix := range protectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on protected paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !isProtected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")

			if header == "" || token == header || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
