package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testToken = "0123456789abcdef-token"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: testToken})(okHandler())

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"public resolve", "/api/v1/resolve?vi=1", "", http.StatusOK},
		{"public health", "/healthz", "", http.StatusOK},
		{"public root", "/", "", http.StatusOK},
		{"list without token", "/api/v1/resolutions", "", http.StatusUnauthorized},
		{"record without token", "/api/v1/resolutions/abc", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/resolutions", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "/api/v1/resolutions", testToken, http.StatusUnauthorized},
		{"valid token", "/api/v1/resolutions/abc", "Bearer " + testToken, http.StatusOK},
		{"prefix lookalike", "/api/v1/resolutionsx", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(okHandler())
	req := httptest.NewRequest("GET", "/api/v1/resolutions", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Errorf("disabled: %v", err)
	}
	if err := (Config{Enabled: true}).Validate(); !errors.Is(err, ErrMissingToken) {
		t.Errorf("missing token: %v", err)
	}
	if err := (Config{Enabled: true, Token: "short"}).Validate(); err == nil {
		t.Error("short token should fail")
	}
	if err := (Config{Enabled: true, Token: testToken}).Validate(); err != nil {
		t.Errorf("valid: %v", err)
	}
}
