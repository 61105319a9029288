package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/resolve", "/api/v1/resolve"},
		{"/api/v1/resolve/batch", "/api/v1/resolve/batch"},
		{"/api/v1/combinations", "/api/v1/combinations"},
		{"/api/v1/trajectory", "/api/v1/trajectory"},
		{"/api/v1/resolutions", "/api/v1/resolutions"},
		{"/api/v1/stream/trajectory", "/api/v1/stream/trajectory"},
		{"/api/v1/live", "/api/v1/live"},

		// Per-record routes collapse to one label.
		{"/api/v1/resolutions/6f1c2a9e-2b1d-4c5e-9a77-0d2f4f6b8e11", "/api/v1/resolutions/{id}"},
		{"/api/v1/resolutions/abc", "/api/v1/resolutions/{id}"},

		// Unknown/bot paths collapse to "other".
		{"/api/v1/resolutions/abc/def", "other"},
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/resolve", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 distinct record IDs produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/api/v1/resolutions/" + strconv.Itoa(i))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

// TestMiddlewareRecordsStatus verifies the middleware counts requests by
// normalized path and status code.
func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "418"))
	req := httptest.NewRequest("GET", "/no-such-route", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "418"))

	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}

func TestRecordResolutionUnmatched(t *testing.T) {
	before := testutil.ToFloat64(resolutionsTotal.WithLabelValues("none", "unsupported_combination"))
	RecordResolution("", "unsupported_combination")
	after := testutil.ToFloat64(resolutionsTotal.WithLabelValues("none", "unsupported_combination"))
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}
