package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	cases := []struct {
		name   string
		health HealthFunc
		status int
		body   string
	}{
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"nil check", nil, http.StatusOK, "ok"},
		{"unhealthy", Checks(map[string]HealthFunc{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		}), http.StatusServiceUnavailable, "redis: connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Handler(tc.health).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tc.status {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	CacheRequests.WithLabelValues("l1", "hit").Inc()

	rec := httptest.NewRecorder()
	Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "arb_odds_cache_requests_total") {
		t.Fatal("shared collectors not exported")
	}
}
