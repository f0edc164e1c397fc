package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finapi/internal/api"
	applog "finapi/internal/log"
	"finapi/internal/services"
	"finapi/internal/store/memory"
)

func newTestServer(t *testing.T, ready ReadyFunc) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := services.NewTransactionService(st, nil, services.Options{
		SortKeyTiebreaker: true,
		Now:               func() time.Time { return time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC) },
	})
	srv := NewServer(":0", api.NewRouter(svc), ready, nil)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, st
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestReadyFailure(t *testing.T) {
	srv, _ := newTestServer(t, func(context.Context) error { return errors.New("db locked") })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPostAndReport(t *testing.T) {
	srv, st := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tx", strings.NewReader(`{"amount":"12.34","category":"Mercado","note":"feira"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-Id"), "req_"))
	assert.Equal(t, 1, st.Len())

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report/monthly?month=2025-03", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var rep map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, 12.34, rep["total"])
	assert.Equal(t, 1.0, rep["count"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tx", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"items":[]}`, rr.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/tx", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"Not found: PUT /tx"}`, rr.Body.String())
}

func TestPostRateLimited(t *testing.T) {
	srv, st := newTestServer(t, nil)

	var last int
	for i := 0; i < defaultPostsPerWindow+1; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/tx", strings.NewReader("1 x"))
		srv.Handler.ServeHTTP(rr, req)
		last = rr.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
	assert.Equal(t, defaultPostsPerWindow, st.Len())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tx", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not rate limited")
}

func TestBodyTooLarge(t *testing.T) {
	srv, st := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tx", strings.NewReader(strings.Repeat("9", maxBodyBytes+1)))
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok":false`)
	assert.Equal(t, 0, st.Len())
}

func TestShutdownLogsSecurityCounters(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	svc := services.NewTransactionService(memory.New(), nil, services.Options{SortKeyTiebreaker: true})
	srv := NewServer(":0", api.NewRouter(svc), nil, logger)

	srv.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/.env", nil))
	for i := 0; i < defaultPostsPerWindow+2; i++ {
		srv.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/tx", strings.NewReader("1 x")))
	}

	require.NoError(t, srv.Shutdown(context.Background()))

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["msg"] != "Security counters" {
			continue
		}
		found = true
		assert.Equal(t, float64(2), entry["rate_limit_hits"])
		assert.Equal(t, float64(1), entry["suspicious_requests"])
	}
	assert.True(t, found, "counters are logged on shutdown")
}

func TestRateLimiterWindow(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{
		limit:   2,
		clients: make(map[string]*clientInfo),
		now:     func() time.Time { return clock },
	}
	m := &securityMetrics{}

	assert.True(t, rl.allow("1.2.3.4", m))
	assert.True(t, rl.allow("1.2.3.4", m))
	assert.False(t, rl.allow("1.2.3.4", m))
	assert.True(t, rl.allow("5.6.7.8", m), "limits are per client")
	assert.Equal(t, int64(1), m.rateLimitHits)

	clock = clock.Add(rateWindow + time.Second)
	assert.True(t, rl.allow("1.2.3.4", m), "new window resets the counter")

	clock = clock.Add(staleAfter + time.Minute)
	assert.Equal(t, 2, rl.cleanupStaleEntries())
	assert.Empty(t, rl.clients)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.9:5555", "", "", "203.0.113.9"},
		{"untrusted peer ignores xff", "203.0.113.9:5555", "198.51.100.1", "", "203.0.113.9"},
		{"trusted peer uses xff", "10.0.0.2:5555", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted peer uses x-real-ip", "127.0.0.1:5555", "", "198.51.100.7", "198.51.100.7"},
		{"garbage xff falls back", "127.0.0.1:5555", "not-an-ip", "", "127.0.0.1"},
		{"no port", "203.0.113.9", "", "", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	m := &securityMetrics{}

	assert.False(t, detectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/tx?month=2025-03", nil), m))
	assert.True(t, detectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/.env", nil), m))

	req := httptest.NewRequest(http.MethodGet, "/tx", nil)
	req.Header.Set("User-Agent", "sqlmap/1.7")
	assert.True(t, detectSuspiciousRequest(req, m))

	assert.Equal(t, int64(2), m.suspiciousRequests)
}
