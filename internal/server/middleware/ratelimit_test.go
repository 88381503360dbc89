package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmlink/crmlink/internal/ratelimit"
)

func rateLimitedHandler(limiter *ratelimit.Limiter) http.Handler {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(limiter)(okHandler)
}

func TestRateLimit_AllowsRequestsWithinBudget(t *testing.T) {
	handler := rateLimitedHandler(ratelimit.New(2, time.Minute))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/api/v1/hubspot", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_RejectsWithRetryAfter(t *testing.T) {
	handler := rateLimitedHandler(ratelimit.New(1, time.Minute))

	first := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/hubspot", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/hubspot", nil)
	req.RemoteAddr = "10.0.0.1:4001"
	handler.ServeHTTP(second, req)

	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Contains(t, body.Error.Details, "retry_after_seconds")
}

func TestRateLimit_KeysClientsByIP(t *testing.T) {
	handler := rateLimitedHandler(ratelimit.New(1, time.Minute))

	for _, addr := range []string{"10.0.0.1:4000", "10.0.0.2:4000", "10.0.0.3:4000"} {
		req := httptest.NewRequest("GET", "/api/v1/hubspot", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "first request from %s should pass", addr)
	}
}

func TestClientKeyStripsPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.7:51234"
	assert.Equal(t, "192.168.1.7", clientKey(req))

	req.RemoteAddr = "192.168.1.7"
	assert.Equal(t, "192.168.1.7", clientKey(req))
}
