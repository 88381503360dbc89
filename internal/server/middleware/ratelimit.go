package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/crmlink/crmlink/internal/metrics"
	"github.com/crmlink/crmlink/internal/observability"
	"github.com/crmlink/crmlink/internal/ratelimit"
)

// RateLimit rejects requests over the per-client fixed-window budget with a
// 429 and a Retry-After hint. Clients are keyed by IP; chi's RealIP runs
// earlier in the chain so RemoteAddr already reflects forwarding headers.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if limiter.IsRateLimited(key) {
				retryAfter := limiter.RetryAfter(key)
				metrics.RecordRateLimited()

				if observability.ServerLogger != nil {
					observability.ServerLogger.Warn("Request rate limited",
						zap.String("client", key),
						zap.String("path", r.URL.Path),
						zap.Duration("retry_after", retryAfter))
				}

				envelope := errors.NewErrorEnvelope("RATE_LIMITED", "Rate limit exceeded. Try again later.").
					WithCorrelationID(GetRequestID(r.Context()))
				envelope, _ = envelope.WithContext(map[string]interface{}{
					"retry_after_seconds": int(retryAfter.Seconds()),
				})

				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				writeErrorResponse(w, envelope, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the client IP, falling back to the raw RemoteAddr when
// it carries no port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
