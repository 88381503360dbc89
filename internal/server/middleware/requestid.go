package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID on both requests and responses.
const RequestIDHeader = "X-Request-ID"

// requestIDContextKey is a custom type to avoid context key collisions
type requestIDContextKey string

const RequestIDContextKey requestIDContextKey = "request_id"

// RequestID attaches a request ID to every request: an inbound header or
// chi-assigned ID is reused, otherwise a fresh UUID is generated. The ID is
// echoed on the response and stored in the request context for correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context, falling back to
// chi's request ID when ours is absent.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		return requestID
	}
	return ""
}
