package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/crmlink/crmlink/internal/metrics"
)

// Recovery converts panics into INTERNAL_ERROR responses with the stack
// captured in envelope context, and records a panic metric.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				panicErr := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", err)).
					WithCorrelationID(GetRequestID(r.Context()))
				panicErr, _ = panicErr.WithContext(map[string]interface{}{
					"stack_trace": string(debug.Stack()),
				})
				panicErr, _ = panicErr.WithSeverity(errors.SeverityCritical)

				metrics.RecordPanic()

				writeErrorResponse(w, panicErr, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery kept for middleware-chain symmetry.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

// ErrorResponse is the wire shape for error payloads.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// writeErrorResponse writes the error directly to avoid importing the
// server package from middleware.
func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Context,
			RequestID: envelope.CorrelationID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
