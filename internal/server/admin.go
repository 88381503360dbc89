package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/crmlink/crmlink/internal/errors"
	"github.com/crmlink/crmlink/internal/ratelimit"
)

// RateLimitListResponse is the admin view of all active rate windows.
type RateLimitListResponse struct {
	Limit     int                     `json:"limit"`
	Window    string                  `json:"window"`
	Windows   []ratelimit.WindowState `json:"windows"`
	FetchedAt time.Time               `json:"fetched_at"`
}

// adminAuth guards admin endpoints with a constant-time bearer token check.
func adminAuth(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			HandleError(w, r, apperrors.NewUnauthorizedError("Admin token missing or invalid"))
			return
		}
		next(w, r)
	}
}

// rateLimitListHandler answers the current limiter state for every client.
func (s *Server) rateLimitListHandler(w http.ResponseWriter, r *http.Request) {
	response := RateLimitListResponse{
		Limit:     s.limiter.Limit(),
		Window:    s.limiter.Interval().String(),
		Windows:   s.limiter.Snapshot(),
		FetchedAt: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// rateLimitResetHandler clears the window for one client key.
func (s *Server) rateLimitResetHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		HandleError(w, r, apperrors.NewInvalidInputError("Rate limit key is required"))
		return
	}

	if !s.limiter.Reset(key) {
		HandleError(w, r, apperrors.NewNotFoundError("No rate limit window for key "+key))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"reset": key,
	})
}
