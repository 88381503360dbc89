package hubspot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/crmlink/crmlink/internal/errors"
	"github.com/crmlink/crmlink/internal/metrics"
	"github.com/crmlink/crmlink/internal/observability"
)

const (
	defaultTokenURL = "https://api.hubapi.com/oauth/v1/token"

	// HubSpot omits expires_in on some token responses; assume 30 minutes.
	defaultTokenLifetime = 30 * time.Minute

	// Tokens are renewed one minute before the upstream considers them dead,
	// so an attempt never races the server-side expiry.
	refreshSafetyMargin = time.Minute
)

// TokenManager owns the single OAuth credential set for the process. It hands
// out a valid bearer token on demand and exchanges the refresh token for a new
// access token when the cached one is missing, expired, or rejected upstream.
//
// All credential state sits behind one mutex; concurrent callers serialize on
// it so a refresh can never interleave with a read.
type TokenManager struct {
	TokenURL   string
	HTTPClient *http.Client
	Timeout    time.Duration

	clientID     string
	clientSecret string

	mu           sync.Mutex
	refreshToken string
	accessToken  string
	expiresAt    time.Time

	clock func() time.Time
}

// tokenResponse is the token endpoint's JSON body. refresh_token is optional:
// HubSpot only includes it when the refresh token rotates.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// NewTokenManager returns a manager with defaults applied. The refresh token
// supplied here seeds the exchange; it may be replaced by rotated values from
// later refresh responses.
func NewTokenManager(clientID, clientSecret, refreshToken string) *TokenManager {
	return &TokenManager{
		TokenURL:     defaultTokenURL,
		Timeout:      10 * time.Second,
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		refreshToken: strings.TrimSpace(refreshToken),
		clock:        time.Now,
	}
}

// Token returns a currently valid bearer token, refreshing first if none is
// cached or the cached one's expiry has passed. While the cached token is
// inside its validity window this performs no network call.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && m.clock().Before(m.expiresAt) {
		return m.accessToken, nil
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Access token missing or expired, refreshing")
	}

	if err := m.refreshLocked(ctx); err != nil {
		return "", err
	}
	return m.accessToken, nil
}

// Refresh unconditionally exchanges the stored refresh token for a new access
// token, regardless of the cached token's local expiry. The request executor
// calls this when the upstream rejects a request with 401 even though the
// local clock says the token should still be valid (clock skew, server-side
// revocation).
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

// refreshLocked performs the token exchange. Callers hold m.mu.
//
// The exchange itself is never retried here: a transport failure surfaces as
// SERVICE_UNAVAILABLE and an HTTP rejection as UNAUTHORIZED, and the caller's
// retry loop (if any) decides what happens next. Cached state is only mutated
// on success.
func (m *TokenManager) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"refresh_token": {m.refreshToken},
	}

	ctx, cancel := withTimeout(ctx, m.Timeout)
	if cancel != nil {
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.NewInternalError("failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient().Do(req)
	if err != nil {
		metrics.RecordTokenRefresh("unreachable")
		if logger := observability.ServerLogger; logger != nil {
			logger.Error("Token endpoint request failed", zap.Error(err))
		}
		return apperrors.WithDetail(
			apperrors.NewServiceUnavailableError("failed to reach HubSpot token endpoint"),
			err.Error(),
		)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordTokenRefresh("unreachable")
		return apperrors.WithDetail(
			apperrors.NewServiceUnavailableError("failed to read token response"),
			err.Error(),
		)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RecordTokenRefresh("rejected")
		if logger := observability.ServerLogger; logger != nil {
			logger.Error("Failed to refresh access token",
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(body)))
		}
		return apperrors.WithDetail(
			apperrors.NewUnauthorizedError("invalid or expired HubSpot refresh token"),
			strings.TrimSpace(string(body)),
		)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		metrics.RecordTokenRefresh("rejected")
		return apperrors.WithDetail(
			apperrors.NewServiceUnavailableError("malformed token endpoint response"),
			strings.TrimSpace(string(body)),
		)
	}

	m.accessToken = parsed.AccessToken
	if parsed.RefreshToken != "" {
		// The upstream may rotate the refresh token; keep the prior value
		// when the response omits one.
		m.refreshToken = parsed.RefreshToken
	}

	lifetime := defaultTokenLifetime
	if parsed.ExpiresIn > 0 {
		lifetime = time.Duration(parsed.ExpiresIn) * time.Second
	}
	m.expiresAt = m.clock().Add(lifetime - refreshSafetyMargin)

	metrics.RecordTokenRefresh("success")
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Refreshed HubSpot access token",
			zap.Time("expires_at", m.expiresAt))
	}

	return nil
}

func (m *TokenManager) tokenURL() string {
	if strings.TrimSpace(m.TokenURL) == "" {
		return defaultTokenURL
	}
	return m.TokenURL
}

func (m *TokenManager) httpClient() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return http.DefaultClient
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
