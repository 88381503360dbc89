// Package hubspot implements the outbound side of the service: the OAuth
// token lifecycle and the HTTP request executor that wraps every call to the
// HubSpot REST API with authentication, rate-limit backoff, retries, and a
// typed error taxonomy.
//
// Business packages construct their own endpoint paths and JSON property
// bags; this package only transports them.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/crmlink/crmlink/internal/errors"
	"github.com/crmlink/crmlink/internal/metrics"
	"github.com/crmlink/crmlink/internal/observability"
)

const defaultBaseURL = "https://api.hubapi.com"

// Client executes requests against the HubSpot API. Transient upstream
// conditions (429, 5xx) are retried with exponential backoff; 401 triggers a
// credential refresh and an immediate retry. Everything else fails fast with
// a typed envelope.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Timeout bounds each individual attempt. No timeout spans the whole
	// retry loop.
	Timeout time.Duration

	// MaxRetries is the attempt budget for one logical request. 401, 429 and
	// 5xx outcomes each consume one slot.
	MaxRetries int

	// BackoffBase seeds the backoff delay; the delay doubles on every
	// retryable outcome (429 and 5xx share the counter). There is no cap and
	// no jitter.
	BackoffBase time.Duration

	tokens *TokenManager
	sleep  func(time.Duration)
}

// NewClient returns a client with defaults applied.
func NewClient(tokens *TokenManager, baseURL string) *Client {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = defaultBaseURL
	}

	return &Client{
		BaseURL:     u,
		Timeout:     10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 5 * time.Second,
		tokens:      tokens,
		sleep:       time.Sleep,
	}
}

// Request performs one logical call against the HubSpot API and returns the
// decoded JSON body on success. Failures are *gofulmen errors.ErrorEnvelope
// values carrying the taxonomy code and the upstream body as detail.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (map[string]any, error) {
	if c == nil || c.tokens == nil {
		return nil, apperrors.NewInternalError("hubspot client not configured")
	}

	target := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	wait := c.BackoffBase
	if wait <= 0 {
		wait = 5 * time.Second
	}

	logger := observability.ServerLogger

	for attempt := 0; attempt < maxRetries; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		status, respBody, err := c.do(ctx, method, target, body, token)
		if err != nil {
			// The upstream was never reached, so repeating is unlikely to
			// help within the caller's latency budget. 5xx/429 retry while
			// transport errors do not; the asymmetry is intentional.
			if logger != nil {
				logger.Error("HubSpot request failed", zap.Error(err))
			}
			return nil, apperrors.WithDetail(
				apperrors.NewServiceUnavailableError("failed to connect to HubSpot API"),
				err.Error(),
			)
		}

		metrics.RecordUpstreamRequest(method, status)

		switch {
		case status == http.StatusOK || status == http.StatusCreated:
			return decodeBody(respBody)

		case status == http.StatusUnauthorized:
			// Token expired or revoked server-side; refresh and retry the
			// same request. Consumes an attempt slot but no backoff sleep.
			if logger != nil {
				logger.Warn("HubSpot responded with 401, refreshing token and retrying")
			}
			metrics.RecordUpstreamRetry("unauthorized")
			if err := c.tokens.Refresh(ctx); err != nil {
				return nil, err
			}

		case status == http.StatusTooManyRequests:
			if logger != nil {
				logger.Warn("Rate limited by HubSpot, backing off",
					zap.Duration("wait", wait))
			}
			metrics.RecordUpstreamRetry("rate_limited")
			c.wait(wait)
			wait *= 2

		case status == http.StatusNotFound:
			return nil, apperrors.WithDetail(
				apperrors.NewNotFoundError("resource not found in HubSpot"),
				strings.TrimSpace(string(respBody)),
			)

		case status >= 400 && status < 500:
			// A malformed request will not succeed on repetition.
			msg := upstreamMessage(respBody)
			if logger != nil {
				logger.Error("HubSpot client error",
					zap.Int("status", status),
					zap.String("message", msg))
			}
			return nil, apperrors.WithDetail(
				apperrors.NewInvalidInputError(msg),
				strings.TrimSpace(string(respBody)),
			)

		case status >= 500:
			if logger != nil {
				logger.Warn("HubSpot server error, retrying",
					zap.Int("status", status),
					zap.Duration("wait", wait))
			}
			metrics.RecordUpstreamRetry("server_error")
			c.wait(wait)
			wait *= 2

		default:
			if logger != nil {
				logger.Error("Unexpected HubSpot response",
					zap.Int("status", status),
					zap.String("body", string(respBody)))
			}
			return nil, apperrors.WithDetail(
				apperrors.NewServiceUnavailableError("unexpected HubSpot API response"),
				fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(respBody))),
			)
		}
	}

	return nil, apperrors.NewServiceUnavailableError(
		fmt.Sprintf("exceeded max retries (%d) for HubSpot API request", maxRetries),
	)
}

// do issues a single attempt with a bounded timeout and returns the raw
// status and body. Only transport-level failures produce an error.
func (c *Client) do(ctx context.Context, method, target string, body any, token string) (int, []byte, error) {
	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func (c *Client) wait(d time.Duration) {
	if c.sleep != nil {
		c.sleep(d)
		return
	}
	time.Sleep(d)
}

func decodeBody(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.WithDetail(
			apperrors.NewServiceUnavailableError("malformed HubSpot response body"),
			strings.TrimSpace(string(body)),
		)
	}
	return parsed, nil
}

// upstreamMessage extracts HubSpot's human-readable error message from a 4xx
// body, falling back to the raw text when the body is not JSON.
func upstreamMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Message) != "" {
		return parsed.Message
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "client error from HubSpot"
}

// IsCode reports whether err is a taxonomy envelope with the given code.
func IsCode(err error, code string) bool {
	envelope, ok := err.(*gferrors.ErrorEnvelope)
	return ok && envelope != nil && envelope.Code == code
}
