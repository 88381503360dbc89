package hubspot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newClientForTest wires a client against the given upstream with a token
// manager holding a pre-cached, far-future token so no exchange happens
// unless a test arranges one. Sleeps are recorded instead of taken.
func newClientForTest(upstream *httptest.Server) (*Client, *[]time.Duration) {
	tm := NewTokenManager("id", "secret", "rt")
	tm.accessToken = "test-token"
	tm.expiresAt = time.Now().Add(time.Hour)

	c := NewClient(tm, upstream.URL)
	c.HTTPClient = upstream.Client()

	slept := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return c, slept
}

func TestRequestSendsAuthenticatedJSONCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Contains(t, payload, "properties")

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1001","properties":{"email":"a@b.c"}}`))
	}))
	defer server.Close()

	c, slept := newClientForTest(server)
	result, err := c.Request(context.Background(), "POST", "/crm/v3/objects/contacts",
		map[string]any{"properties": map[string]any{"email": "a@b.c"}},
		url.Values{"limit": {"10"}})
	require.NoError(t, err)
	require.Equal(t, "1001", result["id"])
	require.Empty(t, *slept)
}

func TestRequestBacksOffOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"1001"}`))
	}))
	defer server.Close()

	c, slept := newClientForTest(server)
	result, err := c.Request(context.Background(), "GET", "/crm/v3/objects/contacts/1001", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "1001", result["id"])
	require.Equal(t, 2, attempts)
	require.Equal(t, []time.Duration{c.BackoffBase}, *slept)
}

func TestRequestBackoffDoublesAcrossRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c, slept := newClientForTest(server)
	_, err := c.Request(context.Background(), "GET", "/ping", nil, nil)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{c.BackoffBase, 2 * c.BackoffBase}, *slept)
}

func TestRequestRefreshesTokenOn401(t *testing.T) {
	refreshCalls := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"rotated-token","expires_in":1800}`))
	}))
	defer tokenServer.Close()

	var seenAuth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = append(seenAuth, r.Header.Get("Authorization"))
		if len(seenAuth) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"1001"}`))
	}))
	defer server.Close()

	c, slept := newClientForTest(server)
	c.tokens.TokenURL = tokenServer.URL
	c.tokens.HTTPClient = tokenServer.Client()

	result, err := c.Request(context.Background(), "GET", "/crm/v3/objects/contacts/1001", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "1001", result["id"])
	require.Equal(t, 1, refreshCalls)
	require.Equal(t, []string{"Bearer test-token", "Bearer rotated-token"}, seenAuth)
	// 401 consumes an attempt slot but never a backoff sleep.
	require.Empty(t, *slept)
}

func TestRequestPropagatesRefreshRejection(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"BAD_REFRESH_TOKEN"}`))
	}))
	defer tokenServer.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c, _ := newClientForTest(server)
	c.tokens.TokenURL = tokenServer.URL
	c.tokens.HTTPClient = tokenServer.Client()

	_, err := c.Request(context.Background(), "GET", "/ping", nil, nil)
	requireCode(t, err, "UNAUTHORIZED")
}

func TestRequest404FailsImmediately(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"contact does not exist"}`))
	}))
	defer server.Close()

	c, slept := newClientForTest(server)
	_, err := c.Request(context.Background(), "GET", "/crm/v3/objects/contacts/missing", nil, nil)
	envelope := requireCode(t, err, "NOT_FOUND")
	require.Contains(t, envelope.Message, "not found")
	require.Equal(t, 1, attempts)
	require.Empty(t, *slept)
}

func TestRequest4xxCarriesUpstreamMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Property \"email\" is invalid","category":"VALIDATION_ERROR"}`))
	}))
	defer server.Close()

	c, slept := newClientForTest(server)
	_, err := c.Request(context.Background(), "POST", "/crm/v3/objects/contacts", map[string]any{}, nil)
	envelope := requireCode(t, err, "INVALID_INPUT")
	require.Equal(t, `Property "email" is invalid`, envelope.Message)
	require.Empty(t, *slept)
}

func TestRequest4xxFallsBackToRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("scope missing"))
	}))
	defer server.Close()

	c, _ := newClientForTest(server)
	_, err := c.Request(context.Background(), "GET", "/ping", nil, nil)
	envelope := requireCode(t, err, "INVALID_INPUT")
	require.Equal(t, "scope missing", envelope.Message)
}

func TestRequestExhausts5xxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, slept := newClientForTest(server)
	_, err := c.Request(context.Background(), "GET", "/ping", nil, nil)
	envelope := requireCode(t, err, "SERVICE_UNAVAILABLE")
	require.Contains(t, envelope.Message, "exceeded max retries (3)")
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{c.BackoffBase, 2 * c.BackoffBase, 4 * c.BackoffBase}, *slept)
}

func TestRequestTransportFailureFailsWholeOperation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	tm := NewTokenManager("id", "secret", "rt")
	tm.accessToken = "test-token"
	tm.expiresAt = time.Now().Add(time.Hour)

	c := NewClient(tm, serverURL)
	slept := []time.Duration{}
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := c.Request(context.Background(), "GET", "/ping", nil, nil)
	envelope := requireCode(t, err, "SERVICE_UNAVAILABLE")
	require.Contains(t, envelope.Message, "failed to connect")
	require.Empty(t, slept)
}

func TestRequestUnexpectedStatusFailsImmediately(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, _ := newClientForTest(server)
	_, err := c.Request(context.Background(), "DELETE", "/ping", nil, nil)
	envelope := requireCode(t, err, "SERVICE_UNAVAILABLE")
	require.Contains(t, envelope.Message, "unexpected")
	require.Equal(t, 1, attempts)
}
