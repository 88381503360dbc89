package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crmlink/crmlink/internal/ratelimit"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("yaml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestRenderJSON(t *testing.T) {
	rendered, err := RenderJSON(map[string]int{"count": 3})
	require.NoError(t, err)
	require.Contains(t, rendered, "\"count\": 3")
}

func TestRateLimitTable(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rendered := RateLimitTable(60, "1m0s", []ratelimit.WindowState{
		{Key: "10.0.0.1", Count: 12, WindowStart: start},
	})
	require.Contains(t, rendered, "Rate Limits (60 per 1m0s)")
	require.Contains(t, rendered, "10.0.0.1")
	require.Contains(t, rendered, "2026-08-30T12:00:00Z")
}

func TestRateLimitTableEmpty(t *testing.T) {
	rendered := RateLimitTable(60, "1m0s", nil)
	require.Contains(t, rendered, "(no active windows)")
}
