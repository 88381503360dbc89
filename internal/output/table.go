package output

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/crmlink/crmlink/internal/ratelimit"
)

// RateLimitTable renders active rate windows as an ASCII table.
func RateLimitTable(limit int, window string, states []ratelimit.WindowState) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Rate Limits (%d per %s)", limit, window)
	t.AppendHeader(table.Row{"Client", "Count", "Window Start"})

	if len(states) == 0 {
		t.AppendRow(table.Row{"(no active windows)", "", ""})
		return t.Render()
	}

	for _, state := range states {
		t.AppendRow(table.Row{
			state.Key,
			state.Count,
			state.WindowStart.UTC().Format(time.RFC3339),
		})
	}

	return t.Render()
}
