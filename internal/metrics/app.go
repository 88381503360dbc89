package metrics

import (
	"strconv"

	"github.com/crmlink/crmlink/internal/observability"
)

// Application metric names following Prometheus conventions.
const (
	UpstreamRequestsTotal = "hubspot_requests_total"
	UpstreamRetriesTotal  = "hubspot_retries_total"
	TokenRefreshTotal     = "hubspot_token_refresh_total"
	RateLimitedTotal      = "rate_limited_total"
	CRMActionsTotal       = "crm_actions_total"
)

// RecordUpstreamRequest records the terminal HTTP status of one outbound
// HubSpot attempt.
func RecordUpstreamRequest(method string, status int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			UpstreamRequestsTotal,
			1,
			map[string]string{
				"method": method,
				"status": strconv.Itoa(status),
			},
		)
	}
}

// RecordUpstreamRetry records a retried outbound attempt with the condition
// that triggered it (rate_limited, server_error, unauthorized).
func RecordUpstreamRetry(reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			UpstreamRetriesTotal,
			1,
			map[string]string{"reason": reason},
		)
	}
}

// RecordTokenRefresh records a credential refresh outcome (success, rejected,
// unreachable).
func RecordTokenRefresh(outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			TokenRefreshTotal,
			1,
			map[string]string{"outcome": outcome},
		)
	}
}

// RecordRateLimited records an inbound request rejected by the rate limiter.
func RecordRateLimited() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitedTotal,
			1,
			nil,
		)
	}
}

// RecordCRMAction records a business-level outcome (contact created, deal
// updated, ticket created).
func RecordCRMAction(object string, action string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CRMActionsTotal,
			1,
			map[string]string{
				"object": object,
				"action": action,
			},
		)
	}
}
