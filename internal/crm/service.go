// Package crm contains the business glue between the REST surface and the
// HubSpot request executor: it builds object payloads, runs the
// search-then-create-or-update flows, and wires associations between objects.
package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	apperrors "github.com/crmlink/crmlink/internal/errors"
	"github.com/crmlink/crmlink/internal/metrics"
	"github.com/crmlink/crmlink/internal/observability"
)

const (
	contactsEndpoint       = "/crm/v3/objects/contacts"
	searchContactsEndpoint = "/crm/v3/objects/contacts/search"
	dealsEndpoint          = "/crm/v3/objects/deals"
	searchDealsEndpoint    = "/crm/v3/objects/deals/search"
	ticketsEndpoint        = "/crm/v3/objects/tickets"
	searchTicketsEndpoint  = "/crm/v3/objects/tickets/search"
)

// Actions reported back to callers.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// API is the outbound executor surface the service depends on. Satisfied by
// *hubspot.Client.
type API interface {
	Request(ctx context.Context, method, path string, body any, query url.Values) (map[string]any, error)
}

// Service implements the contact/deal/ticket flows on top of the executor.
type Service struct {
	api API
}

// NewService returns a service bound to the given executor.
func NewService(api API) *Service {
	return &Service{api: api}
}

// searchPayload builds a HubSpot search body with a single exact-match filter.
func searchPayload(property, operator string, value any, properties []string, limit int) map[string]any {
	return map[string]any{
		"filterGroups": []any{
			map[string]any{
				"filters": []any{
					map[string]any{
						"propertyName": property,
						"operator":     operator,
						"value":        value,
					},
				},
			},
		},
		"properties": properties,
		"limit":      limit,
	}
}

// firstResultID extracts the id of the first search hit, or "" when the
// search returned nothing.
func firstResultID(response map[string]any) string {
	results, ok := response["results"].([]any)
	if !ok || len(results) == 0 {
		return ""
	}
	first, ok := results[0].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := first["id"].(string)
	return id
}

// verifyContact confirms the referenced contact exists upstream. A 404 from
// the executor surfaces as NOT_FOUND with a contact-specific message.
func (s *Service) verifyContact(ctx context.Context, contactID string) error {
	_, err := s.api.Request(ctx, http.MethodGet, contactsEndpoint+"/"+contactID, nil, nil)
	if err == nil {
		return nil
	}
	if envelopeCode(err) == "NOT_FOUND" {
		return apperrors.WithDetail(
			apperrors.NewNotFoundError(fmt.Sprintf("contact %s not found in HubSpot", contactID)),
			err.Error(),
		)
	}
	return err
}

// associate links two typed objects, e.g. a deal to its contact.
func (s *Service) associate(ctx context.Context, fromType, fromID, toType, toID, associationType string) error {
	path := fmt.Sprintf("/crm/v3/objects/%s/%s/associations/%s/%s/%s",
		fromType, fromID, toType, toID, associationType)
	_, err := s.api.Request(ctx, http.MethodPut, path, nil, nil)
	if err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Error("Failed to create association",
			zap.String("from", fromType+"/"+fromID),
			zap.String("to", toType+"/"+toID),
			zap.Error(err))
	}
	return err
}

func envelopeCode(err error) string {
	envelope := apperrors.EnsureEnvelope(err)
	return envelope.Code
}

func recordAction(object, action string) {
	metrics.RecordCRMAction(object, action)
}
