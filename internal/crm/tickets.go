package crm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/crmlink/crmlink/internal/errors"
)

// ticketCategories mirrors the hs_ticket_category option set configured in
// the HubSpot portal.
var ticketCategories = map[string]bool{
	"general_inquiry": true,
	"technical_issue": true,
	"billing":         true,
	"service_request": true,
	"meeting":         true,
}

var requiredTicketFields = []string{
	"subject",
	"description",
	"category",
	"pipeline",
	"hs_ticket_priority",
	"hs_pipeline_stage",
}

// TicketResult is the caller-facing shape for one created ticket.
type TicketResult struct {
	Action string         `json:"action"`
	Ticket map[string]any `json:"ticket"`
}

// ValidateTicket checks one ticket payload, including the category enum.
func ValidateTicket(index int, data map[string]any) error {
	problems := map[string]string{}

	for _, field := range requiredTicketFields {
		value, ok := data[field].(string)
		if !ok || strings.TrimSpace(value) == "" {
			problems[field] = "missing required field"
		}
	}

	if category, ok := data["category"].(string); ok && strings.TrimSpace(category) != "" {
		if !ticketCategories[category] {
			problems["category"] = "not a recognized ticket category"
		}
	}

	if len(problems) > 0 {
		return apperrors.WithDetail(
			apperrors.NewUnprocessableEntityError(fmt.Sprintf("invalid ticket data at index %d", index)),
			problems,
		)
	}
	return nil
}

// CreateTickets creates every ticket in the batch and associates each with
// the given contact. Tickets are never deduplicated; each call creates new
// objects. The contact must exist before any ticket is created.
func (s *Service) CreateTickets(ctx context.Context, contactID string, tickets []map[string]any) ([]TicketResult, error) {
	for i, ticket := range tickets {
		if err := ValidateTicket(i, ticket); err != nil {
			return nil, err
		}
	}

	if err := s.verifyContact(ctx, contactID); err != nil {
		return nil, err
	}

	results := make([]TicketResult, 0, len(tickets))
	for _, ticket := range tickets {
		properties := map[string]any{}
		for key, value := range ticket {
			properties[key] = value
		}
		// HubSpot stores the category under its namespaced property name.
		delete(properties, "category")
		properties["hs_ticket_category"] = ticket["category"]

		created, err := s.api.Request(ctx, http.MethodPost, ticketsEndpoint, map[string]any{"properties": properties}, nil)
		if err != nil {
			return nil, err
		}

		ticketID, _ := created["id"].(string)
		if ticketID != "" {
			if err := s.associate(ctx, "tickets", ticketID, "contacts", contactID, "ticket_to_contact"); err != nil {
				return nil, err
			}
		}

		recordAction("ticket", ActionCreated)
		results = append(results, TicketResult{Action: ActionCreated, Ticket: created})
	}

	return results, nil
}
