package crm

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// DefaultObjectLimit caps each per-type search when the caller does not ask
// for a specific page size.
const DefaultObjectLimit = 10

// NewObjects holds newly created objects of every type plus the paging
// cursor HubSpot returned for each search.
type NewObjects struct {
	Contacts      []map[string]any `json:"contacts"`
	ContactPaging map[string]any   `json:"contacts_paging"`
	Deals         []map[string]any `json:"deals"`
	DealPaging    map[string]any   `json:"deals_paging"`
	Tickets       []map[string]any `json:"tickets"`
	TicketPaging  map[string]any   `json:"tickets_paging"`
}

// RetrieveNewObjects searches contacts, deals, and tickets created at or
// after the given instant. Each contact is enriched with its associated
// deals. The same limit and paging cursor apply to all three searches.
func (s *Service) RetrieveNewObjects(ctx context.Context, since time.Time, limit int, after string) (*NewObjects, error) {
	if limit <= 0 {
		limit = DefaultObjectLimit
	}

	contacts, contactPaging, err := s.searchCreatedSince(ctx, searchContactsEndpoint, contactSearchProperties, since, limit, after)
	if err != nil {
		return nil, err
	}
	for _, contact := range contacts {
		id, _ := contact["id"].(string)
		if id == "" {
			continue
		}
		deals, err := s.associatedDeals(ctx, id)
		if err != nil {
			return nil, err
		}
		contact["associatedDeals"] = deals
	}

	deals, dealPaging, err := s.searchCreatedSince(ctx, searchDealsEndpoint, dealSearchProperties, since, limit, after)
	if err != nil {
		return nil, err
	}

	tickets, ticketPaging, err := s.searchCreatedSince(ctx, searchTicketsEndpoint, nil, since, limit, after)
	if err != nil {
		return nil, err
	}

	return &NewObjects{
		Contacts:      contacts,
		ContactPaging: contactPaging,
		Deals:         deals,
		DealPaging:    dealPaging,
		Tickets:       tickets,
		TicketPaging:  ticketPaging,
	}, nil
}

// searchCreatedSince runs one createdate search against the given endpoint
// and returns the result objects plus the raw paging block, if any.
func (s *Service) searchCreatedSince(ctx context.Context, endpoint string, properties []string, since time.Time, limit int, after string) ([]map[string]any, map[string]any, error) {
	// HubSpot search filters compare datetime properties against epoch millis.
	payload := searchPayload("createdate", "GTE", strconv.FormatInt(since.UnixMilli(), 10), properties, limit)
	payload["sorts"] = []any{
		map[string]any{"propertyName": "createdate", "direction": "ASCENDING"},
	}
	if after != "" {
		payload["after"] = after
	}

	response, err := s.api.Request(ctx, http.MethodPost, endpoint, payload, nil)
	if err != nil {
		return nil, nil, err
	}

	var objects []map[string]any
	if results, ok := response["results"].([]any); ok {
		for _, result := range results {
			if object, ok := result.(map[string]any); ok {
				objects = append(objects, object)
			}
		}
	}
	paging, _ := response["paging"].(map[string]any)
	return objects, paging, nil
}

// associatedDeals lists the deal associations recorded on one contact.
func (s *Service) associatedDeals(ctx context.Context, contactID string) ([]map[string]any, error) {
	response, err := s.api.Request(ctx, http.MethodGet, contactsEndpoint+"/"+contactID+"/associations/deals", nil, nil)
	if err != nil {
		if envelopeCode(err) == "NOT_FOUND" {
			return []map[string]any{}, nil
		}
		return nil, err
	}

	deals := []map[string]any{}
	if results, ok := response["results"].([]any); ok {
		for _, result := range results {
			if deal, ok := result.(map[string]any); ok {
				deals = append(deals, deal)
			}
		}
	}
	return deals, nil
}
