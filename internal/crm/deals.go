package crm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/crmlink/crmlink/internal/errors"
)

var dealSearchProperties = []string{"dealname", "amount", "dealstage"}

// DealResult is the caller-facing shape for one processed deal.
type DealResult struct {
	Action string         `json:"action"`
	Deal   map[string]any `json:"deal"`
}

// ValidateDeal checks one deal payload. dealname, amount, and dealstage are
// mandatory; amount must be numeric.
func ValidateDeal(index int, data map[string]any) error {
	problems := map[string]string{}

	if name, ok := data["dealname"].(string); !ok || strings.TrimSpace(name) == "" {
		problems["dealname"] = "missing required field"
	}
	if stage, ok := data["dealstage"].(string); !ok || strings.TrimSpace(stage) == "" {
		problems["dealstage"] = "missing required field"
	}
	switch amount := data["amount"].(type) {
	case float64, int, int64:
	case string:
		if strings.TrimSpace(amount) == "" {
			problems["amount"] = "missing required field"
		}
	default:
		problems["amount"] = "missing required field"
	}

	if len(problems) > 0 {
		return apperrors.WithDetail(
			apperrors.NewUnprocessableEntityError(fmt.Sprintf("invalid deal data at index %d", index)),
			problems,
		)
	}
	return nil
}

// CreateOrUpdateDeals creates or updates each deal (keyed by dealname) and
// associates newly created deals with the given contact. The contact must
// exist; a missing contact fails the whole batch before any deal is touched.
func (s *Service) CreateOrUpdateDeals(ctx context.Context, contactID string, deals []map[string]any) ([]DealResult, error) {
	for i, deal := range deals {
		if err := ValidateDeal(i, deal); err != nil {
			return nil, err
		}
	}

	if err := s.verifyContact(ctx, contactID); err != nil {
		return nil, err
	}

	results := make([]DealResult, 0, len(deals))
	for _, deal := range deals {
		name := deal["dealname"].(string)

		existingID, err := s.findDealByName(ctx, name)
		if err != nil {
			return nil, err
		}

		payload := map[string]any{"properties": deal}

		if existingID != "" {
			updated, err := s.api.Request(ctx, http.MethodPatch, dealsEndpoint+"/"+existingID, payload, nil)
			if err != nil {
				return nil, err
			}
			recordAction("deal", ActionUpdated)
			results = append(results, DealResult{Action: ActionUpdated, Deal: updated})
			continue
		}

		created, err := s.api.Request(ctx, http.MethodPost, dealsEndpoint, payload, nil)
		if err != nil {
			return nil, err
		}

		dealID, _ := created["id"].(string)
		if dealID != "" {
			if err := s.associate(ctx, "deals", dealID, "contacts", contactID, "deal_to_contact"); err != nil {
				return nil, err
			}
		}

		recordAction("deal", ActionCreated)
		results = append(results, DealResult{Action: ActionCreated, Deal: created})
	}

	return results, nil
}

func (s *Service) findDealByName(ctx context.Context, name string) (string, error) {
	payload := searchPayload("dealname", "EQ", name, dealSearchProperties, 1)

	response, err := s.api.Request(ctx, http.MethodPost, searchDealsEndpoint, payload, nil)
	if err != nil {
		return "", err
	}
	return firstResultID(response), nil
}
