package crm

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/crmlink/crmlink/internal/errors"
	"github.com/crmlink/crmlink/internal/observability"
)

var contactSearchProperties = []string{"email", "firstname", "lastname", "phone"}

// requiredContactFields are mandatory on every contact payload. Unknown
// fields are passed through as HubSpot properties untouched.
var requiredContactFields = []string{"email", "firstname", "lastname", "phone"}

// ValidateContact checks the inbound contact payload. Returns the payload
// unchanged on success, or an UNPROCESSABLE_ENTITY envelope whose detail maps
// field names to problems.
func ValidateContact(data map[string]any) (map[string]any, error) {
	problems := map[string]string{}

	for _, field := range requiredContactFields {
		value, ok := data[field].(string)
		if !ok || strings.TrimSpace(value) == "" {
			problems[field] = "missing required field"
		}
	}

	if email, ok := data["email"].(string); ok && strings.TrimSpace(email) != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			problems["email"] = "not a valid email address"
		}
	}

	if len(problems) > 0 {
		return nil, apperrors.WithDetail(
			apperrors.NewUnprocessableEntityError("invalid contact data"),
			problems,
		)
	}
	return data, nil
}

// CreateOrUpdateContact creates or updates a contact keyed by email: an
// existing contact with the same email is patched, otherwise a new one is
// created. Returns the upstream contact JSON and the action taken.
func (s *Service) CreateOrUpdateContact(ctx context.Context, data map[string]any) (map[string]any, string, error) {
	valid, err := ValidateContact(data)
	if err != nil {
		return nil, "", err
	}

	email := valid["email"].(string)

	existingID, err := s.findContactByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}

	logger := observability.ServerLogger

	if existingID != "" {
		if logger != nil {
			logger.Info("Contact found by email, updating",
				zap.String("contact_id", existingID))
		}
		updated, err := s.updateContact(ctx, existingID, valid)
		if err != nil {
			return nil, "", err
		}
		recordAction("contact", ActionUpdated)
		return updated, ActionUpdated, nil
	}

	if logger != nil {
		logger.Info("No existing contact for email, creating")
	}
	created, err := s.createContact(ctx, valid)
	if err != nil {
		return nil, "", err
	}
	recordAction("contact", ActionCreated)
	return created, ActionCreated, nil
}

// findContactByEmail searches HubSpot for a contact with the given email and
// returns its id, or "" when none matches.
func (s *Service) findContactByEmail(ctx context.Context, email string) (string, error) {
	payload := searchPayload("email", "EQ", email, contactSearchProperties, 1)

	response, err := s.api.Request(ctx, http.MethodPost, searchContactsEndpoint, payload, nil)
	if err != nil {
		return "", err
	}
	return firstResultID(response), nil
}

func (s *Service) createContact(ctx context.Context, properties map[string]any) (map[string]any, error) {
	payload := map[string]any{"properties": properties}
	return s.api.Request(ctx, http.MethodPost, contactsEndpoint, payload, nil)
}

func (s *Service) updateContact(ctx context.Context, contactID string, properties map[string]any) (map[string]any, error) {
	payload := map[string]any{"properties": properties}
	return s.api.Request(ctx, http.MethodPatch, contactsEndpoint+"/"+contactID, payload, nil)
}
