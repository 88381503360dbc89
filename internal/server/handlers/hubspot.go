package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/crmlink/crmlink/internal/crm"
	apperrors "github.com/crmlink/crmlink/internal/errors"
)

// HubSpotHandler exposes the CRM flows over HTTP.
type HubSpotHandler struct {
	service *crm.Service
}

// NewHubSpotHandler returns a handler bound to the given CRM service.
func NewHubSpotHandler(service *crm.Service) *HubSpotHandler {
	return &HubSpotHandler{service: service}
}

// dealsRequest is the inbound body for the deals endpoint.
type dealsRequest struct {
	ContactID string           `json:"contactId"`
	Deals     []map[string]any `json:"deals"`
}

// ticketsRequest is the inbound body for the tickets endpoint.
type ticketsRequest struct {
	ContactID string           `json:"contactId"`
	Tickets   []map[string]any `json:"tickets"`
}

// Welcome answers the API root with a short service banner.
func (h *HubSpotHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	respondWithSuccess(w, http.StatusOK, "HubSpot CRM integration API", map[string]any{
		"endpoints": []string{
			"POST /api/v1/hubspot/contact",
			"POST /api/v1/hubspot/deals",
			"POST /api/v1/hubspot/tickets",
			"GET /api/v1/hubspot/new-crm-objects",
		},
	})
}

// CreateOrUpdateContact handles POST /contact. Creation answers 201,
// updates answer 200.
func (h *HubSpotHandler) CreateOrUpdateContact(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := decodeJSONBody(r, &data); err != nil {
		respondWithError(w, r, err)
		return
	}
	if len(data) == 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("No JSON payload provided."))
		return
	}

	contact, action, err := h.service.CreateOrUpdateContact(r.Context(), data)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if action == crm.ActionCreated {
		respondWithSuccess(w, http.StatusCreated, "Contact created successfully.", contact)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Contact updated successfully.", contact)
}

// CreateOrUpdateDeals handles POST /deals.
func (h *HubSpotHandler) CreateOrUpdateDeals(w http.ResponseWriter, r *http.Request) {
	var body dealsRequest
	if err := decodeJSONBody(r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	if body.ContactID == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("contactId is required."))
		return
	}
	if len(body.Deals) == 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("At least one deal object is required in 'deals' array."))
		return
	}

	results, err := h.service.CreateOrUpdateDeals(r.Context(), body.ContactID, body.Deals)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, "Deals processed successfully.", results)
}

// CreateTickets handles POST /tickets.
func (h *HubSpotHandler) CreateTickets(w http.ResponseWriter, r *http.Request) {
	var body ticketsRequest
	if err := decodeJSONBody(r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	if body.ContactID == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("contactId is required."))
		return
	}
	if len(body.Tickets) == 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("At least one ticket object is required in 'tickets' array."))
		return
	}

	results, err := h.service.CreateTickets(r.Context(), body.ContactID, body.Tickets)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, "Tickets created successfully.", results)
}

// RetrieveNewObjects handles GET /new-crm-objects. The since parameter is
// required RFC 3339; limit and after are optional.
func (h *HubSpotHandler) RetrieveNewObjects(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sinceRaw := query.Get("since")
	if sinceRaw == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError(
			"Query parameter 'since' is required, e.g. ?since=YYYY-MM-DDT00:00:00Z"))
		return
	}
	since, err := time.Parse(time.RFC3339, sinceRaw)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError(
			"Query parameter 'since' must be an RFC 3339 timestamp, e.g. 2026-03-20T00:00:00Z"))
		return
	}

	limit := crm.DefaultObjectLimit
	if limitRaw := query.Get("limit"); limitRaw != "" {
		limit, err = strconv.Atoi(limitRaw)
		if err != nil || limit <= 0 {
			respondWithError(w, r, apperrors.NewInvalidInputError(
				"Query parameter 'limit' must be a positive integer"))
			return
		}
	}

	result, err := h.service.RetrieveNewObjects(r.Context(), since, limit, query.Get("after"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, "Retrieved newly created CRM objects.", result)
}

// decodeJSONBody decodes the request body into target, rejecting empty and
// malformed payloads with INVALID_INPUT.
func decodeJSONBody(r *http.Request, target any) error {
	err := json.NewDecoder(r.Body).Decode(target)
	if errors.Is(err, io.EOF) {
		return apperrors.NewInvalidInputError("No JSON payload provided.")
	}
	if err != nil {
		return apperrors.WithDetail(
			apperrors.NewInvalidInputError("Request body is not valid JSON."),
			err.Error(),
		)
	}
	return nil
}
