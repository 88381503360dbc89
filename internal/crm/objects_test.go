package crm

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/crmlink/crmlink/internal/errors"
)

var objectsSince = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

func TestRetrieveNewObjectsSearchesEveryType(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			return emptySearch(), nil
		},
	}
	svc := NewService(api)

	result, err := svc.RetrieveNewObjects(context.Background(), objectsSince, 5, "")

	require.NoError(t, err)
	require.Empty(t, result.Contacts)
	require.Empty(t, result.Deals)
	require.Empty(t, result.Tickets)

	require.Len(t, api.calls, 3)
	require.Equal(t, searchContactsEndpoint, api.calls[0].Path)
	require.Equal(t, searchDealsEndpoint, api.calls[1].Path)
	require.Equal(t, searchTicketsEndpoint, api.calls[2].Path)
}

func TestRetrieveNewObjectsFiltersByCreatedateMillis(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			return emptySearch(), nil
		},
	}
	svc := NewService(api)

	_, err := svc.RetrieveNewObjects(context.Background(), objectsSince, 5, "")
	require.NoError(t, err)

	body := api.calls[0].Body.(map[string]any)
	groups := body["filterGroups"].([]any)
	filter := groups[0].(map[string]any)["filters"].([]any)[0].(map[string]any)
	require.Equal(t, "createdate", filter["propertyName"])
	require.Equal(t, "GTE", filter["operator"])
	require.Equal(t, strconv.FormatInt(objectsSince.UnixMilli(), 10), filter["value"])
	require.Equal(t, 5, body["limit"])
}

func TestRetrieveNewObjectsDefaultsLimit(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			return emptySearch(), nil
		},
	}
	svc := NewService(api)

	_, err := svc.RetrieveNewObjects(context.Background(), objectsSince, 0, "")
	require.NoError(t, err)

	body := api.calls[0].Body.(map[string]any)
	require.Equal(t, DefaultObjectLimit, body["limit"])
}

func TestRetrieveNewObjectsForwardsPagingCursor(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			return map[string]any{
				"results": []any{},
				"paging":  map[string]any{"next": map[string]any{"after": "4"}},
			}, nil
		},
	}
	svc := NewService(api)

	result, err := svc.RetrieveNewObjects(context.Background(), objectsSince, 5, "2")
	require.NoError(t, err)

	for _, call := range api.calls {
		body := call.Body.(map[string]any)
		require.Equal(t, "2", body["after"])
	}
	require.Equal(t, "4", result.ContactPaging["next"].(map[string]any)["after"])
	require.Equal(t, "4", result.DealPaging["next"].(map[string]any)["after"])
	require.Equal(t, "4", result.TicketPaging["next"].(map[string]any)["after"])
}

func TestRetrieveNewObjectsEnrichesContactsWithDeals(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			switch call.Path {
			case searchContactsEndpoint:
				return searchHit("7"), nil
			case contactsEndpoint + "/7/associations/deals":
				return map[string]any{"results": []any{
					map[string]any{"id": "88", "type": "contact_to_deal"},
				}}, nil
			default:
				return emptySearch(), nil
			}
		},
	}
	svc := NewService(api)

	result, err := svc.RetrieveNewObjects(context.Background(), objectsSince, 5, "")
	require.NoError(t, err)

	require.Len(t, result.Contacts, 1)
	deals := result.Contacts[0]["associatedDeals"].([]map[string]any)
	require.Len(t, deals, 1)
	require.Equal(t, "88", deals[0]["id"])
}

func TestRetrieveNewObjectsTreatsMissingAssociationsAsEmpty(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			switch call.Path {
			case searchContactsEndpoint:
				return searchHit("7"), nil
			case contactsEndpoint + "/7/associations/deals":
				return nil, apperrors.NewNotFoundError("resource not found upstream")
			default:
				return emptySearch(), nil
			}
		},
	}
	svc := NewService(api)

	result, err := svc.RetrieveNewObjects(context.Background(), objectsSince, 5, "")
	require.NoError(t, err)
	require.Empty(t, result.Contacts[0]["associatedDeals"])
}

func TestRetrieveNewObjectsPropagatesSearchFailure(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			if call.Path == searchDealsEndpoint {
				return nil, apperrors.NewServiceUnavailableError("upstream down")
			}
			return emptySearch(), nil
		},
	}
	svc := NewService(api)

	_, err := svc.RetrieveNewObjects(context.Background(), objectsSince, 5, "")
	requireEnvelopeCode(t, err, "SERVICE_UNAVAILABLE")
}
