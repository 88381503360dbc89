package crm

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/crmlink/crmlink/internal/errors"
)

type apiCall struct {
	Method string
	Path   string
	Body   any
	Query  url.Values
}

// fakeAPI records every executor call and answers from a per-path script.
type fakeAPI struct {
	calls   []apiCall
	respond func(call apiCall) (map[string]any, error)
}

func (f *fakeAPI) Request(ctx context.Context, method, path string, body any, query url.Values) (map[string]any, error) {
	call := apiCall{Method: method, Path: path, Body: body, Query: query}
	f.calls = append(f.calls, call)
	if f.respond == nil {
		return map[string]any{}, nil
	}
	return f.respond(call)
}

func searchHit(id string) map[string]any {
	return map[string]any{
		"results": []any{
			map[string]any{"id": id, "properties": map[string]any{}},
		},
	}
}

func emptySearch() map[string]any {
	return map[string]any{"results": []any{}}
}

func requireEnvelopeCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.EnsureEnvelope(err).Code)
}

func TestVerifyContactMapsNotFound(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			return nil, apperrors.NewNotFoundError("resource not found upstream")
		},
	}
	svc := NewService(api)

	err := svc.verifyContact(context.Background(), "42")

	requireEnvelopeCode(t, err, "NOT_FOUND")
	require.Contains(t, err.Error(), "contact 42 not found in HubSpot")
}

func TestVerifyContactPassesThroughOtherErrors(t *testing.T) {
	api := &fakeAPI{
		respond: func(call apiCall) (map[string]any, error) {
			return nil, apperrors.NewServiceUnavailableError("upstream down")
		},
	}
	svc := NewService(api)

	err := svc.verifyContact(context.Background(), "42")

	requireEnvelopeCode(t, err, "SERVICE_UNAVAILABLE")
}

func TestAssociateBuildsTypedPath(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api)

	err := svc.associate(context.Background(), "deals", "77", "contacts", "42", "deal_to_contact")

	require.NoError(t, err)
	require.Len(t, api.calls, 1)
	require.Equal(t, "PUT", api.calls[0].Method)
	require.Equal(t, "/crm/v3/objects/deals/77/associations/contacts/42/deal_to_contact", api.calls[0].Path)
}

func TestSearchPayloadShape(t *testing.T) {
	payload := searchPayload("email", "EQ", "a@b.com", []string{"email"}, 1)

	groups, ok := payload["filterGroups"].([]any)
	require.True(t, ok)
	require.Len(t, groups, 1)
	filters := groups[0].(map[string]any)["filters"].([]any)
	filter := filters[0].(map[string]any)
	require.Equal(t, "email", filter["propertyName"])
	require.Equal(t, "EQ", filter["operator"])
	require.Equal(t, "a@b.com", filter["value"])
	require.Equal(t, 1, payload["limit"])
}

func TestFirstResultID(t *testing.T) {
	require.Equal(t, "9", firstResultID(searchHit("9")))
	require.Equal(t, "", firstResultID(emptySearch()))
	require.Equal(t, "", firstResultID(map[string]any{}))
	require.Equal(t, "", firstResultID(map[string]any{"results": []any{"not-an-object"}}))
}

func TestServiceErrorsIncludeIndexInMessage(t *testing.T) {
	for i := 0; i < 3; i++ {
		err := ValidateDeal(i, map[string]any{})
		require.Contains(t, err.Error(), fmt.Sprintf("index %d", i))
	}
}
