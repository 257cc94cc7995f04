package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"trust-console/internal/resource"
	"trust-console/internal/session"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const baseURL = "https://api.test/api"

func employeesDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name: "employees", Endpoint: "employees", Envelope: "employees",
		Fields: []resource.Field{{Name: "Name"}, {Name: "City"}},
	}
}

func newTestClient(t *testing.T, desc *resource.Descriptor, tokens session.TokenSource) (*Client, *httpmock.MockTransport) {
	t.Helper()
	c := New(desc, baseURL+"/", tokens, time.Second, zap.NewNop())
	mt := httpmock.NewMockTransport()
	c.httpClient.SetTransport(mt)
	return c, mt
}

func TestList_SendsBearerTokenAndUnwrapsEnvelope(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("tok-123"))

	mt.RegisterResponder(http.MethodGet, baseURL+"/employees",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK,
				`{"employees":[{"Id":1,"Name":"A","City":"Pune"},{"Id":2,"Name":"B","City":"Mumbai"}]}`), nil
		})

	records, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Pune", records[0]["City"])
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestList_ResponseShapes(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
		body     string
		want     int
	}{
		{"bare array", "", `[{"Id":1},{"Id":2},{"Id":3}]`, 3},
		{"named field", "data", `{"data":[{"Id":1}]}`, 1},
		{"single object", "", `{"Id":1,"TempleName":"Sri"}`, 1},
		{"empty", "", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := &resource.Descriptor{Name: "x", Endpoint: "x", Envelope: tt.envelope}
			c, mt := newTestClient(t, desc, session.Static("t"))
			mt.RegisterResponder(http.MethodGet, baseURL+"/x", httpmock.NewStringResponder(http.StatusOK, tt.body))

			records, err := c.List(context.Background())
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestList_FailuresReturnEmptyListAndFetchFailed(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		status    int
		message   string
	}{
		{"network error", httpmock.NewErrorResponder(errors.New("connection reset")), 0, ""},
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, `{"message":"db down"}`), 500, "db down"},
		{"unauthorized", httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"token expired"}`), 401, "token expired"},
		{"garbage body", httpmock.NewStringResponder(http.StatusOK, `<html>oops</html>`), 200, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
			mt.RegisterResponder(http.MethodGet, baseURL+"/employees", tt.responder)

			records, err := c.List(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFetchFailed)
			assert.NotNil(t, records)
			assert.Empty(t, records)

			var re *RequestError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.status, re.Status)
			assert.Equal(t, tt.message, re.Message)
		})
	}
}

func TestList_NoTokenSkipsNetwork(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static(""))
	mt.RegisterResponder(http.MethodGet, baseURL+"/employees", httpmock.NewStringResponder(http.StatusOK, `[]`))

	records, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Empty(t, records)
	assert.Equal(t, 0, mt.GetTotalCallCount())
}

func TestGet(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodGet, baseURL+"/employees/7",
		httpmock.NewStringResponder(http.StatusOK, `{"Id":7,"Name":"G"}`))
	mt.RegisterResponder(http.MethodGet, baseURL+"/employees/8",
		httpmock.NewStringResponder(http.StatusNotFound, `{"message":"not found"}`))

	rec, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "G", rec["Name"])

	_, err = c.Get(context.Background(), 8)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, "not found", UserMessage(err))
}

func TestCreate_PostsDraftAndReturnsSavedRecord(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodPost, baseURL+"/employees",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			var draft map[string]any
			require.NoError(t, json.Unmarshal(body, &draft))
			draft["Id"] = 41
			return httpmock.NewJsonResponse(http.StatusCreated, draft)
		})

	saved, err := c.Create(context.Background(), resource.Record{"Name": "New", "City": "Nashik"})
	require.NoError(t, err)
	id, ok := saved.IDOf("")
	require.True(t, ok)
	assert.Equal(t, resource.ID(41), id)
	assert.Equal(t, "Nashik", saved["City"])
}

func TestCreate_EmptyBodyReturnsDraft(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodPost, baseURL+"/employees", httpmock.NewStringResponder(http.StatusCreated, ``))

	saved, err := c.Create(context.Background(), resource.Record{"Name": "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", saved["Name"])
}

func TestCreate_Non201IsSubmitFailedWithServerMessage(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodPost, baseURL+"/employees",
		httpmock.NewStringResponder(http.StatusOK, `{"msg":"Phone already registered"}`))

	_, err := c.Create(context.Background(), resource.Record{"Name": "Dup"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, "Phone already registered", UserMessage(err))
}

func TestCreate_NetworkErrorIsSubmitFailed(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodPost, baseURL+"/employees", httpmock.NewErrorResponder(errors.New("dial tcp: refused")))

	_, err := c.Create(context.Background(), resource.Record{"Name": "X"})
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, "Could not save the record. Please try again.", UserMessage(err))
}

func TestUpdate(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodPut, baseURL+"/employees/3", httpmock.NewStringResponder(http.StatusOK, `{}`))
	mt.RegisterResponder(http.MethodPut, baseURL+"/employees/4", httpmock.NewStringResponder(http.StatusBadRequest, `{"message":"invalid"}`))

	require.NoError(t, c.Update(context.Background(), 3, resource.Record{"Name": "E"}))

	err := c.Update(context.Background(), 4, resource.Record{"Name": "E"})
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Contains(t, err.Error(), "status 400")
}

func TestRemove(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodDelete, baseURL+"/employees/3", httpmock.NewStringResponder(http.StatusOK, ``))
	mt.RegisterResponder(http.MethodDelete, baseURL+"/employees/4", httpmock.NewStringResponder(http.StatusNotFound, ``))

	require.NoError(t, c.Remove(context.Background(), 3))

	err := c.Remove(context.Background(), 4)
	assert.ErrorIs(t, err, ErrDeleteFailed)
	assert.NotErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, "Could not delete the record. Please try again.", UserMessage(err))
}

func TestNoRetryOnFailure(t *testing.T) {
	c, mt := newTestClient(t, employeesDescriptor(), session.Static("t"))
	mt.RegisterResponder(http.MethodPost, baseURL+"/employees", httpmock.NewStringResponder(http.StatusServiceUnavailable, ``))

	_, err := c.Create(context.Background(), resource.Record{"Name": "X"})
	require.Error(t, err)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestServerMessage(t *testing.T) {
	assert.Equal(t, "a", serverMessage([]byte(`{"message":"a","error":"b"}`)))
	assert.Equal(t, "b", serverMessage([]byte(`{"error":"b"}`)))
	assert.Equal(t, "plain text", serverMessage([]byte(`plain text`)))
	assert.Equal(t, "", serverMessage([]byte(`<html></html>`)))
	assert.Equal(t, "", serverMessage([]byte(`{"code":1}`)))
}
