package studio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionJSON = `{
	"Id": "123-456-789",
	"Name": "Steel Review",
	"Description": "Phase 2 markups",
	"Status": "Active",
	"Restricted": true,
	"Created": "2025-05-01T09:30:00Z",
	"SessionEndDate": "2025-12-31T00:00:00Z",
	"InviteUrl": "https://studio.bluebeam.com/join/123-456-789",
	"Version": 4
}`

func TestCreateSession(t *testing.T) {
	var received map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/publicapi/v1/sessions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(testSessionJSON))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	restricted := true
	session, err := client.CreateSession(context.Background(), "Steel Review", CreateSessionOptions{
		Description: "Phase 2 markups",
		Restricted:  &restricted,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"Name":        "Steel Review",
		"Description": "Phase 2 markups",
		"Restricted":  true,
	}, received)

	assert.Equal(t, "123-456-789", session.ID)
	assert.Equal(t, "Steel Review", session.Name)
	assert.True(t, session.Restricted)
	assert.Equal(t, time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC), session.Created)
	assert.Equal(t, 4, session.Version)
}

func TestCreateSession_OmitsUnsetOptions(t *testing.T) {
	var received map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(testSessionJSON))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	_, err := client.CreateSession(context.Background(), "Bare", CreateSessionOptions{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"Name": "Bare"}, received,
		"unset Description and Restricted must not appear in the request")
}

func TestListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publicapi/v1/sessions", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Sessions": [` + testSessionJSON + `], "TotalCount": 11}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	page, err := client.ListSessions(context.Background(), 2, 10)
	require.NoError(t, err)

	assert.Equal(t, 11, page.TotalCount)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.PageSize)
	require.Len(t, page.Sessions, 1)
	assert.Equal(t, "Steel Review", page.Sessions[0].Name)
}

func TestListSessions_Defaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("pageSize"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Sessions": [], "TotalCount": 0}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	page, err := client.ListSessions(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Sessions)
	assert.Equal(t, defaultPage, page.Page)
	assert.Equal(t, defaultPageSize, page.PageSize)
}

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publicapi/v1/sessions/123-456-789", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testSessionJSON))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	session, err := client.GetSession(context.Background(), "123-456-789")
	require.NoError(t, err)
	assert.Equal(t, "123-456-789", session.ID)
	assert.Equal(t, "https://studio.bluebeam.com/join/123-456-789", session.InviteURL)
}

func TestGetSession_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	_, err := client.GetSession(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/publicapi/v1/sessions/123-456-789", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	err := client.DeleteSession(context.Background(), "123-456-789")
	require.NoError(t, err)
}

func TestSessionResponse_MalformedTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Id": "s1", "Name": "x", "Created": "yesterday-ish"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	session, err := client.GetSession(context.Background(), "s1")
	require.NoError(t, err, "a bad timestamp must not fail the whole decode")
	assert.True(t, session.Created.IsZero())
}
