package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGETEncodesQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/account", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("accountId"))
		assert.Equal(t, "botview", r.Header.Get("X-Client"))
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeader("X-Client", "botview"))
	resp, err := c.GET(context.Background(), "/api/account", url.Values{"accountId": {"7"}})
	require.NoError(t, err)

	var out struct {
		ID int `json:"id"`
	}
	require.NoError(t, resp.ParseJSON(&out))
	assert.Equal(t, 7, out.ID)
}

func TestPOSTSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body, 2)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	resp, err := c.POST(context.Background(), "/api/train/step", nil, []map[string]any{{"close": 1}, {"close": 2}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.String())
}

func TestPOSTWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.Empty(t, b)
		assert.Empty(t, r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).POST(context.Background(), "/api/reset", url.Values{"accountId": {"1"}}, nil)
	require.NoError(t, err)
}

func TestErrorStatusIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "account not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).GET(context.Background(), "/api/account", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "account not found")
}
