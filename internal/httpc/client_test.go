package httpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":"active"}`))
	}))
	defer srv.Close()

	var out struct {
		State string `json:"state"`
	}
	require.NoError(t, PostJSON(context.Background(), Client, srv.URL, &out))
	assert.Equal(t, "active", out.State)
	assert.NoError(t, PostJSON(context.Background(), Client, srv.URL, nil))
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"state":"error","error":"no detector connected"}`))
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), Client, srv.URL, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Contains(t, se.Body, "no detector connected")
}
