package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_GenericPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhook("enterprise", srv.URL)
	err := ch.Send(context.Background(), "hello", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "hello", received["content"])
}

func TestWebhook_EnterpriseChatEnvelope(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewEnterpriseChatWebhook("feishu", srv.URL, 4096, "text")
	err := ch.Send(context.Background(), "hello", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "text", received["msg_type"])
	assert.Equal(t, 4096, ch.Budget())
}

func TestWebhook_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewWebhook("enterprise", srv.URL)
	err := ch.Send(context.Background(), "hello", 1, 1)
	assert.Error(t, err)
}
