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

func TestDiscord_SendsEmbed(t *testing.T) {
	var received struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	err := d.Send(context.Background(), "report body", 2, 3)
	require.NoError(t, err)
	require.Len(t, received.Embeds, 1)
	assert.Equal(t, "report body", received.Embeds[0].Description)
	assert.Contains(t, received.Embeds[0].Title, "(2/3)")
}

func TestDiscord_Budget(t *testing.T) {
	d := NewDiscord("https://example.invalid")
	assert.Equal(t, 4096, d.Budget())
}
