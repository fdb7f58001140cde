package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintry/sommelier/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.ChatBaseURL = srv.URL
	cfg.ChatAPIKey = "test-key"

	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestClient_Complete(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(0), req["temperature"])

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"picks":[]}`}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	got, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"picks":[]}`, got)
}

func TestClient_Complete_NoChoices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClient_Complete_APIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.ChatAPIKey = ""

	_, err := NewClient(cfg)
	assert.Error(t, err)
}
