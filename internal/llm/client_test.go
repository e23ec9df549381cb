package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "generate me a plan", req.Messages[0].Content)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Day 1: ..."}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", srv.Client())
	text, err := client.GenerateText(context.Background(), "generate me a plan")
	require.NoError(t, err)
	assert.Equal(t, "Day 1: ...", text)
}

func TestClient_GenerateText_MissingAPIKey(t *testing.T) {
	client := NewClient("http://localhost:1", "", "test-model", http.DefaultClient)
	_, err := client.GenerateText(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestClient_GenerateText_APIErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		status  int
		body    string
		wantErr string
	}{
		"non-200 status": {
			status:  http.StatusTooManyRequests,
			body:    "slow down",
			wantErr: "llm api status 429",
		},
		"error in envelope": {
			status:  http.StatusOK,
			body:    `{"error":{"message":"model overloaded"}}`,
			wantErr: "model overloaded",
		},
		"no choices": {
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantErr: "no choices",
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "test-key", "test-model", srv.Client())
			_, err := client.GenerateText(context.Background(), "prompt")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
