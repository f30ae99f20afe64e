package messenger

import (
	"context"
	"dotori/app/config"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Client{
		cfg: &config.Config{
			Messenger: config.Messenger{
				BaseURL:         srv.URL,
				PageAccessToken: "page-token",
			},
		},
		httpClient: &http.Client{Timeout: time.Second},
	}
}

func TestSendText(t *testing.T) {
	var gotPath, gotToken string
	var gotBody sendRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recipient_id":"12345","message_id":"m_1"}`))
	})

	err := client.SendText(context.Background(), "12345", "배송 안내드립니다")

	require.NoError(t, err)
	assert.Equal(t, "/me/messages", gotPath)
	assert.Equal(t, "page-token", gotToken)
	assert.Equal(t, "12345", gotBody.Recipient.ID)
	assert.Equal(t, "배송 안내드립니다", gotBody.Message.Text)
}

func TestSendTextGraphError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190,"fbtrace_id":"Axxxxx"}}`))
	})

	err := client.SendText(context.Background(), "12345", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
}

func TestSendTextErrorBodyWithOKStatus(t *testing.T) {
	// The Graph API can report failure inside a 200 body.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"message":"limit reached","type":"ApiError","code":4,"fbtrace_id":"Bxxxxx"}}`))
	})

	err := client.SendText(context.Background(), "12345", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit reached")
}
