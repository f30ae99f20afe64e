package messenger

import (
	"bytes"
	"context"
	"dotori/app/config"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const sendTimeout = 10 * time.Second

// Client delivers replies through the Graph API send endpoint.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

type sendRequest struct {
	Recipient recipient `json:"recipient"`
	Message   message   `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type message struct {
	Text string `json:"text"`
}

type sendResponse struct {
	RecipientID string      `json:"recipient_id"`
	MessageID   string      `json:"message_id"`
	Error       *graphError `json:"error"`
}

type graphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func NewClient(di *do.Injector) (*Client, error) {
	return &Client{
		cfg: do.MustInvoke[*config.Config](di),
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
	}, nil
}

// SendText posts a text message to the sender of an inbound event.
// Failed sends are not retried, the platform offers no recovery for
// them anyway.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	payload, err := json.Marshal(sendRequest{
		Recipient: recipient{ID: recipientID},
		Message:   message{Text: text},
	})
	if err != nil {
		return oops.Errorf("failed to marshal send request: %w", err)
	}

	endpoint := c.cfg.Messenger.BaseURL + "/me/messages?access_token=" +
		url.QueryEscape(c.cfg.Messenger.PageAccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return oops.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return oops.Errorf("failed to call send endpoint: %w", err)
	}
	defer resp.Body.Close()

	var result sendResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return oops.Errorf("failed to decode send response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || result.Error != nil {
		if result.Error != nil {
			return oops.
				With("type", result.Error.Type).
				With("code", result.Error.Code).
				With("fbtrace_id", result.Error.FBTraceID).
				Errorf("send rejected: %s", result.Error.Message)
		}

		return oops.Errorf("send rejected with status %d", resp.StatusCode)
	}

	slog.Debug("Message delivered",
		"recipient", recipientID,
		"message_id", result.MessageID)

	return nil
}
