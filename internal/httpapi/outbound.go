package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// CallbackPayload is what the relay POSTs to the host for every reply.
type CallbackPayload struct {
	MessageID string   `json:"message_id,omitempty"`
	UserID    string   `json:"user_id"`
	GroupID   string   `json:"group_id,omitempty"`
	Text      string   `json:"text,omitempty"`
	Quote     bool     `json:"quote,omitempty"`
	Forward   *Forward `json:"forward,omitempty"`
}

type Forward struct {
	Title string   `json:"title"`
	Parts []string `json:"parts"`
}

// CallbackOutbound delivers replies to the host's callback URL.
type CallbackOutbound struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

// NewCallbackOutbound returns nil when url is empty; replies are then only
// returned in the webhook response.
func NewCallbackOutbound(url, token string) *CallbackOutbound {
	if url == "" {
		return nil
	}
	return &CallbackOutbound{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default().With(slog.String("component", "callback")),
	}
}

func (c *CallbackOutbound) Send(ctx context.Context, payload CallbackPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.DebugContext(ctx, "posting reply",
		slog.String("user_id", payload.UserID),
		slog.String("group_id", payload.GroupID),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("callback error: %s body=%s", resp.Status, respBody)
	}

	return nil
}
