package httpapi

import (
	"context"
	"errors"
	"sync"

	"github.com/Vovarama1992/openai-chat-relay/internal/relay"
)

// webhookMessage is the inbound webhook body.
type webhookMessage struct {
	MessageID  string `json:"message_id"`
	SenderID   string `json:"sender_id"`
	GroupID    string `json:"group_id"`
	SenderRole string `json:"sender_role"`
	Text       string `json:"text"`
}

// errNoCallback is returned for a reply produced after the webhook response
// was written when no callback URL is configured.
var errNoCallback = errors.New("webhook already answered and no callback url configured")

// webhookInbound adapts one webhook call to relay.Inbound. Replies are
// collected for the response until it is written and, when configured,
// posted to the callback.
type webhookInbound struct {
	msg      webhookMessage
	outbound *CallbackOutbound

	mu       sync.Mutex
	replies  []CallbackPayload
	answered bool
}

func (w *webhookInbound) SenderID() string { return w.msg.SenderID }
func (w *webhookInbound) GroupID() string  { return w.msg.GroupID }
func (w *webhookInbound) IsGroup() bool    { return w.msg.GroupID != "" }
func (w *webhookInbound) Text() string     { return w.msg.Text }

func (w *webhookInbound) GroupAdmin() bool {
	return w.msg.SenderRole == "owner" || w.msg.SenderRole == "admin"
}

func (w *webhookInbound) Reply(ctx context.Context, r relay.Reply) error {
	payload := CallbackPayload{
		MessageID: w.msg.MessageID,
		UserID:    w.msg.SenderID,
		GroupID:   w.msg.GroupID,
	}
	if r.IsBundle() {
		payload.Forward = &Forward{Title: r.Title, Parts: r.Parts}
	} else {
		payload.Text = r.Text
		payload.Quote = r.Quote
	}

	w.mu.Lock()
	answered := w.answered
	if !answered {
		w.replies = append(w.replies, payload)
	}
	w.mu.Unlock()

	if w.outbound == nil {
		if answered {
			return errNoCallback
		}
		return nil
	}
	return w.outbound.Send(ctx, payload)
}

// finish returns the collected replies; later replies only go to the callback.
func (w *webhookInbound) finish() []CallbackPayload {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.answered = true
	out := make([]CallbackPayload, len(w.replies))
	copy(out, w.replies)
	return out
}
