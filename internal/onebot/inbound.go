package onebot

import (
	"context"
	"strconv"

	"github.com/Vovarama1992/openai-chat-relay/internal/relay"
)

// inbound adapts a OneBot message event to relay.Inbound.
type inbound struct {
	client *Client
	event  frame
}

func (i *inbound) SenderID() string {
	return strconv.FormatInt(i.event.UserID, 10)
}

func (i *inbound) GroupID() string {
	if !i.event.isGroup() {
		return ""
	}
	return strconv.FormatInt(i.event.GroupID, 10)
}

func (i *inbound) IsGroup() bool {
	return i.event.isGroup()
}

func (i *inbound) GroupAdmin() bool {
	role := i.event.Sender.Role
	return role == "owner" || role == "admin"
}

func (i *inbound) Text() string {
	return i.event.text()
}

func (i *inbound) Reply(ctx context.Context, r relay.Reply) error {
	if r.IsBundle() {
		return i.client.sendForward(ctx, i.GroupID(), i.SenderID(), i.event.SelfID, r.Title, r.Parts)
	}

	message := []segment{textSegment(r.Text)}
	if r.Quote && i.event.MessageID != 0 {
		message = append([]segment{replySegment(i.event.MessageID)}, message...)
	}
	return i.client.sendMessage(ctx, i.GroupID(), i.SenderID(), message)
}
