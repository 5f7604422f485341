package relay

import (
	"context"

	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
	"github.com/Vovarama1992/openai-chat-relay/internal/transcript"
)

// Inbound is the narrow view of a host message event. Transports adapt
// their native events to it.
type Inbound interface {
	SenderID() string
	// GroupID is empty for direct messages.
	GroupID() string
	IsGroup() bool
	// GroupAdmin reports whether the sender owns or administers the group.
	GroupAdmin() bool
	Text() string
	// Reply delivers r to the conversation the message came from.
	Reply(ctx context.Context, r Reply) error
}

// Reply is either inline text or, when Parts is set, a forwarded bundle.
type Reply struct {
	Text string
	// Quote asks the transport to reply to the originating message.
	Quote bool

	Title string
	Parts []string
}

func (r Reply) IsBundle() bool {
	return len(r.Parts) > 0
}

func TextReply(text string) Reply {
	return Reply{Text: text}
}

func QuotedReply(text string) Reply {
	return Reply{Text: text, Quote: true}
}

func BundleReply(title string, parts ...string) Reply {
	return Reply{Title: title, Parts: parts}
}

// SettingsProvider supplies the current configuration snapshot.
type SettingsProvider interface {
	Current() settings.Settings
}

// SettingsAdmin is the mutable side used by administrative commands.
type SettingsAdmin interface {
	SettingsProvider
	SetGroupEnabled(groupID string, enabled bool) error
	SetPrivateChat(enabled bool) error
	SetAllowListMode(enabled bool) error
	ModifyAllowList(senderID string, add bool) error
	ModifyDenyList(senderID string, add bool) error
}

// Transcript is the optional audit log of relayed turns.
type Transcript interface {
	SaveTurn(ctx context.Context, turn transcript.Turn) error
}

// Mode records how a chat request was triggered.
type Mode string

const (
	ModePrefix   Mode = "prefix"
	ModeNoPrefix Mode = "no-prefix"
)
