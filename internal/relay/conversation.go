package relay

import (
	"fmt"
	"strings"
)

// ConversationID identifies one independent queue, history and processing
// lock: "group:<groupID>" or "user:<senderID>".
type ConversationID string

func GroupConversation(groupID string) ConversationID {
	return ConversationID("group:" + groupID)
}

func UserConversation(senderID string) ConversationID {
	return ConversationID("user:" + senderID)
}

// ConversationOf derives the conversation an inbound message belongs to.
func ConversationOf(in Inbound) ConversationID {
	if in.IsGroup() {
		return GroupConversation(in.GroupID())
	}
	return UserConversation(in.SenderID())
}

func (id ConversationID) String() string {
	return string(id)
}

// ParseConversationID validates the "group:<id>" / "user:<id>" form.
func ParseConversationID(s string) (ConversationID, error) {
	for _, prefix := range []string{"group:", "user:"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok && rest != "" {
			return ConversationID(s), nil
		}
	}
	return "", fmt.Errorf("invalid conversation id %q", s)
}
