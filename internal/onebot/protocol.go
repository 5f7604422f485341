package onebot

import (
	"encoding/json"
	"strconv"
	"strings"
)

// frame is any message read from the implementation: either an event
// (PostType set) or the response to one of our actions (Echo set).
type frame struct {
	PostType string `json:"post_type"`

	// message event
	MessageType string          `json:"message_type"`
	MessageID   int64           `json:"message_id"`
	SelfID      int64           `json:"self_id"`
	UserID      int64           `json:"user_id"`
	GroupID     int64           `json:"group_id"`
	Message     json.RawMessage `json:"message"`
	RawMessage  string          `json:"raw_message"`
	Sender      sender          `json:"sender"`

	// action response
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Msg     string          `json:"msg"`
	Wording string          `json:"wording"`
	Echo    string          `json:"echo"`
	Data    json.RawMessage `json:"data"`
}

type sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

type segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type action struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

type forwardNode struct {
	Type string          `json:"type"`
	Data forwardNodeData `json:"data"`
}

type forwardNodeData struct {
	Name    string    `json:"name"`
	UIN     string    `json:"uin"`
	Content []segment `json:"content"`
}

func (f frame) isResponse() bool {
	return f.PostType == "" && f.Echo != ""
}

func (f frame) isMessage() bool {
	return f.PostType == "message"
}

func (f frame) isGroup() bool {
	return f.MessageType == "group"
}

// text joins the text segments of the message, falling back to
// raw_message for string-format events.
func (f frame) text() string {
	trimmed := strings.TrimSpace(string(f.Message))
	if !strings.HasPrefix(trimmed, "[") {
		return f.RawMessage
	}

	var segs []segment
	if err := json.Unmarshal(f.Message, &segs); err != nil {
		return f.RawMessage
	}

	var b strings.Builder
	for _, s := range segs {
		if s.Type != "text" {
			continue
		}
		if t, ok := s.Data["text"].(string); ok {
			b.WriteString(t)
		}
	}
	return b.String()
}

func textSegment(text string) segment {
	return segment{Type: "text", Data: map[string]any{"text": text}}
}

func replySegment(messageID int64) segment {
	return segment{Type: "reply", Data: map[string]any{"id": strconv.FormatInt(messageID, 10)}}
}

// numericID sends ids as numbers when they parse, as most implementations expect.
func numericID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
