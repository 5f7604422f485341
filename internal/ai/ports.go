package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Upstream: внешний интеллект, не знает ни про чаты, ни про очереди.
// systemPrompt is prepended to history and never counted against its cap.
type Upstream interface {
	Complete(
		ctx context.Context,
		model string,
		systemPrompt string,
		history []Message,
	) (string, error)
}

// Message: универсальный формат диалога для AI
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}

// Endpoint is where and how the upstream is reached.
type Endpoint struct {
	APIKey   string
	BaseURL  string
	ProxyURL string
}

// EndpointSource is read on every call so settings changes apply without restart.
type EndpointSource func() Endpoint
