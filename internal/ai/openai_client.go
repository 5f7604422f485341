package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.7
)

type OpenAIClient struct {
	source      EndpointSource
	timeout     time.Duration
	temperature float32
	logger      *slog.Logger

	mu       sync.Mutex
	endpoint Endpoint
	client   *openai.Client
}

func NewOpenAIClient(source EndpointSource, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIClient{
		source:      source,
		timeout:     timeout,
		temperature: defaultTemperature,
		logger:      slog.Default().With(slog.String("component", "ai")),
	}
}

func (c *OpenAIClient) Complete(
	ctx context.Context,
	model string,
	systemPrompt string,
	history []Message,
) (string, error) {
	client, err := c.clientFor(c.source())
	if err != nil {
		return "", err
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)

	// system: первым, вне лимита истории
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    RoleSystem,
			Content: systemPrompt,
		})
	}

	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.DebugContext(ctx, "sending chat completion",
		slog.String("model", model),
		slog.Int("messages", len(msgs)),
	)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
	if err != nil {
		classified := Classify(err)
		c.logger.ErrorContext(ctx, "chat completion failed",
			slog.String("kind", classified.Kind.String()),
			slog.Int("status", classified.Status),
			slog.Any("err", err),
		)
		return "", classified
	}

	if len(resp.Choices) == 0 {
		c.logger.WarnContext(ctx, "empty choices", slog.String("model", model))
		return "", ErrEmptyCompletion
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.DebugContext(ctx, "chat completion done",
		slog.Int("length", len(raw)),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return raw, nil
}

// clientFor returns the cached client, rebuilding it when the endpoint changed.
func (c *OpenAIClient) clientFor(ep Endpoint) (*openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.endpoint == ep {
		return c.client, nil
	}

	cfg := openai.DefaultConfig(ep.APIKey)
	if base := NormalizeBaseURL(ep.BaseURL); base != "" {
		cfg.BaseURL = base
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if ep.ProxyURL != "" {
		proxy, err := url.Parse(ep.ProxyURL)
		if err != nil {
			return nil, &UpstreamError{Kind: KindOther, Err: fmt.Errorf("invalid proxy url %q: %w", ep.ProxyURL, err)}
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	cfg.HTTPClient = &http.Client{Transport: transport}

	c.client = openai.NewClientWithConfig(cfg)
	c.endpoint = ep
	return c.client, nil
}

// NormalizeBaseURL accepts either an API root (https://host/v1) or a full
// chat completions URL and returns the API root go-openai expects.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return strings.TrimRight(base, "/")
}
