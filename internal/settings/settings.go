// Package settings holds the relay's live configuration.
//
// Settings are stored in a single YAML file whose keys match the plugin's
// historical config.yaml, so an existing file can be reused as is. The file
// is read once at startup, merged over the defaults and written back; after
// that every mutation goes through Store and is persisted immediately.
package settings

import (
	"slices"
	"strings"
	"time"
)

const (
	DefaultBaseURL      = "https://api.openai.com/v1/chat/completions"
	DefaultModel        = "gpt-3.5-turbo"
	DefaultPrefix       = "#chat"
	DefaultResetCmd     = "#reset"
	DefaultHelpCmd      = "#chat help"
	DefaultSystemPrompt = "You are a helpful AI assistant."

	DefaultHistoryCount    = 10
	DefaultForwardMsgLimit = 300
	DefaultRateLimitWindow = 60 // minutes
	DefaultRateLimitCount  = 10
)

// Settings is one immutable snapshot of the configuration.
type Settings struct {
	// APIKey is the upstream credential. An empty key makes every chat
	// request fail with a configuration error.
	APIKey string `yaml:"apiKey"`

	// UseCustomURL enables BaseURL; otherwise DefaultBaseURL is used.
	UseCustomURL bool   `yaml:"useCustomUrl"`
	BaseURL      string `yaml:"baseUrl"`

	// ProxyURL is an optional HTTP proxy for upstream calls.
	ProxyURL string `yaml:"proxyUrl"`

	Model             string `yaml:"model"`
	EnableCustomModel bool   `yaml:"enableCustomModel"`
	CustomModelName   string `yaml:"customModelName"`

	// Prefix triggers a chat request, e.g. "#chat how are you".
	Prefix string `yaml:"prefix"`

	// ResetCmd clears the conversation history.
	ResetCmd string `yaml:"resetCmd"`
	HelpCmd  string `yaml:"helpCmd"`

	// HistoryCount caps the rolling history per conversation.
	HistoryCount int    `yaml:"historyCount"`
	SystemPrompt string `yaml:"systemPrompt"`

	// EnableForwardMsg turns replies longer than ForwardMsgLimit
	// characters into a forwarded bundle.
	EnableForwardMsg bool `yaml:"enableForwardMsg"`
	ForwardMsgLimit  int  `yaml:"forwardMsgLimit"`

	// ClosedGroupList holds groups where the relay is switched off.
	ClosedGroupList []string `yaml:"closedGroupList"`

	EnablePrivateChat        bool `yaml:"enablePrivateChat"`
	PrivateChatWithoutPrefix bool `yaml:"privateChatWithoutPrefix"`

	// WhiteListMode selects the allow-list for direct messages; otherwise
	// the deny-list applies.
	WhiteListMode bool     `yaml:"whiteListMode"`
	AllowList     []string `yaml:"whitelistedQQList"`
	DenyList      []string `yaml:"blacklistedQQList"`

	ForbiddenWords []string `yaml:"forbiddenWords"`
	StripMarkdown  bool     `yaml:"stripMarkdown"`

	EnableSequential bool `yaml:"enableSequential"`

	EnableRateLimit bool `yaml:"enableRateLimit"`
	RateLimitWindow int  `yaml:"rateLimitWindow"` // minutes
	RateLimitCount  int  `yaml:"rateLimitCount"`

	DebugMode bool `yaml:"debugMode"`

	// MasterIDs may run the administrative chat commands.
	MasterIDs []string `yaml:"masterIDs"`
}

// Defaults returns the settings used for keys missing from the file.
func Defaults() Settings {
	return Settings{
		BaseURL:         DefaultBaseURL,
		Model:           DefaultModel,
		Prefix:          DefaultPrefix,
		ResetCmd:        DefaultResetCmd,
		HelpCmd:         DefaultHelpCmd,
		HistoryCount:    DefaultHistoryCount,
		SystemPrompt:    DefaultSystemPrompt,
		ForwardMsgLimit: DefaultForwardMsgLimit,
		RateLimitWindow: DefaultRateLimitWindow,
		RateLimitCount:  DefaultRateLimitCount,
		ClosedGroupList: []string{},
	}
}

// RateLimit is the per-sender sliding window configuration.
type RateLimit struct {
	Enabled bool
	Window  time.Duration
	Max     int
}

func (s Settings) RateLimit() RateLimit {
	window := s.RateLimitWindow
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	limit := s.RateLimitCount
	if limit <= 0 {
		limit = DefaultRateLimitCount
	}
	return RateLimit{
		Enabled: s.EnableRateLimit,
		Window:  time.Duration(window) * time.Minute,
		Max:     limit,
	}
}

// EffectiveModel resolves the custom model override.
func (s Settings) EffectiveModel() string {
	if s.EnableCustomModel && s.CustomModelName != "" {
		return s.CustomModelName
	}
	if s.Model == "" {
		return DefaultModel
	}
	return s.Model
}

func (s Settings) EffectiveBaseURL() string {
	if !s.UseCustomURL || s.BaseURL == "" {
		return DefaultBaseURL
	}
	return s.BaseURL
}

func (s Settings) HistoryLimit() int {
	if s.HistoryCount <= 0 {
		return DefaultHistoryCount
	}
	return s.HistoryCount
}

func (s Settings) ForwardLimit() int {
	if s.ForwardMsgLimit <= 0 {
		return DefaultForwardMsgLimit
	}
	return s.ForwardMsgLimit
}

func (s Settings) Allowed(senderID string) bool {
	return slices.Contains(s.AllowList, senderID)
}

func (s Settings) Denied(senderID string) bool {
	return slices.Contains(s.DenyList, senderID)
}

func (s Settings) GroupDisabled(groupID string) bool {
	return slices.Contains(s.ClosedGroupList, groupID)
}

func (s Settings) IsMaster(senderID string) bool {
	return slices.Contains(s.MasterIDs, senderID)
}

// ForbiddenWordIn returns the first configured forbidden word contained in
// text. Matching is a case-sensitive substring test.
func (s Settings) ForbiddenWordIn(text string) (string, bool) {
	for _, word := range s.ForbiddenWords {
		if word == "" {
			continue
		}
		if strings.Contains(text, word) {
			return word, true
		}
	}
	return "", false
}

// Redacted returns a copy safe to expose over the admin API.
func (s Settings) Redacted() Settings {
	out := s.clone()
	if out.APIKey != "" {
		out.APIKey = "***"
	}
	return out
}

func (s Settings) clone() Settings {
	out := s
	out.ClosedGroupList = slices.Clone(s.ClosedGroupList)
	out.AllowList = slices.Clone(s.AllowList)
	out.DenyList = slices.Clone(s.DenyList)
	out.ForbiddenWords = slices.Clone(s.ForbiddenWords)
	out.MasterIDs = slices.Clone(s.MasterIDs)
	return out
}
