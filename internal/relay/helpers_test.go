package relay

import (
	"context"
	"slices"
	"sync"

	"github.com/Vovarama1992/openai-chat-relay/internal/ai"
	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
	"github.com/Vovarama1992/openai-chat-relay/internal/transcript"
)

type fakeInbound struct {
	sender string
	group  string
	admin  bool
	text   string

	mu       sync.Mutex
	replies  []Reply
	replyErr error
}

func directMessage(sender, text string) *fakeInbound {
	return &fakeInbound{sender: sender, text: text}
}

func groupMessage(group, sender, text string) *fakeInbound {
	return &fakeInbound{sender: sender, group: group, text: text}
}

func (f *fakeInbound) SenderID() string { return f.sender }
func (f *fakeInbound) GroupID() string  { return f.group }
func (f *fakeInbound) IsGroup() bool    { return f.group != "" }
func (f *fakeInbound) GroupAdmin() bool { return f.admin }
func (f *fakeInbound) Text() string     { return f.text }

func (f *fakeInbound) Reply(_ context.Context, r Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r)
	return f.replyErr
}

func (f *fakeInbound) Replies() []Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.replies)
}

func (f *fakeInbound) LastReply() Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return Reply{}
	}
	return f.replies[len(f.replies)-1]
}

// memSettings is an in-memory SettingsAdmin.
type memSettings struct {
	mu      sync.Mutex
	cfg     settings.Settings
	failing error
}

func newMemSettings(mutate ...func(*settings.Settings)) *memSettings {
	cfg := settings.Defaults()
	cfg.APIKey = "sk-test"
	cfg.EnablePrivateChat = true
	for _, fn := range mutate {
		fn(&cfg)
	}
	return &memSettings{cfg: cfg}
}

func (m *memSettings) Current() settings.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.cfg
	cfg.ClosedGroupList = slices.Clone(m.cfg.ClosedGroupList)
	cfg.AllowList = slices.Clone(m.cfg.AllowList)
	cfg.DenyList = slices.Clone(m.cfg.DenyList)
	return cfg
}

func (m *memSettings) update(fn func(*settings.Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	fn(&m.cfg)
	return nil
}

func setMembership(list []string, id string, present bool) []string {
	list = slices.DeleteFunc(slices.Clone(list), func(s string) bool { return s == id })
	if present {
		list = append(list, id)
	}
	return list
}

func (m *memSettings) SetGroupEnabled(groupID string, enabled bool) error {
	return m.update(func(s *settings.Settings) {
		s.ClosedGroupList = setMembership(s.ClosedGroupList, groupID, !enabled)
	})
}

func (m *memSettings) SetPrivateChat(enabled bool) error {
	return m.update(func(s *settings.Settings) { s.EnablePrivateChat = enabled })
}

func (m *memSettings) SetAllowListMode(enabled bool) error {
	return m.update(func(s *settings.Settings) { s.WhiteListMode = enabled })
}

func (m *memSettings) ModifyAllowList(senderID string, add bool) error {
	return m.update(func(s *settings.Settings) { s.AllowList = setMembership(s.AllowList, senderID, add) })
}

func (m *memSettings) ModifyDenyList(senderID string, add bool) error {
	return m.update(func(s *settings.Settings) { s.DenyList = setMembership(s.DenyList, senderID, add) })
}

type upstreamCall struct {
	Model        string
	SystemPrompt string
	History      []ai.Message
}

type fakeUpstream struct {
	mu    sync.Mutex
	calls []upstreamCall
	fn    func(ctx context.Context, history []ai.Message) (string, error)
}

func echoUpstream() *fakeUpstream {
	return &fakeUpstream{fn: func(_ context.Context, history []ai.Message) (string, error) {
		return "re: " + history[len(history)-1].Text, nil
	}}
}

func (f *fakeUpstream) Complete(ctx context.Context, model, systemPrompt string, history []ai.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, upstreamCall{Model: model, SystemPrompt: systemPrompt, History: slices.Clone(history)})
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, history)
}

func (f *fakeUpstream) Calls() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

type memTranscript struct {
	mu    sync.Mutex
	turns []transcript.Turn
	err   error
}

func (m *memTranscript) SaveTurn(_ context.Context, turn transcript.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.turns = append(m.turns, turn)
	return nil
}
