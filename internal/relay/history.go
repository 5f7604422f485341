package relay

import (
	"sync"

	"github.com/Vovarama1992/openai-chat-relay/internal/ai"
	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
)

type Role string

const (
	RoleUser      Role = ai.RoleUser
	RoleAssistant Role = ai.RoleAssistant
)

// HistoryTurn is one entry of a conversation's rolling history.
type HistoryTurn struct {
	Role    Role
	Content string
}

// TurnID names an appended turn so it can be rolled back exactly.
type TurnID uint64

type storedTurn struct {
	id TurnID
	HistoryTurn
}

// HistoryStore keeps a bounded, oldest-first log per conversation.
// Every method is atomic with respect to the others.
type HistoryStore struct {
	mu     sync.Mutex
	logs   map[ConversationID][]storedTurn
	nextID TurnID
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		logs: make(map[ConversationID][]storedTurn),
	}
}

// AppendUser records a user turn and returns its id for RollbackUser.
func (h *HistoryStore) AppendUser(id ConversationID, text string, limit int) TurnID {
	return h.append(id, RoleUser, text, limit)
}

func (h *HistoryStore) AppendAssistant(id ConversationID, text string, limit int) TurnID {
	return h.append(id, RoleAssistant, text, limit)
}

// RollbackUser removes the user turn appended as turnID. It reports false
// when the turn is gone already, e.g. truncated or reset in between.
func (h *HistoryStore) RollbackUser(id ConversationID, turnID TurnID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.logs[id]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].id == turnID && log[i].Role == RoleUser {
			h.logs[id] = append(log[:i], log[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the newest limit turns, oldest first.
func (h *HistoryStore) Snapshot(id ConversationID, limit int) []HistoryTurn {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.logs[id]
	if limit = normalizeLimit(limit); len(log) > limit {
		log = log[len(log)-limit:]
	}

	out := make([]HistoryTurn, len(log))
	for i, t := range log {
		out[i] = t.HistoryTurn
	}
	return out
}

// Reset forgets the conversation's history.
func (h *HistoryStore) Reset(id ConversationID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.logs, id)
}

func (h *HistoryStore) append(id ConversationID, role Role, text string, limit int) TurnID {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	log := append(h.logs[id], storedTurn{
		id:          h.nextID,
		HistoryTurn: HistoryTurn{Role: role, Content: text},
	})

	// sliding window: drop oldest first
	if limit = normalizeLimit(limit); len(log) > limit {
		trimmed := make([]storedTurn, limit)
		copy(trimmed, log[len(log)-limit:])
		log = trimmed
	}

	h.logs[id] = log
	return h.nextID
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return settings.DefaultHistoryCount
	}
	return limit
}

// toMessages converts a snapshot into the upstream message format.
func toMessages(turns []HistoryTurn) []ai.Message {
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, ai.Message{Role: string(t.Role), Text: t.Content})
	}
	return out
}
