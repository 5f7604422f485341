package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/Vovarama1992/openai-chat-relay/internal/relay"
	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
	"github.com/Vovarama1992/openai-chat-relay/internal/transcript"
)

// MessageRouter handles one inbound message.
type MessageRouter interface {
	Handle(ctx context.Context, in relay.Inbound) bool
}

type SettingsSource interface {
	Current() settings.Settings
	Reload() error
}

type TranscriptReader interface {
	Recent(ctx context.Context, conversationID string, limit int) ([]transcript.Turn, error)
}

type Deps struct {
	Router     MessageRouter
	Settings   SettingsSource
	History    *relay.HistoryStore
	Queue      *relay.QueueManager
	Transcript TranscriptReader // optional
	Outbound   *CallbackOutbound
	AdminToken string
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:   deps,
		logger: slog.Default().With(slog.String("component", "httpapi")),
	}
}

type webhookResponse struct {
	Handled bool              `json:"handled"`
	Replies []CallbackPayload `json:"replies"`
}

// HandleWebhook runs one host message through the router and answers once
// all of its replies are out.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if payload.SenderID == "" || payload.Text == "" {
		http.Error(w, "missing sender_id or text", http.StatusBadRequest)
		return
	}

	in := &webhookInbound{msg: payload, outbound: h.deps.Outbound}
	handled := h.deps.Router.Handle(r.Context(), in)

	writeJSON(w, http.StatusOK, webhookResponse{Handled: handled, Replies: in.finish()})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.deps.AdminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	out, err := yaml.Marshal(h.deps.Settings.Current().Redacted())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "encode settings", slog.Any("err", err))
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (h *Handler) ReloadSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Settings.Reload(); err != nil {
		h.logger.ErrorContext(r.Context(), "reload settings", slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.logger.InfoContext(r.Context(), "settings reloaded")
	w.WriteHeader(http.StatusNoContent)
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}

	snap := h.deps.History.Snapshot(id, h.deps.Settings.Current().HistoryLimit())
	out := make([]historyTurn, 0, len(snap))
	for _, t := range snap {
		out = append(out, historyTurn{Role: string(t.Role), Content: t.Content})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	h.deps.History.Reset(id)
	h.logger.InfoContext(r.Context(), "history reset", slog.String("conversation", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processing": h.deps.Queue.Processing(id),
		"pending":    h.deps.Queue.Pending(id),
	})
}

func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	if h.deps.Transcript == nil {
		http.Error(w, "transcript disabled", http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	turns, err := h.deps.Transcript.Recent(r.Context(), id.String(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read transcript", slog.Any("err", err))
		http.Error(w, "transcript error", http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []transcript.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func conversationParam(w http.ResponseWriter, r *http.Request) (relay.ConversationID, bool) {
	id, err := relay.ParseConversationID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
