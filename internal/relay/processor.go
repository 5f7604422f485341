package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Vovarama1992/openai-chat-relay/internal/ai"
	"github.com/Vovarama1992/openai-chat-relay/internal/transcript"
)

// OutcomeKind is the result class of one processed chat request.
type OutcomeKind int

const (
	// Replied means the upstream answer was delivered.
	Replied OutcomeKind = iota
	// Suppressed means policy says do nothing; nothing is sent.
	Suppressed
	// Errored means an actionable error was shown to the sender.
	Errored
)

func (k OutcomeKind) String() string {
	switch k {
	case Replied:
		return "replied"
	case Suppressed:
		return "suppressed"
	default:
		return "errored"
	}
}

// Reasons attached to Suppressed and Errored outcomes.
const (
	ReasonPrivateChatDisabled = "private_chat_disabled"
	ReasonNotAllowed          = "not_in_allow_list"
	ReasonDenied              = "in_deny_list"
	ReasonGroupDisabled       = "group_disabled"
	ReasonEmptyPrompt         = "empty_prompt"
	ReasonEmptyCompletion     = "empty_completion"
	ReasonMissingAPIKey       = "missing_api_key"
	ReasonForbiddenWord       = "forbidden_word"
	ReasonUpstreamTimeout     = "upstream_timeout"
	ReasonUpstreamHTTP        = "upstream_http"
	ReasonUpstreamError       = "upstream_error"
	ReasonPanic               = "panic"
)

type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Reply  Reply
	// Err is the upstream or delivery error, if any.
	Err error
}

func suppressed(reason string) Outcome {
	return Outcome{Kind: Suppressed, Reason: reason}
}

// Processor gates one chat request through the policy checks and forwards
// it upstream with the conversation history.
type Processor struct {
	settings   SettingsProvider
	history    *HistoryStore
	upstream   ai.Upstream
	transcript Transcript
	logger     *slog.Logger
	now        func() time.Time
}

// NewProcessor wires a processor. transcript may be nil.
func NewProcessor(
	settingsProvider SettingsProvider,
	history *HistoryStore,
	upstream ai.Upstream,
	tr Transcript,
) *Processor {
	return &Processor{
		settings:   settingsProvider,
		history:    history,
		upstream:   upstream,
		transcript: tr,
		logger:     slog.Default().With(slog.String("component", "processor")),
		now:        time.Now,
	}
}

// Process runs the ordered checks; the first failing one ends the request.
func (p *Processor) Process(ctx context.Context, in Inbound, prompt string) Outcome {
	cfg := p.settings.Current()
	conv := ConversationOf(in)
	logger := p.logger.With(
		slog.String("conversation", conv.String()),
		slog.String("sender", in.SenderID()),
	)

	if !in.IsGroup() {
		if !cfg.EnablePrivateChat {
			return suppressed(ReasonPrivateChatDisabled)
		}
		if cfg.WhiteListMode {
			if !cfg.Allowed(in.SenderID()) {
				logger.DebugContext(ctx, "sender not in allow list, ignored")
				return suppressed(ReasonNotAllowed)
			}
		} else if cfg.Denied(in.SenderID()) {
			logger.DebugContext(ctx, "sender in deny list, ignored")
			return suppressed(ReasonDenied)
		}
	}

	if in.IsGroup() && cfg.GroupDisabled(in.GroupID()) {
		return suppressed(ReasonGroupDisabled)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return suppressed(ReasonEmptyPrompt)
	}

	if cfg.APIKey == "" {
		return p.fail(ctx, in, ReasonMissingAPIKey, nil, TextReply(msgMissingAPIKey))
	}

	if word, hit := cfg.ForbiddenWordIn(prompt); hit {
		logger.InfoContext(ctx, "forbidden word hit", slog.String("word", word))
		return p.fail(ctx, in, ReasonForbiddenWord, nil, QuotedReply(msgForbiddenWord(word)))
	}

	limit := cfg.HistoryLimit()
	userTurn := p.history.AppendUser(conv, prompt, limit)
	snapshot := p.history.Snapshot(conv, limit)

	model := cfg.EffectiveModel()
	logger.DebugContext(ctx, "sending upstream request",
		slog.String("model", model),
		slog.Int("history", len(snapshot)),
	)

	answer, err := p.upstream.Complete(ctx, model, cfg.SystemPrompt, toMessages(snapshot))
	if err != nil {
		p.history.RollbackUser(conv, userTurn)

		if errors.Is(err, ai.ErrEmptyCompletion) {
			logger.WarnContext(ctx, "upstream returned no content")
			return Outcome{Kind: Suppressed, Reason: ReasonEmptyCompletion, Err: err}
		}

		logger.ErrorContext(ctx, "upstream request failed", slog.Any("err", err))
		reason, reply := upstreamFailure(err)
		return p.fail(ctx, in, reason, err, reply)
	}

	answer = strings.TrimSpace(answer)
	if cfg.StripMarkdown {
		answer = StripMarkup(answer)
	}
	if answer == "" {
		p.history.RollbackUser(conv, userTurn)
		logger.WarnContext(ctx, "upstream reply is empty after markup stripping")
		return suppressed(ReasonEmptyCompletion)
	}

	p.history.AppendAssistant(conv, answer, limit)
	p.record(ctx, conv, in, prompt, answer)

	reply := QuotedReply(answer)
	if cfg.EnableForwardMsg && utf8.RuneCountInString(answer) > cfg.ForwardLimit() {
		reply = BundleReply(bundleTitle(model), answer)
	}

	logger.DebugContext(ctx, "upstream reply ready", slog.Int("length", utf8.RuneCountInString(answer)))

	outcome := Outcome{Kind: Replied, Reply: reply}
	if err := in.Reply(ctx, reply); err != nil {
		logger.ErrorContext(ctx, "reply delivery failed", slog.Any("err", err))
		outcome.Err = err
	}
	return outcome
}

// fail reports an actionable error to the sender.
func (p *Processor) fail(ctx context.Context, in Inbound, reason string, cause error, reply Reply) Outcome {
	if err := in.Reply(ctx, reply); err != nil {
		p.logger.ErrorContext(ctx, "error reply delivery failed", slog.String("reason", reason), slog.Any("err", err))
		cause = errors.Join(cause, err)
	}
	return Outcome{Kind: Errored, Reason: reason, Reply: reply, Err: cause}
}

func upstreamFailure(err error) (string, Reply) {
	upErr := ai.Classify(err)
	switch upErr.Kind {
	case ai.KindTimeout:
		return ReasonUpstreamTimeout, TextReply(msgUpstreamTimeout)
	case ai.KindHTTP:
		return ReasonUpstreamHTTP, TextReply(msgUpstreamHTTP(upErr.Status))
	default:
		return ReasonUpstreamError, TextReply(msgUpstreamOther(upErr.Err))
	}
}

func (p *Processor) record(ctx context.Context, conv ConversationID, in Inbound, prompt, answer string) {
	if p.transcript == nil {
		return
	}

	at := p.now()
	turns := []transcript.Turn{
		{ConversationID: conv.String(), SenderID: in.SenderID(), Role: string(RoleUser), Content: prompt, CreatedAt: at},
		{ConversationID: conv.String(), SenderID: in.SenderID(), Role: string(RoleAssistant), Content: answer, CreatedAt: at},
	}
	for _, turn := range turns {
		if err := p.transcript.SaveTurn(ctx, turn); err != nil {
			p.logger.WarnContext(ctx, "transcript write failed", slog.Any("err", err))
			return
		}
	}
}
