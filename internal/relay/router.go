package relay

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
)

// Router turns raw message text into relay actions: chat requests, history
// resets, help and the administrative commands.
type Router struct {
	settings   SettingsAdmin
	history    *HistoryStore
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewRouter(settingsAdmin SettingsAdmin, history *HistoryStore, dispatcher *Dispatcher) *Router {
	return &Router{
		settings:   settingsAdmin,
		history:    history,
		dispatcher: dispatcher,
		logger:     slog.Default().With(slog.String("component", "router")),
	}
}

// Handle reports whether the message was meant for the relay. Chat requests
// run to completion before Handle returns.
func (r *Router) Handle(ctx context.Context, in Inbound) bool {
	text := strings.TrimSpace(in.Text())
	if text == "" {
		return false
	}

	cfg := r.settings.Current()

	if r.handleAdmin(ctx, in, cfg, text) {
		return true
	}

	switch {
	case text == cfg.ResetCmd:
		r.history.Reset(ConversationOf(in))
		r.reply(ctx, in, TextReply(msgHistoryReset))
		return true

	case text == cfg.HelpCmd:
		r.reply(ctx, in, QuotedReply(msgHelp(cfg)))
		return true

	case cfg.Prefix != "" && strings.HasPrefix(text, cfg.Prefix):
		r.dispatcher.Dispatch(ctx, in, strings.TrimPrefix(text, cfg.Prefix), ModePrefix)
		return true

	case !in.IsGroup() && cfg.PrivateChatWithoutPrefix &&
		!strings.HasPrefix(text, "#") && !strings.HasPrefix(text, "/"):
		r.logger.DebugContext(ctx, "no-prefix message captured", slog.String("sender", in.SenderID()))
		r.dispatcher.Dispatch(ctx, in, text, ModeNoPrefix)
		return true
	}

	return false
}

func (r *Router) handleAdmin(ctx context.Context, in Inbound, cfg settings.Settings, text string) bool {
	fields := strings.Fields(text)
	command := strings.ToLower(strings.Join(fields, " "))
	master := cfg.IsMaster(in.SenderID())

	switch command {
	case "#enable group ai", "#disable group ai":
		if !in.IsGroup() {
			r.reply(ctx, in, TextReply(msgNeedsGroup))
			return true
		}
		if !master && !in.GroupAdmin() {
			r.reply(ctx, in, TextReply(msgNeedsGroupAdmin))
			return true
		}
		enable := strings.HasPrefix(command, "#enable")
		msg := msgGroupDisabled
		if enable {
			msg = msgGroupEnabled
		}
		r.apply(ctx, in, r.settings.SetGroupEnabled(in.GroupID(), enable), msg)
		return true

	case "#enable private ai", "#disable private ai":
		if master {
			enable := strings.HasPrefix(command, "#enable")
			msg := msgPrivateDisabled
			if enable {
				msg = msgPrivateEnabled
			}
			r.apply(ctx, in, r.settings.SetPrivateChat(enable), msg)
		}
		return true

	case "#allowlist mode on", "#allowlist mode off":
		if master {
			on := strings.HasSuffix(command, "on")
			msg := msgAllowListModeOff
			if on {
				msg = msgAllowListModeOn
			}
			r.apply(ctx, in, r.settings.SetAllowListMode(on), msg)
		}
		return true
	}

	var allowList, add bool
	switch strings.ToLower(fields[0]) {
	case "#allow":
		allowList, add = true, true
	case "#unallow":
		allowList = true
	case "#deny":
		add = true
	case "#undeny":
	default:
		return false
	}

	if !master {
		return true
	}
	if len(fields) < 2 {
		r.reply(ctx, in, QuotedReply(msgNeedsTarget))
		return true
	}

	target := fields[1]
	var err error
	if allowList {
		err = r.settings.ModifyAllowList(target, add)
	} else {
		err = r.settings.ModifyDenyList(target, add)
	}
	r.apply(ctx, in, err, msgListChanged(target, allowList, add))
	return true
}

func (r *Router) apply(ctx context.Context, in Inbound, err error, confirm string) {
	if err != nil {
		r.logger.ErrorContext(ctx, "settings update failed", slog.Any("err", err))
		r.reply(ctx, in, QuotedReply(msgSettingsFailed))
		return
	}
	r.logger.InfoContext(ctx, "settings updated by command",
		slog.String("sender", in.SenderID()),
		slog.String("command", in.Text()),
	)
	r.reply(ctx, in, QuotedReply(confirm))
}

func (r *Router) reply(ctx context.Context, in Inbound, reply Reply) {
	if err := in.Reply(ctx, reply); err != nil {
		r.logger.ErrorContext(ctx, "reply failed", slog.Any("err", err))
	}
}
