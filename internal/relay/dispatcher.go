package relay

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// DispatchStatus says what happened to a request at admission time.
type DispatchStatus int

const (
	Processed DispatchStatus = iota
	Queued
	RateLimited
)

func (s DispatchStatus) String() string {
	switch s {
	case Processed:
		return "processed"
	case Queued:
		return "queued"
	default:
		return "rate_limited"
	}
}

type Result struct {
	Status DispatchStatus
	// Outcome is set for Processed requests only.
	Outcome Outcome
	// Position is the queue position of a Queued request.
	Position int
}

// Dispatcher is the single coordinator owning the rate windows and the
// conversation queues. Instantiate one per process.
type Dispatcher struct {
	settings  SettingsProvider
	limiter   *RateLimiter
	queue     *QueueManager
	processor *Processor
	now       func() time.Time
	logger    *slog.Logger
}

func NewDispatcher(
	settingsProvider SettingsProvider,
	limiter *RateLimiter,
	queue *QueueManager,
	processor *Processor,
) *Dispatcher {
	return &Dispatcher{
		settings:  settingsProvider,
		limiter:   limiter,
		queue:     queue,
		processor: processor,
		now:       time.Now,
		logger:    slog.Default().With(slog.String("component", "dispatcher")),
	}
}

// Dispatch runs rate limiting, queue admission and processing for one chat
// request. When the request is admitted in sequential mode the caller also
// drains every request queued behind it before Dispatch returns.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound, prompt string, mode Mode) Result {
	cfg := d.settings.Current()
	conv := ConversationOf(in)
	logger := d.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("conversation", conv.String()),
		slog.String("sender", in.SenderID()),
	)

	limit := cfg.RateLimit()
	if !d.limiter.Allow(in.SenderID(), d.now(), limit) {
		logger.InfoContext(ctx, "rate limited")
		msg := msgRateLimited(limit.Max, int(limit.Window/time.Minute))
		if err := in.Reply(ctx, TextReply(msg)); err != nil {
			logger.ErrorContext(ctx, "rate limit notice failed", slog.Any("err", err))
		}
		return Result{Status: RateLimited}
	}

	req := PendingRequest{Inbound: in, Prompt: prompt, Mode: mode}
	admission := d.queue.Admit(conv, req, cfg.EnableSequential)
	if !admission.RunNow {
		logger.InfoContext(ctx, "request queued", slog.Int("position", admission.Position))
		if err := in.Reply(ctx, QuotedReply(msgQueued)); err != nil {
			logger.ErrorContext(ctx, "queued notice failed", slog.Any("err", err))
		}
		return Result{Status: Queued, Position: admission.Position}
	}

	if !cfg.EnableSequential {
		return Result{Status: Processed, Outcome: d.execute(ctx, logger, req)}
	}

	outcome := d.execute(ctx, logger, req)

	// queued items belong to other callers; their processing must not end
	// with this caller's context
	drainCtx := context.WithoutCancel(ctx)
	for {
		next, ok := d.queue.Complete(conv)
		if !ok {
			break
		}
		logger.DebugContext(ctx, "processing queued request",
			slog.String("queued_sender", next.Inbound.SenderID()),
			slog.Int("remaining", d.queue.Pending(conv)),
		)
		d.execute(drainCtx, logger, next)
	}

	return Result{Status: Processed, Outcome: outcome}
}

// execute processes one request; a panic is logged and turned into an
// Errored outcome so the drain loop keeps going.
func (d *Dispatcher) execute(ctx context.Context, logger *slog.Logger, req PendingRequest) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "panic while processing request",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			outcome = Outcome{Kind: Errored, Reason: ReasonPanic, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	outcome = d.processor.Process(ctx, req.Inbound, req.Prompt)
	logger.DebugContext(ctx, "request processed",
		slog.String("mode", string(req.Mode)),
		slog.String("outcome", outcome.Kind.String()),
		slog.String("reason", outcome.Reason),
	)
	return outcome
}
