package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/Vovarama1992/openai-chat-relay/internal/ai"
	"github.com/Vovarama1992/openai-chat-relay/internal/httpapi"
	"github.com/Vovarama1992/openai-chat-relay/internal/onebot"
	"github.com/Vovarama1992/openai-chat-relay/internal/relay"
	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
	"github.com/Vovarama1992/openai-chat-relay/internal/transcript"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	logger := slog.Default().With(slog.String("component", "main"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- settings ---
	store, err := settings.Open(cfg.ConfigPath, settings.WithOnChange(func(s settings.Settings) {
		if s.DebugMode {
			level.Set(slog.LevelDebug)
		} else {
			level.Set(slog.LevelInfo)
		}
	}))
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if store.Current().EnableSequential && cfg.CallbackURL == "" {
		logger.Warn("enableSequential is on without --callback-url: replies to queued webhook messages cannot be delivered")
	}

	// --- transcript ---
	var (
		recorder relay.Transcript
		reader   httpapi.TranscriptReader
	)
	if cfg.DatabaseURL != "" {
		openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		repo, err := transcript.Open(openCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return err
		}
		defer repo.Close()
		recorder, reader = repo, repo
	}

	// --- relay wiring ---
	upstream := ai.NewOpenAIClient(func() ai.Endpoint {
		current := store.Current()
		return ai.Endpoint{
			APIKey:   current.APIKey,
			BaseURL:  current.EffectiveBaseURL(),
			ProxyURL: current.ProxyURL,
		}
	}, cfg.UpstreamTimeout)

	history := relay.NewHistoryStore()
	queue := relay.NewQueueManager()
	processor := relay.NewProcessor(store, history, upstream, recorder)
	dispatcher := relay.NewDispatcher(store, relay.NewRateLimiter(), queue, processor)
	router := relay.NewRouter(store, history, dispatcher)

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token"},
	}))

	handler := httpapi.NewHandler(httpapi.Deps{
		Router:     router,
		Settings:   store,
		History:    history,
		Queue:      queue,
		Transcript: reader,
		Outbound:   httpapi.NewCallbackOutbound(cfg.CallbackURL, cfg.CallbackToken),
		AdminToken: cfg.AdminToken,
	})
	httpapi.RegisterRoutes(r, handler)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	// --- OneBot ---
	onebotDone := make(chan struct{})
	if cfg.OneBotURL != "" {
		client := onebot.NewClient(cfg.OneBotURL, cfg.OneBotToken, router)
		go func() {
			defer close(onebotDone)
			client.Run(ctx)
		}()
	} else {
		close(onebotDone)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-onebotDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.UpstreamTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("err", err))
	}
	<-onebotDone
	return nil
}
