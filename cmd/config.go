package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type config struct {
	Addr            string
	ConfigPath      string
	DatabaseURL     string
	CallbackURL     string
	CallbackToken   string
	AdminToken      string
	OneBotURL       string
	OneBotToken     string
	UpstreamTimeout time.Duration
}

// loadConfig reads flags, falling back to the environment for every flag
// that was not given.
func loadConfig(args []string, getenv func(string) string) (config, error) {
	envOr := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	timeout := 60 * time.Second
	if raw := getenv("OPENAI_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return config{}, fmt.Errorf("OPENAI_TIMEOUT: %w", err)
		}
		timeout = d
	}

	addr := envOr("PORT", ":8080")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	var cfg config
	flagSet := pflag.NewFlagSet("openai-chat-relay", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Addr, "addr", addr, "HTTP listen address (env PORT)")
	flagSet.StringVar(&cfg.ConfigPath, "config", envOr("RELAY_CONFIG", "config/config.yaml"), "settings YAML file (env RELAY_CONFIG)")
	flagSet.StringVar(&cfg.DatabaseURL, "database-url", getenv("DATABASE_URL"), "transcript database: postgres:// URL or SQLite path; empty disables (env DATABASE_URL)")
	flagSet.StringVar(&cfg.CallbackURL, "callback-url", getenv("RELAY_CALLBACK_URL"), "URL that receives replies to webhook messages (env RELAY_CALLBACK_URL)")
	flagSet.StringVar(&cfg.CallbackToken, "callback-token", getenv("RELAY_CALLBACK_TOKEN"), "bearer token sent to the callback URL (env RELAY_CALLBACK_TOKEN)")
	flagSet.StringVar(&cfg.AdminToken, "admin-token", getenv("RELAY_ADMIN_TOKEN"), "token for the admin API; empty disables it (env RELAY_ADMIN_TOKEN)")
	flagSet.StringVar(&cfg.OneBotURL, "onebot-url", getenv("ONEBOT_WS_URL"), "OneBot v11 forward WebSocket URL (env ONEBOT_WS_URL)")
	flagSet.StringVar(&cfg.OneBotToken, "onebot-token", getenv("ONEBOT_ACCESS_TOKEN"), "OneBot access token (env ONEBOT_ACCESS_TOKEN)")
	flagSet.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", timeout, "timeout of one completion request (env OPENAI_TIMEOUT)")

	if err := flagSet.Parse(args); err != nil {
		return config{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return config{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if cfg.UpstreamTimeout <= 0 {
		return config{}, fmt.Errorf("upstream timeout must be positive, got %s", cfg.UpstreamTimeout)
	}
	return cfg, nil
}
