package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv fills an empty apiKey so the credential can stay out of the file.
const APIKeyEnv = "OPENAI_API_KEY"

// Store is the file-backed settings provider. It is safe for concurrent use.
type Store struct {
	path      string
	envAPIKey string
	onChange  []func(Settings)
	logger    *slog.Logger

	mu  sync.RWMutex
	cfg Settings
}

type Option func(*Store)

// WithOnChange registers an observer called after every successful load or update.
func WithOnChange(fn func(Settings)) Option {
	return func(s *Store) {
		s.onChange = append(s.onChange, fn)
	}
}

// Open loads path over the defaults and writes the merged result back,
// creating the file and its directory when missing.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:      path,
		envAPIKey: os.Getenv(APIKeyEnv),
		logger:    slog.Default().With(slog.String("component", "settings")),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file, e.g. after it was edited by hand.
func (s *Store) Reload() error {
	cfg, err := readFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	if err := s.saveLocked(); err != nil {
		s.cfg = prev
		s.mu.Unlock()
		return err
	}
	snapshot := s.currentLocked()
	s.mu.Unlock()

	s.logger.Info("settings loaded", slog.String("path", s.path))
	s.notify(snapshot)
	return nil
}

// Current returns a deep copy of the live settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked()
}

// Update applies fn to a copy of the settings and persists the result.
// The in-memory state is left untouched when persisting fails.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	prev := s.cfg
	next := s.cfg.clone()
	fn(&next)
	s.cfg = next
	if err := s.saveLocked(); err != nil {
		s.cfg = prev
		s.mu.Unlock()
		return err
	}
	snapshot := s.currentLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// SetGroupEnabled removes the group from, or adds it to, the closed list.
func (s *Store) SetGroupEnabled(groupID string, enabled bool) error {
	return s.Update(func(cfg *Settings) {
		cfg.ClosedGroupList = toggle(cfg.ClosedGroupList, groupID, !enabled)
	})
}

func (s *Store) SetPrivateChat(enabled bool) error {
	return s.Update(func(cfg *Settings) {
		cfg.EnablePrivateChat = enabled
	})
}

func (s *Store) SetAllowListMode(enabled bool) error {
	return s.Update(func(cfg *Settings) {
		cfg.WhiteListMode = enabled
	})
}

func (s *Store) ModifyAllowList(senderID string, add bool) error {
	return s.Update(func(cfg *Settings) {
		cfg.AllowList = toggle(cfg.AllowList, senderID, add)
	})
}

func (s *Store) ModifyDenyList(senderID string, add bool) error {
	return s.Update(func(cfg *Settings) {
		cfg.DenyList = toggle(cfg.DenyList, senderID, add)
	})
}

func (s *Store) currentLocked() Settings {
	out := s.cfg.clone()
	if out.APIKey == "" {
		out.APIKey = s.envAPIKey
	}
	return out
}

func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func (s *Store) notify(cfg Settings) {
	for _, fn := range s.onChange {
		fn(cfg)
	}
}

func readFile(path string) (Settings, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return cfg, nil
}

func toggle(list []string, id string, present bool) []string {
	idx := slices.Index(list, id)
	switch {
	case present && idx == -1:
		return append(list, id)
	case !present && idx != -1:
		return slices.Delete(list, idx, idx+1)
	}
	return list
}
