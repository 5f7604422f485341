package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// withAPIKeyFallback overrides the environment lookup of APIKeyEnv.
func withAPIKeyFallback(key string) Option {
	return func(s *Store) {
		s.envAPIKey = key
	}
}

func openTemp(t *testing.T, content string, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	if content != "" {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	opts = append([]Option{withAPIKeyFallback("")}, opts...)
	store, err := Open(path, opts...)
	require.NoError(t, err)
	return store, path
}

func TestOpen_CreatesFileWithDefaults(t *testing.T) {
	store, path := openTemp(t, "")

	cfg := store.Current()
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultPrefix, cfg.Prefix)
	assert.Equal(t, DefaultHistoryCount, cfg.HistoryCount)
	assert.False(t, cfg.EnablePrivateChat)
	assert.False(t, cfg.WhiteListMode)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Settings
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	assert.Equal(t, DefaultSystemPrompt, onDisk.SystemPrompt)
}

func TestOpen_MergesFileOverDefaults(t *testing.T) {
	store, _ := openTemp(t, `
apiKey: sk-file
historyCount: 4
enableSequential: true
forbiddenWords: [spam, scam]
blacklistedQQList: ["42"]
`)

	cfg := store.Current()
	assert.Equal(t, "sk-file", cfg.APIKey)
	assert.Equal(t, 4, cfg.HistoryCount)
	assert.True(t, cfg.EnableSequential)
	assert.Equal(t, []string{"spam", "scam"}, cfg.ForbiddenWords)
	assert.True(t, cfg.Denied("42"))
	// untouched keys keep their defaults
	assert.Equal(t, DefaultPrefix, cfg.Prefix)
	assert.Equal(t, DefaultForwardMsgLimit, cfg.ForwardMsgLimit)
}

func TestOpen_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("historyCount: [oops"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse settings")
}

func TestAPIKeyFallback(t *testing.T) {
	store, path := openTemp(t, "", withAPIKeyFallback("sk-env"))
	assert.Equal(t, "sk-env", store.Current().APIKey)

	// the fallback is never written to disk
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-env")

	require.NoError(t, store.Update(func(cfg *Settings) { cfg.APIKey = "sk-file" }))
	assert.Equal(t, "sk-file", store.Current().APIKey)
}

func TestMutatorsPersist(t *testing.T) {
	store, path := openTemp(t, "")

	require.NoError(t, store.SetGroupEnabled("100", false))
	require.NoError(t, store.SetGroupEnabled("100", false))
	require.NoError(t, store.ModifyAllowList("111", true))
	require.NoError(t, store.ModifyDenyList("222", true))
	require.NoError(t, store.SetPrivateChat(true))
	require.NoError(t, store.SetAllowListMode(true))

	cfg := store.Current()
	assert.Equal(t, []string{"100"}, cfg.ClosedGroupList)
	assert.True(t, cfg.GroupDisabled("100"))
	assert.True(t, cfg.Allowed("111"))
	assert.True(t, cfg.Denied("222"))
	assert.True(t, cfg.EnablePrivateChat)
	assert.True(t, cfg.WhiteListMode)

	reopened, err := Open(path, withAPIKeyFallback(""))
	require.NoError(t, err)
	onDisk := reopened.Current()
	assert.Equal(t, cfg.ClosedGroupList, onDisk.ClosedGroupList)
	assert.Equal(t, cfg.AllowList, onDisk.AllowList)
	assert.Equal(t, cfg.DenyList, onDisk.DenyList)
	assert.True(t, onDisk.EnablePrivateChat)
	assert.True(t, onDisk.WhiteListMode)

	require.NoError(t, store.SetGroupEnabled("100", true))
	require.NoError(t, store.ModifyAllowList("111", false))
	cfg = store.Current()
	assert.False(t, cfg.GroupDisabled("100"))
	assert.False(t, cfg.Allowed("111"))
}

func TestCurrentIsACopy(t *testing.T) {
	store, _ := openTemp(t, "forbiddenWords: [spam]\n")

	cfg := store.Current()
	cfg.ForbiddenWords[0] = "changed"

	assert.Equal(t, []string{"spam"}, store.Current().ForbiddenWords)
}

func TestReloadPicksUpManualEdits(t *testing.T) {
	var seen []Settings
	store, path := openTemp(t, "", WithOnChange(func(cfg Settings) { seen = append(seen, cfg) }))
	require.Len(t, seen, 1)

	require.NoError(t, os.WriteFile(path, []byte("debugMode: true\n"), 0o600))
	require.NoError(t, store.Reload())

	assert.True(t, store.Current().DebugMode)
	require.Len(t, seen, 2)
	assert.True(t, seen[1].DebugMode)
}

func TestUpdateFailureKeepsState(t *testing.T) {
	store, path := openTemp(t, "")

	// replacing the file fails when its path is a non-empty directory
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))

	err := store.SetPrivateChat(true)
	require.Error(t, err)
	assert.False(t, store.Current().EnablePrivateChat)
}

func TestReloadFailureKeepsState(t *testing.T) {
	var seen []Settings
	store, path := openTemp(t, "", WithOnChange(func(cfg Settings) { seen = append(seen, cfg) }))

	require.NoError(t, os.WriteFile(path, []byte("debugMode: true\n"), 0o600))
	// the temp file cannot be written when its path is a non-empty directory
	require.NoError(t, os.MkdirAll(filepath.Join(path+".tmp", "blocker"), 0o755))

	require.Error(t, store.Reload())
	assert.False(t, store.Current().DebugMode)
	assert.Len(t, seen, 1, "observers see only committed settings")
}

func TestDerivedValues(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, DefaultBaseURL, cfg.EffectiveBaseURL())

	cfg.BaseURL = "https://relay.example/v1"
	assert.Equal(t, DefaultBaseURL, cfg.EffectiveBaseURL())
	cfg.UseCustomURL = true
	assert.Equal(t, "https://relay.example/v1", cfg.EffectiveBaseURL())

	cfg.CustomModelName = "my-model"
	assert.Equal(t, DefaultModel, cfg.EffectiveModel())
	cfg.EnableCustomModel = true
	assert.Equal(t, "my-model", cfg.EffectiveModel())

	cfg.HistoryCount = 0
	assert.Equal(t, DefaultHistoryCount, cfg.HistoryLimit())
	cfg.ForwardMsgLimit = -1
	assert.Equal(t, DefaultForwardMsgLimit, cfg.ForwardLimit())

	cfg.EnableRateLimit = true
	cfg.RateLimitWindow = 1
	cfg.RateLimitCount = 3
	assert.Equal(t, RateLimit{Enabled: true, Window: time.Minute, Max: 3}, cfg.RateLimit())
}

func TestForbiddenWordIn(t *testing.T) {
	cfg := Settings{ForbiddenWords: []string{"", "spam", "is"}}

	word, ok := cfg.ForbiddenWordIn("this is spam")
	assert.True(t, ok)
	assert.Equal(t, "spam", word, "first configured word wins")

	_, ok = cfg.ForbiddenWordIn("SPAM")
	assert.False(t, ok, "matching is case-sensitive")
}

func TestRedacted(t *testing.T) {
	cfg := Settings{APIKey: "sk-secret"}
	assert.Equal(t, "***", cfg.Redacted().APIKey)
	assert.Equal(t, "", Settings{}.Redacted().APIKey)
}
