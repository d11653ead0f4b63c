// ABOUTME: Tests for the configuration manager
// ABOUTME: File generation, migration on startup, env expansion, reload and watching

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Pomelo32141/MaiBot/internal/schema"
	"github.com/Pomelo32141/MaiBot/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewPaths(t.TempDir()), nil)
}

func TestManager_GeneratesMissingFiles(t *testing.T) {
	m := newTestManager(t)

	migrated, err := m.Initialize()
	require.NoError(t, err)
	assert.True(t, migrated, "generated files count as migrated")
	assert.FileExists(t, m.Paths().BotConfig)
	assert.FileExists(t, m.Paths().ModelConfig)

	defaults, err := schema.New[Config]()
	require.NoError(t, err)
	assert.Equal(t, defaults, m.Global())
	require.NotNil(t, m.Model())
	assert.Equal(t, "deepseek-v3", m.Model().Models[0].Name)

	again := NewManager(m.Paths(), nil)
	migrated, err = again.Initialize()
	require.NoError(t, err)
	assert.False(t, migrated, "second start finds current files")
	assert.Equal(t, m.Global(), again.Global())
}

func TestManager_MigratesOutdatedBotConfig(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.MkdirAll(m.Paths().ConfigDir, 0o755))

	old := `[inner]
version = "7.0.0"

[chat]
max_context_size = 40
removed_option = true

[maim_message]
auth_token = ["keep-me"]
`
	require.NoError(t, os.WriteFile(m.Paths().BotConfig, []byte(old), 0o644))

	migrated, err := m.Initialize()
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, 40, m.Global().Chat.MaxContextSize)
	assert.Equal(t, []string{"keep-me"}, m.Global().MaimMessage.AuthToken)

	backups, err := filepath.Glob(filepath.Join(m.Paths().ConfigDir, "old", "bot_config_*.toml"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	written, err := os.ReadFile(m.Paths().BotConfig)
	require.NoError(t, err)
	text := string(written)
	assert.Contains(t, text, ConfigVersion)
	assert.Contains(t, text, "max_context_size = 40")
	assert.Contains(t, text, "keep-me", "secrets survive migration")
	assert.NotContains(t, text, "removed_option")
}

func TestManager_InvalidModelConfig(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.MkdirAll(m.Paths().ConfigDir, 0o755))
	content := "[inner]\nversion = \"" + ModelConfigVersion + "\"\n"
	require.NoError(t, os.WriteFile(m.Paths().ModelConfig, []byte(content), 0o644))

	_, err := m.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrValidation))
	assert.Contains(t, err.Error(), "models must not be empty")
}

func TestManager_ExpandsProviderEnv(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	m := newTestManager(t)

	_, err := m.Initialize()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", m.Model().APIProviders[0].APIKey)

	written, err := os.ReadFile(m.Paths().ModelConfig)
	require.NoError(t, err)
	assert.Contains(t, string(written), "${DEEPSEEK_API_KEY}")
	assert.NotContains(t, string(written), "sk-test")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MAIBOT_TEST_HOST", "example.org")
	assert.Equal(t, "https://example.org/v1", expandEnvVars("https://${MAIBOT_TEST_HOST}/v1"))
	assert.Equal(t, "", expandEnvVars("${MAIBOT_TEST_UNSET_VARIABLE}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestManager_ReloadNotifiesListeners(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Initialize()
	require.NoError(t, err)

	var got []Kind
	m.OnReload(func(k Kind) { got = append(got, k) })

	data, err := os.ReadFile(m.Paths().BotConfig)
	require.NoError(t, err)
	updated := strings.Replace(string(data), "max_context_size = 25", "max_context_size = 12", 1)
	require.NoError(t, os.WriteFile(m.Paths().BotConfig, []byte(updated), 0o644))

	require.NoError(t, m.Reload(KindBot))
	assert.Equal(t, 12, m.Global().Chat.MaxContextSize)
	assert.Equal(t, []Kind{KindBot}, got)

	assert.Error(t, m.Reload(Kind("plugins")))
}

func TestManager_FailedReloadKeepsPrevious(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Initialize()
	require.NoError(t, err)
	before := m.Global()

	require.NoError(t, os.WriteFile(m.Paths().BotConfig, []byte("not toml ["), 0o644))
	assert.Error(t, m.Reload(KindBot))
	assert.Same(t, before, m.Global())
}

func TestManager_WatchReloadsOnChange(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Initialize()
	require.NoError(t, err)

	w := watcher.New(watcher.WithDedupeWindow(10 * time.Millisecond))
	defer w.Close()
	require.NoError(t, m.Watch(w))

	var mu sync.Mutex
	reloaded := map[Kind]bool{}
	m.OnReload(func(k Kind) {
		mu.Lock()
		defer mu.Unlock()
		reloaded[k] = true
	})

	data, err := os.ReadFile(m.Paths().BotConfig)
	require.NoError(t, err)
	updated := strings.Replace(string(data), "max_context_size = 25", "max_context_size = 30", 1)
	replaceFile(t, m.Paths().BotConfig, updated)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded[KindBot] && m.Global().Chat.MaxContextSize == 30
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, m.StopWatching(w))
	assert.Empty(t, w.Dirs())
}

// replaceFile swaps content in with a rename so a watcher never sees a
// half-written file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestPaths(t *testing.T) {
	p := NewPaths("/srv/maibot")
	assert.Equal(t, filepath.Join("/srv/maibot", "configs", "bot_config.toml"), p.BotConfig)
	assert.Equal(t, filepath.Join("/srv/maibot", "configs", "model_config.toml"), p.ModelConfig)
	assert.Equal(t, filepath.Join("/srv/maibot", "plugins"), p.PluginsDir)
	assert.Equal(t, filepath.Join("/srv/maibot", "data", "MaiBot.db"), p.Resolve("data/MaiBot.db"))
	assert.Equal(t, "/abs/db", p.Resolve("/abs/db"))

	dir := t.TempDir()
	t.Setenv(RootEnv, dir)
	got, err := DefaultPaths()
	require.NoError(t, err)
	assert.Equal(t, dir, got.Root)
}
