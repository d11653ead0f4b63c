// ABOUTME: Tests for loading, migrating and backing up versioned config files
// ABOUTME: Uses temp directories and a fixed clock for backup names

package configfile

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Pomelo32141/MaiBot/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateSection struct {
	SubUpdate  string `toml:"sub_update" default:"one"`
	SubUpdate2 int    `toml:"sub_update2" default:"2" comment:"Added in a later release"`
}

type updateConfig struct {
	Update updateSection `toml:"update"`
}

var fixedClock = func() time.Time {
	return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSync_MigratesOlderFile(t *testing.T) {
	dir := t.TempDir()
	original := `[inner]
version = "1.0.0"

[update]
sub_update = "kept"
stale = true
`
	path := writeFile(t, dir, "test_config.toml", original)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	var cfg updateConfig
	report, err := Sync(path, "11.0.0", &cfg, WithClock(fixedClock), WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, report.Migrated)
	assert.Equal(t, "1.0.0", report.OldVersion)
	assert.Equal(t, "11.0.0", report.NewVersion)
	assert.Equal(t, []string{"sub_update2"}, report.Missing)
	assert.Equal(t, []string{"stale"}, report.Redundant)
	assert.Equal(t, "kept", cfg.Update.SubUpdate)
	assert.Equal(t, 2, cfg.Update.SubUpdate2)

	wantBackup := filepath.Join(dir, "old", "test_config_20250102_030405.toml")
	assert.Equal(t, wantBackup, report.BackupPath)
	backup, err := os.ReadFile(wantBackup)
	require.NoError(t, err)
	assert.Equal(t, original, string(backup))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := normalizeQuotes(string(raw))
	assert.Contains(t, text, `version = "11.0.0"`)
	assert.Contains(t, text, "sub_update2 = 2")
	assert.Contains(t, text, "# Added in a later release")
	assert.NotContains(t, text, "stale")

	assert.Contains(t, logs.String(), "config file is outdated")
	assert.Contains(t, logs.String(), "sub_update2")
	assert.Contains(t, logs.String(), "stale")
}

func TestSync_SameVersionIsUntouched(t *testing.T) {
	dir := t.TempDir()
	content := `[inner]
version = "1.0.0"

[update]
sub_update = "kept"
`
	path := writeFile(t, dir, "test_config.toml", content)

	cfg, migrated, err := Load[updateConfig](path, "1.0.0", WithClock(fixedClock))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, "kept", cfg.Update.SubUpdate)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(after))
	assert.NoDirExists(t, filepath.Join(dir, "old"))
}

func TestSync_NewerStoredVersionIsUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.toml", "[inner]\nversion = \"2.0\"\n")

	_, migrated, err := Load[updateConfig](path, "1.9.9")
	require.NoError(t, err)
	assert.False(t, migrated)
}

func TestSync_IsIdempotentAfterMigration(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.toml", "[inner]\nversion = \"1.0.0\"\n")

	_, migrated, err := Load[updateConfig](path, "1.1.0", WithClock(fixedClock))
	require.NoError(t, err)
	require.True(t, migrated)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg updateConfig
	report, err := Sync(path, "1.1.0", &cfg)
	require.NoError(t, err)
	assert.False(t, report.Migrated)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Redundant)

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSync_BackupNamesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.toml", "[inner]\nversion = \"1.0.0\"\n")

	_, err := Write(&updateConfig{}, path, "1.0.1", WithClock(fixedClock))
	require.NoError(t, err)
	backup, err := Write(&updateConfig{}, path, "1.0.2", WithClock(fixedClock))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "old", "c_20250102_030405_1.toml"), backup)
}

func TestSync_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing inner table", func(t *testing.T) {
		path := writeFile(t, dir, "noinner.toml", "[update]\nsub_update = \"x\"\n")
		_, _, err := Load[updateConfig](path, "1.0.0")
		assert.True(t, errors.Is(err, ErrMissingVersion))
	})

	t.Run("invalid stored version", func(t *testing.T) {
		path := writeFile(t, dir, "badver.toml", "[inner]\nversion = \"one\"\n")
		_, _, err := Load[updateConfig](path, "1.0.0")
		assert.True(t, errors.Is(err, ErrInvalidVersion))
	})

	t.Run("conversion failure", func(t *testing.T) {
		path := writeFile(t, dir, "badval.toml", "[inner]\nversion = \"1.0.0\"\n[update]\nsub_update2 = \"many\"\n")
		_, _, err := Load[updateConfig](path, "1.0.0")
		require.Error(t, err)
		assert.True(t, errors.Is(err, schema.ErrConvert))

		var fe *schema.FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "update.sub_update2", fe.Field)
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := writeFile(t, dir, "broken.toml", "[inner\nversion=")
		_, _, err := Load[updateConfig](path, "1.0.0")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := Load[updateConfig](filepath.Join(dir, "absent.toml"), "1.0.0")
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("non-pointer target", func(t *testing.T) {
		path := writeFile(t, dir, "ok.toml", "[inner]\nversion = \"1.0.0\"\n")
		_, err := Sync(path, "1.0.0", updateConfig{})
		assert.True(t, errors.Is(err, ErrNotWritable))
	})
}

type credentialSection struct {
	Name string `toml:"name" default:"n"`
	Key  string `toml:"key,required,secret"`
}

type credentialConfig struct {
	Sec credentialSection `toml:"sec"`
}

func TestSync_MigrationKeepsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cred.toml", "[inner]\nversion = \"1.0.0\"\n\n[sec]\nkey = \"hunter2\"\n")

	cfg, migrated, err := Load[credentialConfig](path, "2.0.0", WithClock(fixedClock))
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, "hunter2", cfg.Sec.Key)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hunter2")

	again, migrated, err := Load[credentialConfig](path, "2.0.0")
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, cfg, again)
}

func TestWrite_IgnoresRedaction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cred.toml")

	cfg := &credentialConfig{Sec: credentialSection{Name: "n", Key: "hunter2"}}
	_, err := Write(cfg, path, "1.0.0", WithRedaction())
	require.NoError(t, err)

	got, _, err := Load[credentialConfig](path, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestWrite_FailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	original := "[inner]\nversion = \"1.0.0\"\n"
	path := writeFile(t, dir, "c.toml", original)
	// a plain file where the backup directory should go
	writeFile(t, dir, "old", "")

	_, err := Write(&updateConfig{}, path, "1.0.1", WithClock(fixedClock))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp file is cleaned up")
}
