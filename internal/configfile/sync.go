// ABOUTME: Loads versioned TOML files into schema structs and migrates stale ones
// ABOUTME: Migration backs up the old file, rewrites it and logs what changed

package configfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Pomelo32141/MaiBot/internal/schema"
)

// innerTable is the reserved table holding the file's schema version.
const innerTable = "inner"

var ErrMissingVersion = errors.New("missing [inner] version")

// Report describes one Sync.
type Report struct {
	File       string
	OldVersion string
	NewVersion string
	Missing    []string
	Redundant  []string
	Migrated   bool
	BackupPath string // empty unless an existing file was moved aside
}

// Parse decodes a TOML document into a raw map.
func Parse(data []byte) (map[string]any, error) {
	raw := make(map[string]any)
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// StoredVersion removes the [inner] table from raw and returns its version.
func StoredVersion(raw map[string]any) (string, error) {
	inner, ok := raw[innerTable].(map[string]any)
	if !ok {
		return "", ErrMissingVersion
	}
	delete(raw, innerTable)
	v, ok := inner["version"]
	if !ok {
		return "", ErrMissingVersion
	}
	s := fmt.Sprint(v)
	if _, err := ParseVersion(s); err != nil {
		return "", err
	}
	return s, nil
}

// Sync loads the file at path into target, which must be a pointer to a
// schema struct. If version is newer than the version stored in the file, the
// file is migrated: the old copy is backed up and the loaded struct is
// written in its place.
func Sync(path, version string, target any, opts ...Option) (*Report, error) {
	o := newOptions(opts)
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, fmt.Errorf("%w: target must be a non-nil pointer, got %T", ErrNotWritable, target)
	}
	if _, err := ParseVersion(version); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	raw, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	stored, err := StoredVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var d schema.Discrepancies
	v, err := schema.LoadValue(rv.Elem().Type(), raw, &d)
	if err != nil {
		o.logger.Error("config file could not be loaded", "file", filepath.Base(path), "error", err)
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}
	rv.Elem().Set(v)

	report := &Report{
		File:       path,
		OldVersion: stored,
		NewVersion: version,
		Missing:    d.Missing,
		Redundant:  d.Redundant,
	}
	newer, err := CompareVersions(version, stored)
	if err != nil {
		return nil, err
	}
	if newer <= 0 {
		return report, nil
	}

	logChanges(o, report)
	backup, err := write(target, path, version, o)
	if err != nil {
		return nil, err
	}
	report.Migrated = true
	report.BackupPath = backup
	return report, nil
}

// Load is the typed form of Sync. It reports whether the file was migrated.
func Load[T any](path, version string, opts ...Option) (*T, bool, error) {
	cfg := new(T)
	report, err := Sync(path, version, cfg, opts...)
	if err != nil {
		return nil, false, err
	}
	return cfg, report.Migrated, nil
}

// Write encodes v to path, secrets included. An existing file is moved to
// the backup directory once the new content is on disk; its new location is
// returned.
func Write(v any, path, version string, opts ...Option) (string, error) {
	return write(v, path, version, newOptions(opts))
}

func write(v any, path, version string, o *options) (string, error) {
	data, err := Encode(v, version, func(dst *options) {
		*dst = *o
		dst.redact = false
	})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	var backup string
	if _, err := os.Stat(path); err == nil {
		backup, err = backupPath(path, o)
		if err != nil {
			return "", err
		}
		if err := os.Rename(path, backup); err != nil {
			return "", fmt.Errorf("backing up config file: %w", err)
		}
		o.logger.Info("old config file backed up", "file", filepath.Base(path), "backup", backup)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		if backup != "" {
			// restore the original
			if rerr := os.Rename(backup, path); rerr == nil {
				backup = ""
			}
		}
		return backup, fmt.Errorf("replacing config file: %w", err)
	}
	return backup, nil
}

// backupPath returns <dir>/old/<stem>_<YYYYMMDD_HHMMSS>.toml, adding a
// counter when a backup from the same second already exists.
func backupPath(path string, o *options) (string, error) {
	dir := filepath.Join(filepath.Dir(path), "old")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base := stem + "_" + o.now().Format("20060102_150405")
	candidate := filepath.Join(dir, base+".toml")
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d.toml", base, n))
	}
}

func logChanges(o *options, r *Report) {
	name := filepath.Base(r.File)
	o.logger.Warn("config file is outdated, migrating",
		"file", name, "old_version", r.OldVersion, "new_version", r.NewVersion)
	if len(r.Missing) > 0 {
		o.logger.Info("new config fields added with defaults",
			"file", name, "count", len(r.Missing), "fields", strings.Join(r.Missing, ", "))
	}
	if len(r.Redundant) > 0 {
		o.logger.Info("obsolete config fields removed",
			"file", name, "count", len(r.Redundant), "fields", strings.Join(r.Redundant, ", "))
	}
}
