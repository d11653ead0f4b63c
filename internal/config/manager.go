// ABOUTME: Loads, migrates and hot-reloads the bot and model configuration files
// ABOUTME: Generates missing files from defaults and notifies listeners on reload

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"github.com/Pomelo32141/MaiBot/internal/configfile"
	"github.com/Pomelo32141/MaiBot/internal/schema"
	"github.com/Pomelo32141/MaiBot/internal/watcher"
	"github.com/google/uuid"
)

// ExitConfigMigrated is the process exit code used after a configuration file
// was created or migrated, so the user can review it before the next start.
const ExitConfigMigrated = 3

// Kind names one of the two configuration files.
type Kind string

const (
	KindBot   Kind = "bot"
	KindModel Kind = "model"
)

// Manager owns the loaded configuration.
type Manager struct {
	paths  Paths
	logger *slog.Logger
	opts   []configfile.Option

	mu        sync.RWMutex
	global    *Config
	model     *ModelConfig
	listeners []func(Kind)
	watchIDs  []uuid.UUID
}

// NewManager creates a manager for the files under paths. Extra options are
// passed to every file load and write.
func NewManager(paths Paths, logger *slog.Logger, opts ...configfile.Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "config")
	base := []configfile.Option{configfile.WithLogger(logger)}
	return &Manager{
		paths:  paths,
		logger: logger,
		opts:   append(base, opts...),
	}
}

// Initialize loads both configuration files, creating any that are missing.
// It reports whether a file was created or migrated; callers should then
// exit with ExitConfigMigrated.
func (m *Manager) Initialize() (bool, error) {
	m.logger.Info("MaiCore version", "version", MMCVersion)
	m.logger.Info("loading configuration files")

	global, botChanged, err := m.loadBot()
	if err != nil {
		return false, err
	}
	model, modelChanged, err := m.loadModel()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	m.global, m.model = global, model
	m.mu.Unlock()

	m.logger.Info("configuration loaded")
	return botChanged || modelChanged, nil
}

// Global returns the bot configuration. It is nil before Initialize.
func (m *Manager) Global() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.global
}

// Model returns the model configuration. It is nil before Initialize.
func (m *Manager) Model() *ModelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// Paths returns the file locations the manager uses.
func (m *Manager) Paths() Paths {
	return m.paths
}

// OnReload registers fn to run after a successful reload.
func (m *Manager) OnReload(fn func(Kind)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Reload re-reads one configuration file. The previous configuration stays
// in place when the file fails to load.
func (m *Manager) Reload(kind Kind) error {
	switch kind {
	case KindBot:
		cfg, _, err := m.loadBot()
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.global = cfg
		m.mu.Unlock()
	case KindModel:
		cfg, _, err := m.loadModel()
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.model = cfg
		m.mu.Unlock()
	default:
		return fmt.Errorf("unknown config kind %q", kind)
	}

	m.logger.Info("configuration reloaded", "kind", string(kind))
	m.mu.RLock()
	listeners := append([]func(Kind){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(kind)
	}
	return nil
}

// Watch reloads a configuration file whenever it changes on disk.
func (m *Manager) Watch(w *watcher.Watcher) error {
	files := []struct {
		kind Kind
		path string
	}{
		{KindBot, m.paths.BotConfig},
		{KindModel, m.paths.ModelConfig},
	}
	for _, f := range files {
		kind := f.kind
		id, err := w.Register(string(kind)+"_config", func(_ context.Context, _ string, change watcher.ChangeType) error {
			if change == watcher.Deleted {
				return nil
			}
			return m.Reload(kind)
		}, f.path)
		if err != nil {
			return fmt.Errorf("watching %s config: %w", kind, err)
		}
		m.mu.Lock()
		m.watchIDs = append(m.watchIDs, id)
		m.mu.Unlock()
	}
	return nil
}

// StopWatching removes the registrations made by Watch.
func (m *Manager) StopWatching(w *watcher.Watcher) error {
	m.mu.Lock()
	ids := m.watchIDs
	m.watchIDs = nil
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := w.Unregister(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) loadBot() (*Config, bool, error) {
	created, err := m.ensureFile(m.paths.BotConfig, ConfigVersion, func() (any, error) {
		return schema.New[Config]()
	})
	if err != nil {
		return nil, false, err
	}
	cfg, migrated, err := configfile.Load[Config](m.paths.BotConfig, ConfigVersion, m.opts...)
	if err != nil {
		m.logger.Error("bot config failed to load", "file", m.paths.BotConfig, "error", err)
		return nil, false, err
	}
	return cfg, created || migrated, nil
}

func (m *Manager) loadModel() (*ModelConfig, bool, error) {
	created, err := m.ensureFile(m.paths.ModelConfig, ModelConfigVersion, func() (any, error) {
		return DefaultModelConfig(), nil
	})
	if err != nil {
		return nil, false, err
	}
	cfg, migrated, err := configfile.Load[ModelConfig](m.paths.ModelConfig, ModelConfigVersion, m.opts...)
	if err != nil {
		m.logger.Error("model config failed to load", "file", m.paths.ModelConfig, "error", err)
		return nil, false, err
	}
	expandProviderEnv(cfg)
	return cfg, created || migrated, nil
}

// ensureFile writes a default configuration when path does not exist.
func (m *Manager) ensureFile(path, version string, defaults func() (any, error)) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}

	cfg, err := defaults()
	if err != nil {
		return false, fmt.Errorf("building default config: %w", err)
	}
	if _, err := configfile.Write(cfg, path, version, m.opts...); err != nil {
		return false, fmt.Errorf("writing default config: %w", err)
	}
	m.logger.Warn("config file not found, generated a default one", "file", path)
	return true, nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envRef.FindStringSubmatch(match)[1])
	})
}

func expandProviderEnv(cfg *ModelConfig) {
	for i := range cfg.APIProviders {
		p := &cfg.APIProviders[i]
		p.APIKey = expandEnvVars(p.APIKey)
		p.BaseURL = expandEnvVars(p.BaseURL)
	}
}
