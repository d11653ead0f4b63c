// ABOUTME: Project directory layout resolved from MAIBOT_ROOT or the working directory
// ABOUTME: Locates config files, the data directory and plugin directories

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RootEnv overrides the project root.
const RootEnv = "MAIBOT_ROOT"

// Paths holds the absolute locations the application reads and writes.
type Paths struct {
	Root               string
	ConfigDir          string
	BotConfig          string
	ModelConfig        string
	DataDir            string
	PluginsDir         string
	InternalPluginsDir string
}

// NewPaths lays out the standard directories under root.
func NewPaths(root string) Paths {
	configDir := filepath.Join(root, "configs")
	return Paths{
		Root:               root,
		ConfigDir:          configDir,
		BotConfig:          filepath.Join(configDir, "bot_config.toml"),
		ModelConfig:        filepath.Join(configDir, "model_config.toml"),
		DataDir:            filepath.Join(root, "data"),
		PluginsDir:         filepath.Join(root, "plugins"),
		InternalPluginsDir: filepath.Join(root, "src", "plugins"),
	}
}

// DefaultPaths resolves the project root from MAIBOT_ROOT, falling back to
// the working directory.
func DefaultPaths() (Paths, error) {
	root := os.Getenv(RootEnv)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Paths{}, fmt.Errorf("getting working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving project root: %w", err)
	}
	return NewPaths(abs), nil
}

// Resolve makes a configured path absolute relative to the project root.
func (p Paths) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}
