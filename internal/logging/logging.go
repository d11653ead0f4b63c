// ABOUTME: Logger construction from the [log] config section
// ABOUTME: Chooses the coloured text handler or slog's JSON handler

package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ModuleKey is the attribute naming the subsystem that logged a record.
const ModuleKey = "module"

// Options selects level and output format.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // text or json
	NoColor bool

	// Leveler overrides Level, e.g. a *slog.LevelVar adjusted on reload.
	Leveler slog.Leveler
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	var level slog.Leveler = ParseLevel(opts.Level)
	if opts.Leveler != nil {
		level = opts.Leveler
	}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = NewColorHandler(w, level, opts.NoColor)
	}
	return slog.New(handler)
}

// Module returns logger tagged with the module attribute.
func Module(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(ModuleKey, name)
}
