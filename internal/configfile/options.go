// ABOUTME: Functional options shared by Sync, Load, Write and Encode
// ABOUTME: Logger, clock for backup names, and secret-field redaction

package configfile

import (
	"log/slog"
	"time"
)

// Option configures file synchronization.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
	redact bool
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger that receives change reports.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRedaction leaves fields tagged secret out of Encode and Plain output.
// Write and Sync ignore it: a rewritten config file keeps every value.
func WithRedaction() Option {
	return func(o *options) { o.redact = true }
}
