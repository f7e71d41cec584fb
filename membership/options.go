package membership

import (
	"io"
	"log/slog"
	"time"
)

// options configures the Watcher behavior (internal only).
type options struct {
	pollInterval        time.Duration
	defaultVirtualCount uint32
	logger              *slog.Logger
}

// defaultOptions returns sensible defaults.
func defaultOptions() options {
	return options{
		pollInterval:        5 * time.Second,
		defaultVirtualCount: 100,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option is a functional option for configuring a Watcher.
type Option func(*options)

// WithPollInterval sets how often the member source is polled.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.pollInterval = interval
		}
	}
}

// WithDefaultVirtualCount sets the virtual node count for members that do not carry one.
func WithDefaultVirtualCount(count uint32) Option {
	return func(o *options) {
		if count > 0 {
			o.defaultVirtualCount = count
		}
	}
}

// WithLogger sets the logger for the watcher.
// If the logger is nil, the watcher will use a no-op logger.
// DEFAULT: A no-op logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			return
		}

		o.logger = logger
	}
}
