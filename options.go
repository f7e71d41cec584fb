package hashring

import (
	"io"
	"log/slog"
)

// options configures the Ring behavior (internal only).
type options struct {
	hasher               Hasher
	maxPlacementAttempts int
	logger               *slog.Logger
}

// defaultOptions returns sensible defaults.
func defaultOptions() options {
	return options{
		hasher:               MurmurHasher{},
		maxPlacementAttempts: 4096,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option is a functional option for configuring a Ring.
type Option func(*options)

// WithHasher sets the hash function used for virtual node names and keys.
// DEFAULT: MurmurHasher
func WithHasher(hasher Hasher) Option {
	return func(o *options) {
		if hasher == nil {
			o.hasher = MurmurHasher{}
			return
		}

		o.hasher = hasher
	}
}

// WithMaxPlacementAttempts bounds the collision retries spent placing a single virtual node.
// Values below 1 are ignored.
func WithMaxPlacementAttempts(attempts int) Option {
	return func(o *options) {
		if attempts > 0 {
			o.maxPlacementAttempts = attempts
		}
	}
}

// WithLogger sets the logger for the ring.
// If the logger is nil, the ring will use a no-op logger.
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
