package x402

import (
	"github.com/zoobzio/clockz"

	"github.com/vitwit/x402-mvx/logger"
	"github.com/vitwit/x402-mvx/metrics"
)

// Option customizes an X402 instance at construction time.
type Option func(*X402)

// WithLogger replaces the default noop logger.
func WithLogger(l logger.Logger) Option {
	return func(x *X402) {
		x.log = l
	}
}

// WithMetrics replaces the default noop recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(x *X402) {
		x.rec = r
	}
}

// WithClock replaces the real clock, for deterministic tests.
func WithClock(c clockz.Clock) Option {
	return func(x *X402) {
		x.clock = c
	}
}
