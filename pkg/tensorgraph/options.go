package tensorgraph

import (
	"log/slog"

	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/capture"
	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/observability"
)

// execConfig holds executor configuration.
type execConfig struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	tracingEnabled bool

	// keepIntermediates retains clones of every intermediate tensor
	// for post-hoc inspection. Off by default for performance.
	keepIntermediates bool
	captureStore      capture.Store
}

// defaultExecConfig returns the default executor configuration.
func defaultExecConfig() execConfig {
	return execConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures an Executor.
type Option func(*execConfig)

// WithLogger sets the logger used for execution logging.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *execConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
// Use observability.NewMetricsRecorder() for OpenTelemetry metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *execConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry span creation around executions
// and node runs, using the global tracer provider.
func WithTracing() Option {
	return func(c *execConfig) {
		c.tracingEnabled = true
		c.spans = observability.NewSpanManager()
	}
}

// WithSpanManager sets a custom span manager and enables tracing.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(c *execConfig) {
		if sm != nil {
			c.tracingEnabled = true
			c.spans = sm
		}
	}
}

// WithKeepIntermediates retains a clone of every intermediate tensor
// produced during execution, retrievable via GetIntermediateTensors.
// Disabled by default: cloning every intermediate is expensive.
func WithKeepIntermediates() Option {
	return func(c *execConfig) {
		c.keepIntermediates = true
	}
}

// WithCaptureStore persists retained intermediates to the given store.
// Implies WithKeepIntermediates.
func WithCaptureStore(store capture.Store) Option {
	return func(c *execConfig) {
		if store != nil {
			c.keepIntermediates = true
			c.captureStore = store
		}
	}
}
