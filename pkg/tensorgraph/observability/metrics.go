package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records tensorgraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID, kind string, duration time.Duration, err error)

	// RecordExecution records a completed graph execution.
	// Mode is "static" or "dynamic".
	RecordExecution(ctx context.Context, mode string, success bool, duration time.Duration)

	// RecordDisposal records intermediate tensors released by the lifecycle tracker.
	RecordDisposal(ctx context.Context, count int64)

	// RecordPlanLookup records an execution plan cache lookup.
	RecordPlanLookup(ctx context.Context, hit bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	executions     metric.Int64Counter
	execLatency    metric.Float64Histogram
	disposals      metric.Int64Counter
	planLookups    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("tensorgraph")

	nodeExecutions, err := meter.Int64Counter("tensorgraph.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("tensorgraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("tensorgraph.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	executions, err := meter.Int64Counter("tensorgraph.executions",
		metric.WithDescription("Number of graph executions"),
	)
	if err != nil {
		return nil, err
	}

	execLatency, err := meter.Float64Histogram("tensorgraph.execution.latency_ms",
		metric.WithDescription("Graph execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	disposals, err := meter.Int64Counter("tensorgraph.tensor.disposals",
		metric.WithDescription("Number of intermediate tensors disposed"),
	)
	if err != nil {
		return nil, err
	}

	planLookups, err := meter.Int64Counter("tensorgraph.plan.lookups",
		metric.WithDescription("Number of execution plan cache lookups"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		executions:     executions,
		execLatency:    execLatency,
		disposals:      disposals,
		planLookups:    planLookups,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID, kind string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("node_id", nodeID),
		attribute.String("op", kind),
	}

	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordExecution records a graph execution.
func (m *otelMetrics) RecordExecution(ctx context.Context, mode string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	}
	m.executions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.execLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordDisposal records released intermediate tensors.
func (m *otelMetrics) RecordDisposal(ctx context.Context, count int64) {
	if count == 0 {
		return
	}
	m.disposals.Add(ctx, count)
}

// RecordPlanLookup records a plan cache lookup.
func (m *otelMetrics) RecordPlanLookup(ctx context.Context, hit bool) {
	m.planLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}
