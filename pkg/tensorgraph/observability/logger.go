// Package observability provides structured logging, metrics, and
// distributed tracing for tensorgraph executions.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds execution context to a logger.
// Returns a new logger with run_id and node_id fields.
func EnrichLogger(logger *slog.Logger, runID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
	)
}

// LogExecStart logs the start of a graph execution.
func LogExecStart(logger *slog.Logger, runID, mode string) {
	if logger == nil {
		return
	}
	logger.Info("execution starting",
		slog.String("run_id", runID),
		slog.String("mode", mode),
	)
}

// LogExecComplete logs successful execution completion.
func LogExecComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount, disposed int) {
	if logger == nil {
		return
	}
	logger.Info("execution completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
		slog.Int("tensors_disposed", disposed),
	)
}

// LogExecError logs execution failure.
func LogExecError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("execution failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID, kind string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.String("op", kind),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogNodeDeferred logs the dispatch of a deferred operation.
func LogNodeDeferred(logger *slog.Logger, nodeID, frame string) {
	if logger == nil {
		return
	}
	logger.Debug("node deferred",
		slog.String("node_id", nodeID),
		slog.String("frame", frame),
	)
}

// LogDisposal logs intermediate tensor disposal after a node.
func LogDisposal(logger *slog.Logger, nodeID string, count int) {
	if logger == nil {
		return
	}
	logger.Debug("intermediates disposed",
		slog.String("node_id", nodeID),
		slog.Int("count", count),
	)
}

// LogPlanCompile logs compilation of a new execution plan.
func LogPlanCompile(logger *slog.Logger, key string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Debug("plan compiled",
		slog.String("plan_key", key),
		slog.Int("nodes", nodeCount),
	)
}

// LogPlanCacheHit logs reuse of a memoized execution plan.
func LogPlanCacheHit(logger *slog.Logger, key string) {
	if logger == nil {
		return
	}
	logger.Debug("plan cache hit",
		slog.String("plan_key", key),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
