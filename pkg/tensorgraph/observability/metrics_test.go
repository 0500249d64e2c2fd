package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a function to collect metrics.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordNodeExecution(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records execution count", func(t *testing.T) {
		m.RecordNodeExecution(ctx, "matmul", "MatMul", 50*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.node.executions")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok, "Expected Sum type")
		require.NotEmpty(t, sum.DataPoints)

		found := false
		for _, dp := range sum.DataPoints {
			for _, attr := range dp.Attributes.ToSlice() {
				if attr.Key == "node_id" && attr.Value.AsString() == "matmul" {
					found = true
					assert.GreaterOrEqual(t, dp.Value, int64(1))
				}
			}
		}
		assert.True(t, found, "Expected to find datapoint for node_id=matmul")
	})

	t.Run("records op kind attribute", func(t *testing.T) {
		m.RecordNodeExecution(ctx, "act", "Relu", 10*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.node.executions")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)

		found := false
		for _, dp := range sum.DataPoints {
			for _, attr := range dp.Attributes.ToSlice() {
				if attr.Key == "op" && attr.Value.AsString() == "Relu" {
					found = true
				}
			}
		}
		assert.True(t, found, "Expected op=Relu attribute")
	})

	t.Run("records latency", func(t *testing.T) {
		m.RecordNodeExecution(ctx, "transform", "Identity", 100*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.node.latency_ms")
		require.NotNil(t, metric)

		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})

	t.Run("records errors when present", func(t *testing.T) {
		testErr := errors.New("kernel failed")
		m.RecordNodeExecution(ctx, "failing", "Div", 10*time.Millisecond, testErr)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.node.errors")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok, "Expected Sum type")
		require.NotEmpty(t, sum.DataPoints)

		found := false
		for _, dp := range sum.DataPoints {
			for _, attr := range dp.Attributes.ToSlice() {
				if attr.Key == "node_id" && attr.Value.AsString() == "failing" {
					found = true
					assert.GreaterOrEqual(t, dp.Value, int64(1))
				}
			}
		}
		assert.True(t, found, "Expected to find error datapoint")
	})
}

func TestRecordExecution(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records successful executions", func(t *testing.T) {
		m.RecordExecution(ctx, "static", true, 500*time.Millisecond)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.executions")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.NotEmpty(t, sum.DataPoints)
	})

	t.Run("records failed executions with mode", func(t *testing.T) {
		m.RecordExecution(ctx, "dynamic", false, 100*time.Millisecond)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.executions")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)

		found := false
		for _, dp := range sum.DataPoints {
			var mode string
			var success, hasSuccess bool
			for _, attr := range dp.Attributes.ToSlice() {
				switch attr.Key {
				case "mode":
					mode = attr.Value.AsString()
				case "success":
					success = attr.Value.AsBool()
					hasSuccess = true
				}
			}
			if mode == "dynamic" && hasSuccess && !success {
				found = true
			}
		}
		assert.True(t, found, "Expected mode=dynamic success=false datapoint")
	})

	t.Run("records execution latency", func(t *testing.T) {
		m.RecordExecution(ctx, "static", true, 200*time.Millisecond)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.execution.latency_ms")
		require.NotNil(t, metric)

		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})
}

func TestRecordDisposal(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records disposal counts", func(t *testing.T) {
		m.RecordDisposal(ctx, 3)
		m.RecordDisposal(ctx, 2)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "tensorgraph.tensor.disposals")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.NotEmpty(t, sum.DataPoints)
		assert.Equal(t, int64(5), sum.DataPoints[0].Value)
	})

	t.Run("skips zero counts", func(t *testing.T) {
		before := collectMetrics(t, reader)
		var beforeVal int64
		if metric := findMetric(before, "tensorgraph.tensor.disposals"); metric != nil {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				beforeVal = sum.DataPoints[0].Value
			}
		}

		m.RecordDisposal(ctx, 0)

		after := collectMetrics(t, reader)
		metric := findMetric(after, "tensorgraph.tensor.disposals")
		if metric != nil {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			if len(sum.DataPoints) > 0 {
				assert.Equal(t, beforeVal, sum.DataPoints[0].Value)
			}
		}
	})
}

func TestRecordPlanLookup(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	m.RecordPlanLookup(ctx, false)
	m.RecordPlanLookup(ctx, true)
	m.RecordPlanLookup(ctx, true)

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "tensorgraph.plan.lookups")
	require.NotNil(t, metric)

	sum, ok := metric.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var hits, misses int64
	for _, dp := range sum.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if attr.Key == "hit" {
				if attr.Value.AsBool() {
					hits = dp.Value
				} else {
					misses = dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestOtelMetrics_AllMethods(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()

	m.RecordNodeExecution(ctx, "test_node", "Add", 25*time.Millisecond, nil)
	m.RecordNodeExecution(ctx, "error_node", "Div", 10*time.Millisecond, errors.New("test"))
	m.RecordExecution(ctx, "static", true, 100*time.Millisecond)
	m.RecordExecution(ctx, "dynamic", false, 50*time.Millisecond)
	m.RecordDisposal(ctx, 4)
	m.RecordPlanLookup(ctx, true)

	rm := collectMetrics(t, reader)
	for _, name := range []string{
		"tensorgraph.node.executions",
		"tensorgraph.node.latency_ms",
		"tensorgraph.node.errors",
		"tensorgraph.executions",
		"tensorgraph.execution.latency_ms",
		"tensorgraph.tensor.disposals",
		"tensorgraph.plan.lookups",
	} {
		assert.NotNil(t, findMetric(rm, name), "Expected metric %s to be recorded", name)
	}
}
