package xotel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
)

// ============================================================================
// 测试辅助函数
// ============================================================================

func newTestMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return mp, reader
}

func newTestBackend(t *testing.T, opts ...Option) (*Backend, *sdkmetric.ManualReader) {
	t.Helper()
	mp, reader := newTestMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	b, err := New(append([]Option{WithMeterProvider(mp)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func attrSet(labels xlabel.Labels) *attribute.Set {
	set := attribute.NewSet(toAttributes(labels)...)
	return &set
}

func testIdentity() xlabel.Identity {
	return xlabel.Identity{FunctionID: xlabel.Func("shop", "checkout")}
}

// ============================================================================
// 构造
// ============================================================================

func TestNew_Default(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, Name, b.Name())
	assert.NoError(t, b.Close())
}

func TestNew_NilOptions(t *testing.T) {
	b, err := New(nil, WithMeterProvider(nil), WithInstrumentationName(""), WithBuckets(nil), WithLogger(nil))
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

// ============================================================================
// 记录
// ============================================================================

func TestBackend_IncrementCounter(t *testing.T) {
	b, reader := newTestBackend(t)
	ctx := context.Background()

	obj := xobjective.MustNew("api", xobjective.WithSuccessRate(xobjective.P99_9))
	ok := xlabel.BuildLabels(testIdentity(), obj, xlabel.OK())
	fail := xlabel.BuildLabels(testIdentity(), obj, xlabel.Error("timeout"))

	for range 3 {
		b.IncrementCounter(ctx, xlabel.CallsTotal, ok)
	}
	b.IncrementCounter(ctx, xlabel.CallsTotal, fail)

	m := collect(t, reader)[xlabel.CallsTotal]
	sum, isSum := m.Data.(metricdata.Sum[int64])
	require.True(t, isSum)
	assert.True(t, sum.IsMonotonic)

	values := make(map[attribute.Distinct]int64)
	for _, dp := range sum.DataPoints {
		values[dp.Attributes.Equivalent()] = dp.Value
	}
	assert.Equal(t, int64(3), values[attrSet(ok).Equivalent()])
	assert.Equal(t, int64(1), values[attrSet(fail).Equivalent()])

	v, found := attrSet(fail).Value(attribute.Key(xlabel.KeyErrorCategory))
	require.True(t, found)
	assert.Equal(t, "timeout", v.AsString())
}

func TestBackend_RecordHistogram(t *testing.T) {
	b, reader := newTestBackend(t, WithBuckets([]float64{0.1, 0.2, 0.5}))
	labels := xlabel.HistogramLabels(testIdentity(), xobjective.Objective{}, xlabel.OK())

	b.RecordHistogram(context.Background(), xlabel.CallsDuration, labels, 0.15)
	b.RecordHistogram(context.Background(), xlabel.CallsDuration, labels, 0.3)

	m := collect(t, reader)[xlabel.CallsDuration]
	assert.Equal(t, "s", m.Unit)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)

	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.InDelta(t, 0.45, dp.Sum, 1e-9)
	assert.Equal(t, []float64{0.1, 0.2, 0.5}, dp.Bounds)
	assert.Equal(t, []uint64{0, 1, 0, 1}, dp.BucketCounts)
}

func TestBackend_RecordHistogram_ResultLabels(t *testing.T) {
	b, reader := newTestBackend(t)
	ok := xlabel.HistogramLabels(testIdentity(), xobjective.Objective{}, xlabel.OK())
	fail := xlabel.HistogramLabels(testIdentity(), xobjective.Objective{}, xlabel.Error("timeout"))

	b.RecordHistogram(context.Background(), xlabel.CallsDuration, ok, 0.01)
	b.RecordHistogram(context.Background(), xlabel.CallsDuration, fail, 2)

	hist, isHist := collect(t, reader)[xlabel.CallsDuration].Data.(metricdata.Histogram[float64])
	require.True(t, isHist)
	require.Len(t, hist.DataPoints, 2)

	counts := make(map[attribute.Distinct]uint64)
	for _, dp := range hist.DataPoints {
		counts[dp.Attributes.Equivalent()] = dp.Count
	}
	assert.Equal(t, uint64(1), counts[attrSet(ok).Equivalent()])
	assert.Equal(t, uint64(1), counts[attrSet(fail).Equivalent()])

	v, found := attrSet(fail).Value(attribute.Key(xlabel.KeyResult))
	require.True(t, found)
	assert.Equal(t, xlabel.ResultError, v.AsString())
}

func TestBackend_AddToGauge(t *testing.T) {
	b, reader := newTestBackend(t)
	labels := xlabel.GaugeLabels(xlabel.Func("shop", "checkout"))

	b.AddToGauge(context.Background(), xlabel.CallsConcurrent, labels, 1)
	b.AddToGauge(context.Background(), xlabel.CallsConcurrent, labels, 1)
	b.AddToGauge(context.Background(), xlabel.CallsConcurrent, labels, -1)

	m := collect(t, reader)[xlabel.CallsConcurrent]
	sum, ok := m.Data.(metricdata.Sum[float64])
	require.True(t, ok)
	assert.False(t, sum.IsMonotonic)
	require.Len(t, sum.DataPoints, 1)
	assert.InDelta(t, 1.0, sum.DataPoints[0].Value, 1e-9)
}

func TestBackend_CanceledContextStillRecords(t *testing.T) {
	b, reader := newTestBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	cancel()

	labels := xlabel.BuildLabels(testIdentity(), xobjective.Objective{}, xlabel.Error("deadline_exceeded"))
	b.IncrementCounter(ctx, xlabel.CallsTotal, labels)

	sum := collect(t, reader)[xlabel.CallsTotal].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestBackend_SetBuildInfo(t *testing.T) {
	b, reader := newTestBackend(t)

	_, present := collect(t, reader)[xlabel.BuildInfo]
	assert.False(t, present, "build_info 未设置前不应上报")

	b.SetBuildInfo(context.Background(), xbackend.BuildInfo{Version: "1.2.3", Commit: "abc", Branch: "main"})

	m := collect(t, reader)[xlabel.BuildInfo]
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)

	v, _ := gauge.DataPoints[0].Attributes.Value(attribute.Key(xlabel.KeyVersion))
	assert.Equal(t, "1.2.3", v.AsString())
}

func TestBackend_UnknownMetricIsDropped(t *testing.T) {
	b, reader := newTestBackend(t)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		b.IncrementCounter(ctx, "nope_total", nil)
		b.RecordHistogram(ctx, xlabel.CallsTotal, nil, 1)
		b.AddToGauge(ctx, xlabel.CallsDuration, nil, 1)
	})
	assert.Equal(t, uint64(3), b.Dropped())

	_, present := collect(t, reader)["nope_total"]
	assert.False(t, present)
}

func TestBackend_ObjectiveCounters(t *testing.T) {
	b, reader := newTestBackend(t)
	obj := xobjective.MustNew("api", xobjective.WithLatency(200*time.Millisecond, xobjective.P99))

	b.IncrementCounter(context.Background(), xlabel.ObjectiveCallsTotal, xlabel.ObjectiveLabels(obj, xlabel.OK()))
	b.IncrementCounter(context.Background(), xlabel.ObjectiveBelowThreshold, xlabel.BelowThresholdLabels(obj))

	metrics := collect(t, reader)
	for _, name := range []string{xlabel.ObjectiveCallsTotal, xlabel.ObjectiveBelowThreshold} {
		sum, ok := metrics[name].Data.(metricdata.Sum[int64])
		require.True(t, ok, name)
		require.Len(t, sum.DataPoints, 1, name)
		assert.Equal(t, int64(1), sum.DataPoints[0].Value, name)
	}
}
