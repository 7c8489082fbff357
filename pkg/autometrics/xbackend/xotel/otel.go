// Package xotel 是基于 OpenTelemetry metric API 的后端适配器。
//
// 默认使用全局 MeterProvider（otel.GetMeterProvider），导出方式由宿主进程配置。
//
//	backend, err := xotel.New(xotel.WithMeterProvider(provider))
package xotel

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// Name 后端名称。
const Name = "opentelemetry"

const defaultInstrumentationName = "github.com/omeyang/xautometrics"

type config struct {
	name                string
	instrumentationName string
	meterProvider       metric.MeterProvider
	buckets             []float64
	logger              xlog.Logger
}

// Option 配置 OTel 后端。
type Option func(*config)

// WithName 覆盖后端名称，空值被忽略。用于在 OTel SDK 之上封装的后端。
func WithName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithInstrumentationName 设置 instrumentation scope 名称，空值被忽略。
func WithInstrumentationName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，nil 被忽略。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithBuckets 设置延迟直方图桶边界（秒），空值被忽略。
func WithBuckets(buckets []float64) Option {
	return func(cfg *config) {
		if len(buckets) > 0 {
			cfg.buckets = xbackend.MergeBuckets(buckets)
		}
	}
}

// WithLogger 设置记录被吸收故障的 Logger。
func WithLogger(logger xlog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Backend 是 OpenTelemetry 后端。
type Backend struct {
	name       string
	guard      *xbackend.Guard
	counters   map[string]metric.Int64Counter
	duration   metric.Float64Histogram
	concurrent metric.Float64UpDownCounter
	buildInfo  atomic.Pointer[xbackend.BuildInfo]
	callback   metric.Registration
}

var _ xbackend.Backend = (*Backend)(nil)

// New 创建 OpenTelemetry 后端，按 xlabel 的指标规格创建全部仪表。
func New(opts ...Option) (*Backend, error) {
	cfg := &config{
		name:                Name,
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
		buckets:             xbackend.DefaultBuckets,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	b := &Backend{
		name:     cfg.name,
		guard:    xbackend.NewGuard(cfg.name, cfg.logger),
		counters: make(map[string]metric.Int64Counter),
	}

	var buildInfoGauge metric.Int64ObservableGauge
	for _, spec := range xlabel.Metrics() {
		var err error
		switch {
		case spec.Name == xlabel.BuildInfo:
			buildInfoGauge, err = meter.Int64ObservableGauge(spec.Name,
				metric.WithDescription(spec.Description))
		case spec.Kind == xlabel.KindCounter:
			b.counters[spec.Name], err = meter.Int64Counter(spec.Name,
				metric.WithDescription(spec.Description),
				metric.WithUnit("1"))
		case spec.Kind == xlabel.KindHistogram:
			b.duration, err = meter.Float64Histogram(spec.Name,
				metric.WithDescription(spec.Description),
				metric.WithUnit("s"),
				metric.WithExplicitBucketBoundaries(cfg.buckets...))
		case spec.Kind == xlabel.KindGauge:
			b.concurrent, err = meter.Float64UpDownCounter(spec.Name,
				metric.WithDescription(spec.Description))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", xbackend.ErrCreateInstrument, spec.Name, err)
		}
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if info := b.buildInfo.Load(); info != nil {
			o.ObserveInt64(buildInfoGauge, 1, metric.WithAttributes(toAttributes(info.Labels())...))
		}
		return nil
	}, buildInfoGauge)
	if err != nil {
		return nil, fmt.Errorf("%w: %s callback: %w", xbackend.ErrCreateInstrument, xlabel.BuildInfo, err)
	}
	b.callback = reg

	return b, nil
}

// Name 返回后端名称。
func (b *Backend) Name() string { return b.name }

// IncrementCounter 实现 xbackend.Backend。
func (b *Backend) IncrementCounter(ctx context.Context, name string, labels xlabel.Labels) {
	counter, ok := b.counters[name]
	if !ok {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		counter.Add(recordContext(ctx), 1, metric.WithAttributes(toAttributes(labels)...))
	})
}

// RecordHistogram 实现 xbackend.Backend。
func (b *Backend) RecordHistogram(ctx context.Context, name string, labels xlabel.Labels, value float64) {
	if name != xlabel.CallsDuration {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		b.duration.Record(recordContext(ctx), value, metric.WithAttributes(toAttributes(labels)...))
	})
}

// AddToGauge 实现 xbackend.Backend。
func (b *Backend) AddToGauge(ctx context.Context, name string, labels xlabel.Labels, delta float64) {
	if name != xlabel.CallsConcurrent {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		b.concurrent.Add(recordContext(ctx), delta, metric.WithAttributes(toAttributes(labels)...))
	})
}

// SetBuildInfo 设置 build_info，由可观测仪表在每次采集时上报。
func (b *Backend) SetBuildInfo(_ context.Context, info xbackend.BuildInfo) {
	b.buildInfo.Store(&info)
}

// Dropped 返回被吸收的失败次数。
func (b *Backend) Dropped() uint64 { return b.guard.Dropped() }

// Close 注销 build_info 回调。仪表本身归 MeterProvider 管理。
func (b *Backend) Close() error {
	if b.callback == nil {
		return nil
	}
	return b.callback.Unregister()
}

// recordContext 使用不可取消的 context 记录：请求已取消/超时时，
// 失败与超时的调用仍然需要被计入。
func recordContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

func toAttributes(labels xlabel.Labels) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, lb := range labels {
		attrs[i] = attribute.String(lb.Key, lb.Value)
	}
	return attrs
}
