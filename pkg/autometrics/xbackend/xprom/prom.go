// Package xprom 是直接基于 prometheus/client_golang 的后端适配器。
//
// Prometheus 要求每个指标的标签键集合固定，适配器按 xlabel.Metrics()
// 的完整键集合注册向量，缺省的可选标签以空值填充（Prometheus 将其视为不存在）。
//
//	backend, err := xprom.New()
//	http.Handle("/metrics", backend.Handler())
package xprom

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// Name 后端名称。
const Name = "prometheus"

type config struct {
	registry          *prometheus.Registry
	buckets           []float64
	logger            xlog.Logger
	runtimeCollectors bool
	exemplars         bool
}

// Option 配置 Prometheus 后端。
type Option func(*config)

// WithRegistry 使用指定的 Registry，nil 被忽略。默认创建独立 Registry。
func WithRegistry(registry *prometheus.Registry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.registry = registry
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

// WithRuntimeCollectors 同时注册 Go 运行时与进程采集器。
func WithRuntimeCollectors() Option {
	return func(cfg *config) {
		cfg.runtimeCollectors = true
	}
}

// WithExemplars 为计数器与直方图附加 trace_id/span_id 样例（exemplar），
// 取自 context 中已采样的 OpenTelemetry span。Handler 随之启用 OpenMetrics 格式。
func WithExemplars() Option {
	return func(cfg *config) {
		cfg.exemplars = true
	}
}

type counterVec struct {
	vec  *prometheus.CounterVec
	keys []string
}

// Backend 是 Prometheus 后端。
type Backend struct {
	guard        *xbackend.Guard
	registry     *prometheus.Registry
	counters     map[string]counterVec
	duration     *prometheus.HistogramVec
	durationKeys []string
	concurrent   *prometheus.GaugeVec
	gaugeKeys    []string
	buildInfo    *prometheus.GaugeVec
	exemplars    bool
}

var _ xbackend.Backend = (*Backend)(nil)

// New 创建 Prometheus 后端并注册全部指标向量。
//
// Registry 中已存在同名同模式的指标时复用已注册的向量，
// 同一 Registry 可被多个 Backend 共享。
func New(opts ...Option) (*Backend, error) {
	cfg := &config{buckets: xbackend.DefaultBuckets}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	b := &Backend{
		guard:     xbackend.NewGuard(Name, cfg.logger),
		registry:  cfg.registry,
		counters:  make(map[string]counterVec),
		exemplars: cfg.exemplars,
	}

	for _, spec := range xlabel.Metrics() {
		var err error
		switch {
		case spec.Name == xlabel.BuildInfo:
			b.buildInfo, err = register(cfg.registry, prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Name: spec.Name, Help: spec.Description}, spec.Keys))
		case spec.Kind == xlabel.KindCounter:
			var vec *prometheus.CounterVec
			vec, err = register(cfg.registry, prometheus.NewCounterVec(
				prometheus.CounterOpts{Name: spec.Name, Help: spec.Description}, spec.Keys))
			b.counters[spec.Name] = counterVec{vec: vec, keys: spec.Keys}
		case spec.Kind == xlabel.KindHistogram:
			b.durationKeys = spec.Keys
			b.duration, err = register(cfg.registry, prometheus.NewHistogramVec(
				prometheus.HistogramOpts{Name: spec.Name, Help: spec.Description, Buckets: cfg.buckets}, spec.Keys))
		case spec.Kind == xlabel.KindGauge:
			b.gaugeKeys = spec.Keys
			b.concurrent, err = register(cfg.registry, prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Name: spec.Name, Help: spec.Description}, spec.Keys))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", xbackend.ErrCreateInstrument, spec.Name, err)
		}
	}

	if cfg.runtimeCollectors {
		if _, err := register(cfg.registry, collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("%w: go collector: %w", xbackend.ErrCreateInstrument, err)
		}
		if _, err := register(cfg.registry,
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, fmt.Errorf("%w: process collector: %w", xbackend.ErrCreateInstrument, err)
		}
	}

	return b, nil
}

// register 注册 collector；已注册时返回已存在的实例。
func register[C prometheus.Collector](registry *prometheus.Registry, c C) (C, error) {
	err := registry.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// Name 返回后端名称。
func (b *Backend) Name() string { return Name }

// IncrementCounter 实现 xbackend.Backend。
func (b *Backend) IncrementCounter(ctx context.Context, name string, labels xlabel.Labels) {
	cv, ok := b.counters[name]
	if !ok {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		c := cv.vec.WithLabelValues(labels.Pad(cv.keys)...)
		if ex := b.exemplar(ctx); ex != nil {
			c.(prometheus.ExemplarAdder).AddWithExemplar(1, ex)
			return
		}
		c.Inc()
	})
}

// RecordHistogram 实现 xbackend.Backend。
func (b *Backend) RecordHistogram(ctx context.Context, name string, labels xlabel.Labels, value float64) {
	if name != xlabel.CallsDuration {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		o := b.duration.WithLabelValues(labels.Pad(b.durationKeys)...)
		if ex := b.exemplar(ctx); ex != nil {
			o.(prometheus.ExemplarObserver).ObserveWithExemplar(value, ex)
			return
		}
		o.Observe(value)
	})
}

// AddToGauge 实现 xbackend.Backend。
func (b *Backend) AddToGauge(ctx context.Context, name string, labels xlabel.Labels, delta float64) {
	if name != xlabel.CallsConcurrent {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		b.concurrent.WithLabelValues(labels.Pad(b.gaugeKeys)...).Add(delta)
	})
}

// SetBuildInfo 发布 build_info，替换此前的值。
func (b *Backend) SetBuildInfo(ctx context.Context, info xbackend.BuildInfo) {
	b.guard.Do(ctx, xlabel.BuildInfo, func() {
		b.buildInfo.Reset()
		b.buildInfo.With(prometheus.Labels(info.Labels().Map())).Set(1)
	})
}

// Dropped 返回被吸收的失败次数。
func (b *Backend) Dropped() uint64 { return b.guard.Dropped() }

// Gatherer 返回底层 Registry，用于测试或自定义暴露。
func (b *Backend) Gatherer() prometheus.Gatherer { return b.registry }

// Handler 返回 /metrics 的 HTTP handler。
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{EnableOpenMetrics: b.exemplars})
}
