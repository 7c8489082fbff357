// Package xgokit 是基于 go-kit metrics 接口的后端适配器。
//
// go-kit 把指标抽象为 Counter/Gauge/Histogram 三个接口，标签以 With(k1, v1, ...)
// 传入。任何实现这些接口的指标库都可以通过 New 接入；包内提供两种现成组合：
//
//   - NewGeneric：进程内存储（metrics/generic），可直接读取数值，适合测试和调试
//   - NewPrometheus：经 go-kit 的 Prometheus 包装写入 client_golang Registry
package xgokit

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/go-kit/kit/metrics"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// Name 后端名称。
const Name = "gokit"

// 预置构造函数使用的后端名。
const (
	PrometheusName = "gokit-prometheus"
	GenericName    = "gokit-generic"
)

// Instruments 是按指标名组织的 go-kit 仪表。
type Instruments struct {
	// Counters 键为计数器指标名（function_calls_total 与目标计数器）。
	Counters map[string]metrics.Counter
	// Duration 对应 function_calls_duration。
	Duration metrics.Histogram
	// Concurrent 对应 function_calls_concurrent。
	Concurrent metrics.Gauge
	// BuildInfo 对应 build_info。
	BuildInfo metrics.Gauge
}

func (in Instruments) validate() error {
	for _, spec := range xlabel.Metrics() {
		var missing bool
		switch {
		case spec.Name == xlabel.BuildInfo:
			missing = in.BuildInfo == nil
		case spec.Kind == xlabel.KindCounter:
			missing = in.Counters[spec.Name] == nil
		case spec.Kind == xlabel.KindHistogram:
			missing = in.Duration == nil
		case spec.Kind == xlabel.KindGauge:
			missing = in.Concurrent == nil
		}
		if missing {
			return fmt.Errorf("%w: %s: no instrument", xbackend.ErrCreateInstrument, spec.Name)
		}
	}
	return nil
}

type config struct {
	name   string
	logger xlog.Logger
}

// Option 配置 go-kit 后端。
type Option func(*config)

// WithName 覆盖后端名称，空值被忽略。
func WithName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.name = name
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

// Backend 把记录请求转换为 go-kit 调用。
//
// 标签按指标的完整键集合填充后以键值对传给 With，
// 固定标签模式的实现（如 Prometheus）与不固定的实现都能接受。
type Backend struct {
	name        string
	guard       *xbackend.Guard
	instruments Instruments
	keys        map[string][]string

	// go-kit Gauge 没有 Reset，替换 build_info 时把上一组标签的序列置 0
	mu        sync.Mutex
	buildInfo []string
}

var _ xbackend.Backend = (*Backend)(nil)

// New 基于给定仪表创建后端。仪表缺失时返回 xbackend.ErrCreateInstrument。
func New(instruments Instruments, opts ...Option) (*Backend, error) {
	cfg := &config{name: Name}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if err := instruments.validate(); err != nil {
		return nil, err
	}

	keys := make(map[string][]string)
	for _, spec := range xlabel.Metrics() {
		keys[spec.Name] = spec.Keys
	}
	return &Backend{
		name:        cfg.name,
		guard:       xbackend.NewGuard(cfg.name, cfg.logger),
		instruments: instruments,
		keys:        keys,
	}, nil
}

// Name 返回后端名称。
func (b *Backend) Name() string { return b.name }

// IncrementCounter 实现 xbackend.Backend。
func (b *Backend) IncrementCounter(ctx context.Context, name string, labels xlabel.Labels) {
	counter, ok := b.instruments.Counters[name]
	if !ok {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		counter.With(b.pairs(name, labels)...).Add(1)
	})
}

// RecordHistogram 实现 xbackend.Backend。
func (b *Backend) RecordHistogram(ctx context.Context, name string, labels xlabel.Labels, value float64) {
	if name != xlabel.CallsDuration {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		b.instruments.Duration.With(b.pairs(name, labels)...).Observe(value)
	})
}

// AddToGauge 实现 xbackend.Backend。
func (b *Backend) AddToGauge(ctx context.Context, name string, labels xlabel.Labels, delta float64) {
	if name != xlabel.CallsConcurrent {
		b.guard.Drop(ctx, name, xbackend.ErrUnknownMetric)
		return
	}
	b.guard.Do(ctx, name, func() {
		b.instruments.Concurrent.With(b.pairs(name, labels)...).Add(delta)
	})
}

// SetBuildInfo 实现 xbackend.Backend。再次调用时替换此前的值，旧序列置 0。
func (b *Backend) SetBuildInfo(ctx context.Context, info xbackend.BuildInfo) {
	pairs := b.pairs(xlabel.BuildInfo, info.Labels())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guard.Do(ctx, xlabel.BuildInfo, func() {
		if b.buildInfo != nil && !slices.Equal(b.buildInfo, pairs) {
			b.instruments.BuildInfo.With(b.buildInfo...).Set(0)
		}
		b.instruments.BuildInfo.With(pairs...).Set(1)
		b.buildInfo = pairs
	})
}

// Dropped 返回被吸收的失败次数。
func (b *Backend) Dropped() uint64 { return b.guard.Dropped() }

func (b *Backend) pairs(name string, labels xlabel.Labels) []string {
	return padPairs(b.keys[name], labels)
}

// padPairs 返回按 keys 顺序填充的 [k1, v1, k2, v2, ...]。
func padPairs(keys []string, labels xlabel.Labels) []string {
	values := labels.Pad(keys)
	kv := make([]string, 0, 2*len(keys))
	for i, k := range keys {
		kv = append(kv, k, values[i])
	}
	return kv
}
