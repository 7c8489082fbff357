// Package xpromexp 通过 OpenTelemetry SDK 与其 Prometheus exporter 暴露指标。
//
// 记录路径与 xotel 相同，区别在于本包自带 MeterProvider，
// 以 exporter 作为 Reader，把数据写入 client_golang Registry 供抓取。
// 指标名与标签和直接使用 client_golang 时保持一致（不追加单位与 _total 后缀，不附加 scope 标签）。
package xpromexp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend/xotel"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// Name 后端名称。
const Name = "prometheus-exporter"

type config struct {
	registry *prometheus.Registry
	buckets  []float64
	logger   xlog.Logger
}

// Option 配置后端。
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
			cfg.buckets = buckets
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

// Backend 是经 OTel Prometheus exporter 暴露的后端。
type Backend struct {
	*xotel.Backend
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

var _ xbackend.Backend = (*Backend)(nil)

// New 创建 exporter、MeterProvider 与记录后端。调用方负责 Shutdown。
func New(opts ...Option) (*Backend, error) {
	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(cfg.registry),
		otelprom.WithoutUnits(),
		otelprom.WithoutCounterSuffixes(),
		otelprom.WithoutScopeInfo(),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: prometheus exporter: %w", xbackend.ErrCreateInstrument, err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	inner, err := xotel.New(
		xotel.WithName(Name),
		xotel.WithMeterProvider(provider),
		xotel.WithBuckets(cfg.buckets),
		xotel.WithLogger(cfg.logger),
	)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	return &Backend{
		Backend:  inner,
		provider: provider,
		registry: cfg.registry,
	}, nil
}

// Gatherer 返回底层 Registry。
func (b *Backend) Gatherer() prometheus.Gatherer { return b.registry }

// Handler 返回 /metrics 的 HTTP handler。
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{})
}

// Shutdown 注销回调并关闭 MeterProvider。
func (b *Backend) Shutdown(ctx context.Context) error {
	if err := b.Close(); err != nil {
		return err
	}
	return b.provider.Shutdown(ctx)
}
