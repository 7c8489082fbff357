package xauto

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
	"github.com/omeyang/xautometrics/pkg/autometrics/xtracker"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

type config struct {
	buildInfo xbackend.BuildInfo
	buckets   []float64
	registry  *xregistry.Registry
	logger    xlog.Logger
}

// Option 配置 Init。
type Option func(*config)

// WithBuildInfo 设置 build_info。
func WithBuildInfo(info xbackend.BuildInfo) Option {
	return func(cfg *config) {
		cfg.buildInfo = info
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

// WithObjectiveBuckets 把 r 中所有延迟目标的阈值并入直方图桶边界。
//
// 读取会冻结 r，因此所有声明（包括 xregistry.LoadObjectives）必须在 Init 之前完成。
func WithObjectiveBuckets(r *xregistry.Registry) Option {
	return func(cfg *config) {
		cfg.registry = r
	}
}

// WithLogger 设置后端记录被吸收故障时使用的 Logger。
func WithLogger(logger xlog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Init 创建编译时选定的后端，发布 build_info，并设置为 xtracker 的进程级后端。
func Init(ctx context.Context, opts ...Option) (xbackend.Backend, error) {
	cfg := &config{buckets: xbackend.DefaultBuckets}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if err := cfg.mergeObjectiveBuckets(); err != nil {
		return nil, err
	}

	backend, err := newSelectedBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("xauto: init %s backend: %w", SelectedBackend, err)
	}
	backend.SetBuildInfo(ctx, cfg.buildInfo)
	xtracker.SetBackend(backend)

	xlog.OrDefault(cfg.logger).Info(ctx, "xauto: metrics backend ready",
		xlog.Backend(backend.Name()),
	)
	return backend, nil
}

// mergeObjectiveBuckets 把注册表中的延迟阈值并入 cfg.buckets。
func (cfg *config) mergeObjectiveBuckets() error {
	if cfg.registry == nil {
		return nil
	}
	entries, err := cfg.registry.Objectives()
	if err != nil {
		return err
	}
	var thresholds []time.Duration
	for _, e := range entries {
		if lat, ok := e.Objective.Latency(); ok {
			thresholds = append(thresholds, lat.Threshold)
		}
	}
	cfg.buckets = xbackend.MergeBuckets(cfg.buckets, thresholds...)
	return nil
}

// Handler 返回后端的 /metrics handler；后端不提供抓取端点（如 OpenTelemetry）时 ok 为 false。
func Handler(b xbackend.Backend) (h http.Handler, ok bool) {
	hp, ok := b.(interface{ Handler() http.Handler })
	if !ok {
		return nil, false
	}
	return hp.Handler(), true
}

// Shutdown 释放后端资源并把 xtracker 的进程级后端恢复为 Noop。
func Shutdown(ctx context.Context, b xbackend.Backend) error {
	xtracker.SetBackend(nil)
	switch v := b.(type) {
	case interface{ Shutdown(context.Context) error }:
		return v.Shutdown(ctx)
	case interface{ Close() error }:
		return v.Close()
	default:
		return nil
	}
}
