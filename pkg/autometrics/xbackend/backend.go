package xbackend

import (
	"context"
	"slices"
	"time"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
)

// Backend 是指标后端的能力集合。实现必须并发安全，且不得 panic。
type Backend interface {
	// Name 返回后端名称，如 "opentelemetry"。
	Name() string

	// IncrementCounter 把计数器 name 在 labels 序列上加 1。
	IncrementCounter(ctx context.Context, name string, labels xlabel.Labels)

	// RecordHistogram 向直方图 name 记录一个观测值（延迟以秒为单位）。
	RecordHistogram(ctx context.Context, name string, labels xlabel.Labels, value float64)

	// AddToGauge 把仪表 name 在 labels 序列上加 delta（可为负）。
	AddToGauge(ctx context.Context, name string, labels xlabel.Labels, delta float64)

	// SetBuildInfo 发布 build_info{version,commit,branch} = 1。
	SetBuildInfo(ctx context.Context, info BuildInfo)
}

// BuildInfo 构建信息，用于把指标关联到具体构建。
type BuildInfo struct {
	Version string `koanf:"version"`
	Commit  string `koanf:"commit"`
	Branch  string `koanf:"branch"`
}

// Labels 返回 build_info 的标签集合。
func (b BuildInfo) Labels() xlabel.Labels {
	return xlabel.BuildInfoLabels(b.Version, b.Commit, b.Branch)
}

// DefaultBuckets 默认延迟直方图桶边界（秒）。
//
// 桶边界属于适配器配置，不是跨后端约定；延迟目标阈值通过 MergeBuckets 并入。
var DefaultBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
}

// MergeBuckets 合并桶边界与延迟阈值，返回升序去重结果，非正值被丢弃。
func MergeBuckets(buckets []float64, thresholds ...time.Duration) []float64 {
	out := make([]float64, 0, len(buckets)+len(thresholds))
	for _, b := range buckets {
		if b > 0 {
			out = append(out, b)
		}
	}
	for _, t := range thresholds {
		if t > 0 {
			out = append(out, t.Seconds())
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Noop 丢弃所有记录。
type Noop struct{}

var _ Backend = Noop{}

func (Noop) Name() string { return "noop" }
func (Noop) IncrementCounter(context.Context, string, xlabel.Labels) {}
func (Noop) RecordHistogram(context.Context, string, xlabel.Labels, float64) {}
func (Noop) AddToGauge(context.Context, string, xlabel.Labels, float64) {}
func (Noop) SetBuildInfo(context.Context, BuildInfo) {}
