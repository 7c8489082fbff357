package xobjective

import (
	"fmt"
	"strings"
	"time"
)

// maxNameLen 目标名称的最大长度（字节）。
const maxNameLen = 128

// LatencyTarget 表示“Percentile 比例的调用耗时不超过 Threshold”。
type LatencyTarget struct {
	Threshold  time.Duration
	Percentile Percentile
}

// Valid 报告延迟目标是否合法。
func (l LatencyTarget) Valid() bool {
	return l.Threshold > 0 && l.Percentile.Valid()
}

// ThresholdSeconds 返回以秒为单位的阈值精确十进制字符串，例如 200ms → "0.2"。
func (l LatencyTarget) ThresholdSeconds() string {
	if l.Threshold <= 0 {
		return "0"
	}
	return formatFixed(uint64(l.Threshold), 9)
}

// Objective 是一个具名 SLO，创建后不可变。
type Objective struct {
	name        string
	successRate Percentile
	latency     LatencyTarget
}

// Option 配置 Objective。
type Option func(*builder)

type builder struct {
	obj Objective
	err error
}

// WithSuccessRate 设置成功率目标。
func WithSuccessRate(p Percentile) Option {
	return func(b *builder) {
		if b.err != nil {
			return
		}
		if b.obj.successRate != 0 {
			b.err = fmt.Errorf("%w: success_rate", ErrDuplicateTarget)
			return
		}
		if !p.Valid() {
			b.err = fmt.Errorf("%w: %d ppm", ErrInvalidPercentile, p)
			return
		}
		b.obj.successRate = p
	}
}

// WithLatency 设置延迟目标：p 比例的调用耗时不超过 threshold。
func WithLatency(threshold time.Duration, p Percentile) Option {
	return func(b *builder) {
		if b.err != nil {
			return
		}
		if b.obj.latency.Valid() {
			b.err = fmt.Errorf("%w: latency", ErrDuplicateTarget)
			return
		}
		if threshold <= 0 {
			b.err = fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
			return
		}
		if !p.Valid() {
			b.err = fmt.Errorf("%w: %d ppm", ErrInvalidPercentile, p)
			return
		}
		b.obj.latency = LatencyTarget{Threshold: threshold, Percentile: p}
	}
}

// New 创建 Objective。至少需要一个目标。
func New(name string, opts ...Option) (Objective, error) {
	if err := validateName(name); err != nil {
		return Objective{}, err
	}
	b := &builder{obj: Objective{name: name}}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.err != nil {
		return Objective{}, fmt.Errorf("objective %q: %w", name, b.err)
	}
	if !b.obj.HasSuccessRate() && !b.obj.HasLatency() {
		return Objective{}, fmt.Errorf("objective %q: %w", name, ErrNoTarget)
	}
	return b.obj, nil
}

// MustNew 与 New 相同，失败时 panic。
// 适用于包级变量声明，配置错误在程序初始化阶段即暴露。
func MustNew(name string, opts ...Option) Objective {
	obj, err := New(name, opts...)
	if err != nil {
		panic(err)
	}
	return obj
}

// Name 返回目标名称。
func (o Objective) Name() string { return o.name }

// IsZero 报告是否为零值（未声明目标）。
func (o Objective) IsZero() bool { return o.name == "" }

// HasSuccessRate 报告是否声明了成功率目标。
func (o Objective) HasSuccessRate() bool { return o.successRate.Valid() }

// SuccessRate 返回成功率目标。
func (o Objective) SuccessRate() (Percentile, bool) {
	return o.successRate, o.HasSuccessRate()
}

// HasLatency 报告是否声明了延迟目标。
func (o Objective) HasLatency() bool { return o.latency.Valid() }

// Latency 返回延迟目标。
func (o Objective) Latency() (LatencyTarget, bool) {
	return o.latency, o.HasLatency()
}

// SameTargets 报告两个目标的成功率与延迟目标是否完全一致（忽略名称）。
func (o Objective) SameTargets(other Objective) bool {
	return o.successRate == other.successRate && o.latency == other.latency
}

// Equal 报告名称与目标是否都一致。
func (o Objective) Equal(other Objective) bool {
	return o.name == other.name && o.SameTargets(other)
}

// Declaration 返回可被 Parse 解析回来的规范化声明字符串。
func (o Objective) Declaration() string {
	parts := make([]string, 0, 2)
	if o.HasSuccessRate() {
		parts = append(parts, "success_rate = "+o.successRate.String()+"%")
	}
	if o.HasLatency() {
		parts = append(parts, "latency("+o.latency.Percentile.String()+"% < "+o.latency.Threshold.String()+")")
	}
	return strings.Join(parts, ", ")
}

// String 返回 "name{declaration}"。
func (o Objective) String() string {
	return o.name + "{" + o.Declaration() + "}"
}

// validateName 名称只允许 [A-Za-z0-9_.:/-]，以便在所有后端中原样作为标签值。
func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: %q longer than %d", ErrInvalidName, name, maxNameLen)
	}
	for _, r := range name {
		if !validNameRune(r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return nil
}

func validNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '.', r == '-', r == '/', r == ':':
		return true
	default:
		return false
	}
}
