package xgokit

import (
	"strings"
	"sync"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/generic"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
)

// genericBuckets 是 generic 直方图的近似分桶数。
const genericBuckets = 50

// Generic 是进程内的 go-kit 后端，可以按标签读取当前值。
type Generic struct {
	*Backend
	counters   map[string]*seriesCounter
	duration   *seriesHistogram
	concurrent *seriesGauge
	buildInfo  *seriesGauge
}

// NewGeneric 创建基于 metrics/generic 的后端。
//
// generic 的 With 返回一个与原仪表分离的新实例，因此每个标签序列
// 只创建一次并被保存，后续同一序列的记录都落在同一个实例上。
func NewGeneric(opts ...Option) (*Generic, error) {
	g := &Generic{
		counters:   make(map[string]*seriesCounter),
		duration:   &seriesHistogram{name: xlabel.CallsDuration},
		concurrent: &seriesGauge{name: xlabel.CallsConcurrent},
		buildInfo:  &seriesGauge{name: xlabel.BuildInfo},
	}
	in := Instruments{
		Counters:   make(map[string]metrics.Counter),
		Duration:   g.duration,
		Concurrent: g.concurrent,
		BuildInfo:  g.buildInfo,
	}
	for _, spec := range xlabel.Metrics() {
		if spec.Kind == xlabel.KindCounter {
			c := &seriesCounter{name: spec.Name}
			g.counters[spec.Name] = c
			in.Counters[spec.Name] = c
		}
	}

	b, err := New(in, append([]Option{WithName(GenericName)}, opts...)...)
	if err != nil {
		return nil, err
	}
	g.Backend = b
	return g, nil
}

// Counter 返回计数器 name 在 labels 序列上的当前值，序列不存在时返回 0。
func (g *Generic) Counter(name string, labels xlabel.Labels) float64 {
	c, ok := g.counters[name]
	if !ok {
		return 0
	}
	if s := c.lookup(g.pairs(name, labels)); s != nil {
		return s.Value()
	}
	return 0
}

// Concurrent 返回 function_calls_concurrent 在 labels 序列上的当前值。
func (g *Generic) Concurrent(labels xlabel.Labels) float64 {
	if s := g.concurrent.lookup(g.pairs(xlabel.CallsConcurrent, labels)); s != nil {
		return s.Value()
	}
	return 0
}

// Quantile 返回 function_calls_duration 在 labels 序列上的近似分位数，
// 序列不存在时 ok 为 false。
func (g *Generic) Quantile(labels xlabel.Labels, q float64) (value float64, ok bool) {
	s := g.duration.lookup(g.pairs(xlabel.CallsDuration, labels))
	if s == nil {
		return 0, false
	}
	return s.Quantile(q), true
}

// BuildInfo 返回 build_info 在 labels 序列上的当前值。
func (g *Generic) BuildInfo(labels xlabel.Labels) float64 {
	if s := g.buildInfo.lookup(g.pairs(xlabel.BuildInfo, labels)); s != nil {
		return s.Value()
	}
	return 0
}

// seriesKey 把标签键值对编码为 map 键。
func seriesKey(labelValues []string) string {
	return strings.Join(labelValues, "\xff")
}

// series 按标签序列保存 generic 仪表。
type series[T any] struct {
	mu sync.Mutex
	m  map[string]T
}

func (s *series[T]) get(labelValues []string, create func() T) T {
	key := seriesKey(labelValues)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]T)
	}
	v, ok := s.m[key]
	if !ok {
		v = create()
		s.m[key] = v
	}
	return v
}

func (s *series[T]) find(labelValues []string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[seriesKey(labelValues)]
	return v, ok
}

type seriesCounter struct {
	name string
	series[*generic.Counter]
}

func (c *seriesCounter) With(labelValues ...string) metrics.Counter {
	return c.get(labelValues, func() *generic.Counter {
		return generic.NewCounter(c.name).With(labelValues...).(*generic.Counter)
	})
}

func (c *seriesCounter) Add(delta float64) { c.With().Add(delta) }

func (c *seriesCounter) lookup(labelValues []string) *generic.Counter {
	v, _ := c.find(labelValues)
	return v
}

type seriesGauge struct {
	name string
	series[*generic.Gauge]
}

func (g *seriesGauge) With(labelValues ...string) metrics.Gauge {
	return g.get(labelValues, func() *generic.Gauge {
		return generic.NewGauge(g.name).With(labelValues...).(*generic.Gauge)
	})
}

func (g *seriesGauge) Set(value float64) { g.With().Set(value) }

func (g *seriesGauge) Add(delta float64) { g.With().Add(delta) }

func (g *seriesGauge) lookup(labelValues []string) *generic.Gauge {
	v, _ := g.find(labelValues)
	return v
}

type seriesHistogram struct {
	name string
	series[*generic.Histogram]
}

func (h *seriesHistogram) With(labelValues ...string) metrics.Histogram {
	return h.get(labelValues, func() *generic.Histogram {
		return generic.NewHistogram(h.name, genericBuckets).With(labelValues...).(*generic.Histogram)
	})
}

func (h *seriesHistogram) Observe(value float64) { h.With().Observe(value) }

func (h *seriesHistogram) lookup(labelValues []string) *generic.Histogram {
	v, _ := h.find(labelValues)
	return v
}
