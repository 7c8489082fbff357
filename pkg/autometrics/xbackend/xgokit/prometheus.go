package xgokit

import (
	"fmt"

	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
)

// NewPrometheus 创建经 go-kit Prometheus 包装写入 registry 的后端。
// buckets 为空时使用 xbackend.DefaultBuckets。
func NewPrometheus(registry prometheus.Registerer, buckets []float64, opts ...Option) (*Backend, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if len(buckets) == 0 {
		buckets = xbackend.DefaultBuckets
	}

	in := Instruments{Counters: make(map[string]metrics.Counter)}
	for _, spec := range xlabel.Metrics() {
		var c prometheus.Collector
		switch {
		case spec.Name == xlabel.BuildInfo:
			gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: spec.Name, Help: spec.Description}, spec.Keys)
			in.BuildInfo, c = kitprometheus.NewGauge(gv), gv
		case spec.Kind == xlabel.KindCounter:
			cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: spec.Name, Help: spec.Description}, spec.Keys)
			in.Counters[spec.Name], c = kitprometheus.NewCounter(cv), cv
		case spec.Kind == xlabel.KindHistogram:
			hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name: spec.Name, Help: spec.Description, Buckets: xbackend.MergeBuckets(buckets),
			}, spec.Keys)
			in.Duration, c = kitprometheus.NewHistogram(hv), hv
		case spec.Kind == xlabel.KindGauge:
			gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: spec.Name, Help: spec.Description}, spec.Keys)
			in.Concurrent, c = kitprometheus.NewGauge(gv), gv
		}
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", xbackend.ErrCreateInstrument, spec.Name, err)
		}
	}

	return New(in, append([]Option{WithName(PrometheusName)}, opts...)...)
}
