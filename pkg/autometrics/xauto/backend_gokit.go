//go:build autometrics_gokit

package xauto

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend/xgokit"
)

// SelectedBackend 是编译时选定的后端。
const SelectedBackend = xgokit.PrometheusName

// gokitBackend 在 go-kit 后端上附加其 Prometheus Registry 的抓取端点。
type gokitBackend struct {
	*xgokit.Backend
	registry *prometheus.Registry
}

func (b *gokitBackend) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{})
}

func newSelectedBackend(cfg *config) (xbackend.Backend, error) {
	registry := prometheus.NewRegistry()
	b, err := xgokit.NewPrometheus(registry, cfg.buckets, xgokit.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	return &gokitBackend{Backend: b, registry: registry}, nil
}
