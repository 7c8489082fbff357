//go:build autometrics_prometheus

package xauto

import (
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend/xprom"
)

// SelectedBackend 是编译时选定的后端。
const SelectedBackend = xprom.Name

func newSelectedBackend(cfg *config) (xbackend.Backend, error) {
	return xprom.New(
		xprom.WithBuckets(cfg.buckets),
		xprom.WithLogger(cfg.logger),
		xprom.WithRuntimeCollectors(),
		xprom.WithExemplars(),
	)
}
