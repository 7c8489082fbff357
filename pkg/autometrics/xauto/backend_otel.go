//go:build !autometrics_prometheus && !autometrics_gokit && !autometrics_promexporter

package xauto

import (
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend/xotel"
)

// SelectedBackend 是编译时选定的后端。
const SelectedBackend = xotel.Name

func newSelectedBackend(cfg *config) (xbackend.Backend, error) {
	return xotel.New(
		xotel.WithBuckets(cfg.buckets),
		xotel.WithLogger(cfg.logger),
	)
}
