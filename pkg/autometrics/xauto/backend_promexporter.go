//go:build autometrics_promexporter

package xauto

import (
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend/xpromexp"
)

// SelectedBackend 是编译时选定的后端。
const SelectedBackend = xpromexp.Name

func newSelectedBackend(cfg *config) (xbackend.Backend, error) {
	return xpromexp.New(
		xpromexp.WithBuckets(cfg.buckets),
		xpromexp.WithLogger(cfg.logger),
	)
}
