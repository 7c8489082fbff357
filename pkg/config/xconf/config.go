package xconf

import (
	"fmt"
	"math"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Settings 是 autometrics 的进程级配置。
//
//	build_info:
//	  version: 1.4.0
//	  commit: 2f9c1e0
//	  branch: main
//	buckets: [0.005, 0.01, 0.05, 0.1, 0.25, 1]
//	objectives:
//	  - name: api
//	    objective: "success_rate = 99.9%, latency(99% < 250ms)"
//	    functions: [shop.checkout, shop.refund]
//	alerts:
//	  labels: {team: payments}
//	log:
//	  level: info
//	  format: json
//	  file: /var/log/app/autometrics.log
type Settings struct {
	BuildInfo  xbackend.BuildInfo      `koanf:"build_info"`
	Buckets    []float64               `koanf:"buckets"`
	Objectives []xregistry.Declaration `koanf:"objectives"`
	Alerts     AlertSettings           `koanf:"alerts"`
	Log        LogSettings             `koanf:"log"`
}

// AlertSettings 配置告警规则生成。
type AlertSettings struct {
	// Labels 附加到每条告警规则上的标签。
	Labels map[string]string `koanf:"labels"`
}

// Validate 检查配置，不修改任何进程级状态。
func (s *Settings) Validate() error {
	for i, b := range s.Buckets {
		if b <= 0 || math.IsInf(b, 0) || math.IsNaN(b) {
			return fmt.Errorf("%w: buckets[%d] = %v", ErrInvalidSettings, i, b)
		}
	}

	seen := make(map[string]xobjective.Objective, len(s.Objectives))
	for _, d := range s.Objectives {
		obj, err := xobjective.Parse(d.Name, d.Objective)
		if err != nil {
			return fmt.Errorf("%w: objective %q: %w", ErrInvalidSettings, d.Name, err)
		}
		if len(d.Functions) == 0 {
			return fmt.Errorf("%w: objective %q: %w", ErrInvalidSettings, d.Name, xregistry.ErrNoFunctions)
		}
		if prev, ok := seen[d.Name]; ok && !prev.SameTargets(obj) {
			return fmt.Errorf("%w: objective %q: %w", ErrInvalidSettings, d.Name, xregistry.ErrConflict)
		}
		seen[d.Name] = obj
	}

	return s.Log.validate()
}

// BucketsOrDefault 返回配置的桶边界，未配置时返回 xbackend.DefaultBuckets。
func (s *Settings) BucketsOrDefault() []float64 {
	if len(s.Buckets) == 0 {
		return xbackend.DefaultBuckets
	}
	return s.Buckets
}
