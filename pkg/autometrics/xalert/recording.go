package xalert

import (
	"slices"
	"time"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
)

// 记录规则名前缀，窗口追加在末尾（slo:sli_error:ratio_rate5m）。
const (
	recordErrorRatio = "slo:sli_error:ratio_rate"
	recordSlowRatio  = "slo:sli_latency_over_threshold:ratio_rate"
)

// Recording 为每个目标在所有用到的窗口上生成违规比例记录规则。
//
// 输出顺序与 Generate 一致：目标名、类型、窗口升序。
func Recording(objectives []xobjective.Objective, opts ...Option) []RecordingRule {
	cfg := newConfig(opts)
	windows := distinctWindows(cfg.windows)

	var rules []RecordingRule
	for _, obj := range sortedObjectives(objectives) {
		if _, ok := obj.SuccessRate(); ok {
			for _, w := range windows {
				rules = append(rules, RecordingRule{
					Record:    recordErrorRatio + formatWindow(w),
					Objective: obj.Name(),
					Kind:      KindSuccessRate,
					Window:    w,
					Expr:      errorRatio(obj.Name(), w),
					Labels:    recordingLabels(cfg, obj),
				})
			}
		}
		if lat, ok := obj.Latency(); ok {
			for _, w := range windows {
				rules = append(rules, RecordingRule{
					Record:    recordSlowRatio + formatWindow(w),
					Objective: obj.Name(),
					Kind:      KindLatency,
					Window:    w,
					Expr:      slowRatio(obj.Name(), lat, w),
					Labels:    recordingLabels(cfg, obj),
				})
			}
		}
	}
	return rules
}

func distinctWindows(windows []Window) []time.Duration {
	out := make([]time.Duration, 0, 2*len(windows))
	for _, w := range windows {
		out = append(out, w.Short, w.Long)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func recordingLabels(cfg *config, obj xobjective.Objective) map[string]string {
	labels := make(map[string]string, len(cfg.labels)+1)
	for k, v := range cfg.labels {
		labels[k] = v
	}
	labels[xlabel.KeyObjectiveName] = obj.Name()
	return labels
}
