package xalert

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/common/model"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
)

// 告警名。
const (
	AlertSuccessRate = "AutometricsSuccessRateBurn"
	AlertLatency     = "AutometricsLatencyBurn"
)

type config struct {
	windows []Window
	labels  map[string]string
}

// Option 配置规则生成。
type Option func(*config)

// WithWindows 替换燃烧率窗口，空值被忽略。
func WithWindows(windows ...Window) Option {
	return func(cfg *config) {
		if len(windows) > 0 {
			cfg.windows = slices.Clone(windows)
		}
	}
}

// WithLabels 为每条规则附加标签（如 team）。
func WithLabels(labels map[string]string) Option {
	return func(cfg *config) {
		for k, v := range labels {
			cfg.labels[k] = v
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{windows: DefaultWindows, labels: make(map[string]string)}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// Generate 为每个目标生成多窗口燃烧率告警规则。
//
// 输出按目标名、目标类型（成功率在前）、窗口顺序排列，相同输入得到相同输出。
func Generate(objectives []xobjective.Objective, opts ...Option) []AlertRule {
	cfg := newConfig(opts)
	var rules []AlertRule
	for _, obj := range sortedObjectives(objectives) {
		if sr, ok := obj.SuccessRate(); ok {
			for _, w := range cfg.windows {
				rules = append(rules, successRateRule(cfg, obj, sr, w))
			}
		}
		if lat, ok := obj.Latency(); ok {
			for _, w := range cfg.windows {
				rules = append(rules, latencyRule(cfg, obj, lat, w))
			}
		}
	}
	return rules
}

// FromRegistry 读取 Registry 的合并结果并生成告警规则。Registry 冲突时返回其错误。
func FromRegistry(r *xregistry.Registry, opts ...Option) ([]AlertRule, error) {
	objs, err := registryObjectives(r)
	if err != nil {
		return nil, err
	}
	return Generate(objs, opts...), nil
}

func registryObjectives(r *xregistry.Registry) ([]xobjective.Objective, error) {
	entries, err := r.Objectives()
	if err != nil {
		return nil, err
	}
	objs := make([]xobjective.Objective, len(entries))
	for i, e := range entries {
		objs[i] = e.Objective
	}
	return objs, nil
}

func sortedObjectives(objectives []xobjective.Objective) []xobjective.Objective {
	out := make([]xobjective.Objective, 0, len(objectives))
	for _, obj := range objectives {
		if !obj.IsZero() {
			out = append(out, obj)
		}
	}
	slices.SortStableFunc(out, func(a, b xobjective.Objective) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return slices.CompactFunc(out, func(a, b xobjective.Objective) bool { return a.Equal(b) })
}

func successRateRule(cfg *config, obj xobjective.Objective, target xobjective.Percentile, w Window) AlertRule {
	budget := target.BudgetString()
	limit := formatFloat(w.BurnRate) + " * " + budget
	expr := fmt.Sprintf("(%s > (%s)) and (%s > (%s))",
		errorRatio(obj.Name(), w.Long), limit,
		errorRatio(obj.Name(), w.Short), limit)

	return AlertRule{
		Name:        AlertSuccessRate,
		Objective:   obj.Name(),
		Kind:        KindSuccessRate,
		Threshold:   target.Budget(),
		BurnRate:    w.BurnRate,
		LongWindow:  w.Long,
		ShortWindow: w.Short,
		Severity:    w.Severity,
		Expr:        expr,
		Labels:      ruleLabels(cfg, obj, w),
		Annotations: map[string]string{
			"summary": fmt.Sprintf("Objective %q error rate is burning its budget %sx too fast",
				obj.Name(), formatFloat(w.BurnRate)),
			"description": fmt.Sprintf("Error ratio over %s and %s is above %s x %s (success rate target %s%%).",
				formatWindow(w.Long), formatWindow(w.Short), formatFloat(w.BurnRate), budget, target),
		},
	}
}

func latencyRule(cfg *config, obj xobjective.Objective, lat xobjective.LatencyTarget, w Window) AlertRule {
	budget := lat.Percentile.BudgetString()
	limit := formatFloat(w.BurnRate) + " * " + budget
	expr := fmt.Sprintf("(%s > (%s)) and (%s > (%s))",
		slowRatio(obj.Name(), lat, w.Long), limit,
		slowRatio(obj.Name(), lat, w.Short), limit)

	return AlertRule{
		Name:        AlertLatency,
		Objective:   obj.Name(),
		Kind:        KindLatency,
		Threshold:   lat.Percentile.Budget(),
		BurnRate:    w.BurnRate,
		LongWindow:  w.Long,
		ShortWindow: w.Short,
		Severity:    w.Severity,
		Expr:        expr,
		Labels:      ruleLabels(cfg, obj, w),
		Annotations: map[string]string{
			"summary": fmt.Sprintf("Objective %q latency is burning its budget %sx too fast",
				obj.Name(), formatFloat(w.BurnRate)),
			"description": fmt.Sprintf("Fraction of calls over %s during %s and %s is above %s x %s (target %s%% of calls within %s).",
				lat.Threshold, formatWindow(w.Long), formatWindow(w.Short), formatFloat(w.BurnRate), budget,
				lat.Percentile, lat.Threshold),
		},
	}
}

func ruleLabels(cfg *config, obj xobjective.Objective, w Window) map[string]string {
	labels := make(map[string]string, len(cfg.labels)+4)
	for k, v := range cfg.labels {
		labels[k] = v
	}
	labels[xlabel.KeyObjectiveName] = obj.Name()
	labels["severity"] = string(w.Severity)
	labels["long_window"] = formatWindow(w.Long)
	labels["short_window"] = formatWindow(w.Short)
	return labels
}

// errorRatio 返回窗口内失败调用占比的 PromQL 表达式。
func errorRatio(objective string, window time.Duration) string {
	w := formatWindow(window)
	return fmt.Sprintf(`(sum(rate(%s{%s=%q,%s=%q}[%s])) / sum(rate(%s{%s=%q}[%s])))`,
		xlabel.ObjectiveCallsTotal, xlabel.KeyObjectiveName, objective, xlabel.KeyResult, xlabel.ResultError, w,
		xlabel.ObjectiveCallsTotal, xlabel.KeyObjectiveName, objective, w)
}

// slowRatio 返回窗口内超过延迟阈值的调用占比的 PromQL 表达式。
func slowRatio(objective string, lat xobjective.LatencyTarget, window time.Duration) string {
	w := formatWindow(window)
	return fmt.Sprintf(`(1 - (sum(rate(%s{%s=%q,%s=%q}[%s])) / sum(rate(%s{%s=%q}[%s]))))`,
		xlabel.ObjectiveBelowThreshold, xlabel.KeyObjectiveName, objective, xlabel.KeyObjectiveLatency, lat.ThresholdSeconds(), w,
		xlabel.ObjectiveCallsTotal, xlabel.KeyObjectiveName, objective, w)
}

// formatWindow 使用 Prometheus 的时长格式（5m、1h、1d）。
func formatWindow(d time.Duration) string {
	return model.Duration(d).String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
