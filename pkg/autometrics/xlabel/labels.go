package xlabel

import (
	"strings"

	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
)

// Label 是一个标签键值对。
type Label struct {
	Key   string
	Value string
}

// Labels 是按规范键顺序排列的标签集合。缺省的可选键不出现在集合中。
type Labels []Label

// Get 返回 key 对应的值。
func (l Labels) Get(key string) (string, bool) {
	for _, lb := range l {
		if lb.Key == key {
			return lb.Value, true
		}
	}
	return "", false
}

// Keys 返回键列表。
func (l Labels) Keys() []string {
	keys := make([]string, len(l))
	for i, lb := range l {
		keys[i] = lb.Key
	}
	return keys
}

// Map 返回键值映射。
func (l Labels) Map() map[string]string {
	m := make(map[string]string, len(l))
	for _, lb := range l {
		m[lb.Key] = lb.Value
	}
	return m
}

// Pad 按 keys 顺序返回值，缺失的键取空字符串。
// 用于标签模式固定的后端：Prometheus 把空值等同于标签不存在。
func (l Labels) Pad(keys []string) []string {
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i], _ = l.Get(k)
	}
	return values
}

// Flatten 返回 [k1, v1, k2, v2, ...]，即 go-kit With 的参数形式。
func (l Labels) Flatten() []string {
	kv := make([]string, 0, 2*len(l))
	for _, lb := range l {
		kv = append(kv, lb.Key, lb.Value)
	}
	return kv
}

// String 返回确定性的规范形式 `k1="v1",k2="v2"`，可作为序列键。
func (l Labels) String() string {
	var b strings.Builder
	for i, lb := range l {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(lb.Key)
		b.WriteString(`="`)
		b.WriteString(lb.Value)
		b.WriteByte('"')
	}
	return b.String()
}

// Outcome 是一次调用的结果。
type Outcome struct {
	// Result 为 ResultOK 或 ResultError。
	Result string
	// Category 错误分类，仅在 Result 为 ResultError 时有效。
	Category string
}

// OK 返回成功结果。
func OK() Outcome { return Outcome{Result: ResultOK} }

// Error 返回失败结果，category 可为空。
func Error(category string) Outcome {
	return Outcome{Result: ResultError, Category: category}
}

// IsError 报告是否为失败。
func (o Outcome) IsError() bool { return o.Result == ResultError }

func (o Outcome) result() string {
	if o.IsError() {
		return ResultError
	}
	return ResultOK
}

// BuildLabels 生成 function_calls_total 的标签集合。
//
// 顺序：function, module, caller?, result, error_category?, objective_name?, objective_percentile?。
func BuildLabels(id Identity, obj xobjective.Objective, outcome Outcome) Labels {
	labels := make(Labels, 0, 7)
	labels = appendIdentity(labels, id)
	labels = appendOutcome(labels, outcome)
	if !obj.IsZero() {
		labels = append(labels, Label{KeyObjectiveName, obj.Name()})
		if sr, ok := obj.SuccessRate(); ok {
			labels = append(labels, Label{KeyObjectivePct, sr.String()})
		}
	}
	return labels
}

// HistogramLabels 生成 function_calls_duration 的标签集合，结果标签与计数器一致。
// 延迟目标存在时附带其百分位与阈值（秒）。
//
// 顺序：function, module, caller?, result, error_category?, objective_name?, objective_percentile?, objective_latency_threshold?。
func HistogramLabels(id Identity, obj xobjective.Objective, outcome Outcome) Labels {
	labels := make(Labels, 0, 8)
	labels = appendIdentity(labels, id)
	labels = appendOutcome(labels, outcome)
	if !obj.IsZero() {
		labels = append(labels, Label{KeyObjectiveName, obj.Name()})
		if lat, ok := obj.Latency(); ok {
			labels = append(labels,
				Label{KeyObjectivePct, lat.Percentile.String()},
				Label{KeyObjectiveLatency, lat.ThresholdSeconds()},
			)
		}
	}
	return labels
}

// GaugeLabels 生成 function_calls_concurrent 的标签集合。
func GaugeLabels(fn FunctionID) Labels {
	return Labels{
		{KeyFunction, Sanitize(fn.Function)},
		{KeyModule, Sanitize(fn.Module)},
	}
}

// ObjectiveLabels 生成 objective_calls_total 的标签集合。
func ObjectiveLabels(obj xobjective.Objective, outcome Outcome) Labels {
	return Labels{
		{KeyObjectiveName, obj.Name()},
		{KeyResult, outcome.result()},
	}
}

// BelowThresholdLabels 生成 objective_latency_below_threshold_total 的标签集合。
func BelowThresholdLabels(obj xobjective.Objective) Labels {
	lat, _ := obj.Latency()
	return Labels{
		{KeyObjectiveName, obj.Name()},
		{KeyObjectiveLatency, lat.ThresholdSeconds()},
	}
}

// BuildInfoLabels 生成 build_info 的标签集合。
func BuildInfoLabels(version, commit, branch string) Labels {
	return Labels{
		{KeyVersion, Sanitize(version)},
		{KeyCommit, Sanitize(commit)},
		{KeyBranch, Sanitize(branch)},
	}
}

func appendIdentity(labels Labels, id Identity) Labels {
	labels = append(labels,
		Label{KeyFunction, Sanitize(id.Function)},
		Label{KeyModule, Sanitize(id.Module)},
	)
	if id.Caller != "" {
		labels = append(labels, Label{KeyCaller, Sanitize(id.Caller)})
	}
	return labels
}

func appendOutcome(labels Labels, outcome Outcome) Labels {
	labels = append(labels, Label{KeyResult, outcome.result()})
	if outcome.IsError() && outcome.Category != "" {
		labels = append(labels, Label{KeyErrorCategory, Sanitize(outcome.Category)})
	}
	return labels
}
