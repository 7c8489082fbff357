package xlabel

import (
	"fmt"

	"github.com/prometheus/common/model"
)

// 指标名。
const (
	CallsTotal                = "function_calls_total"
	CallsDuration             = "function_calls_duration"
	CallsConcurrent           = "function_calls_concurrent"
	ObjectiveCallsTotal       = "objective_calls_total"
	ObjectiveBelowThreshold   = "objective_latency_below_threshold_total"
	BuildInfo                 = "build_info"
	callsTotalDescription     = "Autometrics counter for tracking function calls"
	callsDurationDescription  = "Autometrics histogram for tracking function call duration"
	concurrentDescription     = "Autometrics gauge for tracking function concurrency"
	objectiveCallsDescription = "Autometrics counter for tracking calls covered by an objective"
	belowThresholdDescription = "Autometrics counter for calls that met an objective's latency threshold"
	buildInfoDescription      = "Autometrics info metric for tracking software version and build details"
)

// 标签键，按规范顺序排列。
const (
	KeyFunction          = "function"
	KeyModule            = "module"
	KeyCaller            = "caller"
	KeyResult            = "result"
	KeyErrorCategory     = "error_category"
	KeyObjectiveName     = "objective_name"
	KeyObjectivePct      = "objective_percentile"
	KeyObjectiveLatency  = "objective_latency_threshold"
	KeyVersion           = "version"
	KeyCommit            = "commit"
	KeyBranch            = "branch"
	ResultOK             = "ok"
	ResultError          = "error"
	maxLabelValueLength  = 128
	normalizedLabelValue = "_"
)

// MetricKind 指标类型。
type MetricKind int

const (
	KindCounter MetricKind = iota
	KindHistogram
	KindGauge
)

// MetricSpec 描述一个指标的名称、类型、说明和完整标签键集合。
type MetricSpec struct {
	Name        string
	Kind        MetricKind
	Description string
	Keys        []string
}

var metricSpecs = []MetricSpec{
	{
		Name:        CallsTotal,
		Kind:        KindCounter,
		Description: callsTotalDescription,
		Keys: []string{KeyFunction, KeyModule, KeyCaller, KeyResult, KeyErrorCategory,
			KeyObjectiveName, KeyObjectivePct},
	},
	{
		Name:        CallsDuration,
		Kind:        KindHistogram,
		Description: callsDurationDescription,
		Keys: []string{KeyFunction, KeyModule, KeyCaller, KeyResult, KeyErrorCategory,
			KeyObjectiveName, KeyObjectivePct, KeyObjectiveLatency},
	},
	{
		Name:        CallsConcurrent,
		Kind:        KindGauge,
		Description: concurrentDescription,
		Keys:        []string{KeyFunction, KeyModule},
	},
	{
		Name:        ObjectiveCallsTotal,
		Kind:        KindCounter,
		Description: objectiveCallsDescription,
		Keys:        []string{KeyObjectiveName, KeyResult},
	},
	{
		Name:        ObjectiveBelowThreshold,
		Kind:        KindCounter,
		Description: belowThresholdDescription,
		Keys:        []string{KeyObjectiveName, KeyObjectiveLatency},
	},
	{
		Name:        BuildInfo,
		Kind:        KindGauge,
		Description: buildInfoDescription,
		Keys:        []string{KeyVersion, KeyCommit, KeyBranch},
	},
}

// Metrics 返回全部指标规格（副本），顺序固定。
// 需要静态标签模式的后端（如 Prometheus）据此预先注册。
func Metrics() []MetricSpec {
	out := make([]MetricSpec, len(metricSpecs))
	for i, spec := range metricSpecs {
		spec.Keys = append([]string(nil), spec.Keys...)
		out[i] = spec
	}
	return out
}

// Lookup 按名称查找指标规格。
func Lookup(name string) (MetricSpec, bool) {
	for _, spec := range metricSpecs {
		if spec.Name == name {
			spec.Keys = append([]string(nil), spec.Keys...)
			return spec, true
		}
	}
	return MetricSpec{}, false
}

// ValidateMetricName 校验指标名是否符合传统（非 UTF-8）Prometheus 命名规则，
// 这是所有后端都能原样接受的最保守子集。
func ValidateMetricName(name string) error {
	if !model.MetricNameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricName, name)
	}
	return nil
}

// ValidateKey 校验标签键是否符合传统 Prometheus 标签名规则。
func ValidateKey(key string) error {
	if !model.LabelNameRE.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
