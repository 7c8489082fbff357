// Package xalert 从 SLO 目标生成 Prometheus 多窗口多燃烧率告警规则。
//
// 成功率目标：窗口内 objective_calls_total 中 result="error" 的占比
// 在长、短两个窗口上都超过 BurnRate × (1 − 目标) 时告警。
//
// 延迟目标：窗口内未计入 objective_latency_below_threshold_total 的调用占比
// 在两个窗口上都超过 BurnRate × (1 − 目标比例) 时告警。
//
// 规则只引用 xlabel 定义的指标名与标签名。生成结果是按目标名排序的静态列表，
// RuleFile 把它渲染为可直接加载的规则文件：
//
//	groups, err := xalert.GroupsFromRegistry(xregistry.Default())
//	out, err := xalert.RuleFile(groups)
package xalert
