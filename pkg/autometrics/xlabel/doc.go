// Package xlabel 定义函数级指标的命名与标签规范。
//
// 所有后端共享同一套指标名与标签键，相同输入在任何进程、任何后端下都生成
// 逐字节一致的结果，告警规则与看板查询依赖这一点。
//
// # 指标
//
//   - function_calls_total{function, module, caller, result, error_category, objective_name, objective_percentile}
//   - function_calls_duration{function, module, caller, objective_name, objective_percentile, objective_latency_threshold}
//   - function_calls_concurrent{function, module}
//   - objective_calls_total{objective_name, result}
//   - objective_latency_below_threshold_total{objective_name, objective_latency_threshold}
//   - build_info{version, commit, branch}
//
// # 标签值
//
// 标签值只保留所有后端都合法的字符 [A-Za-z0-9_.:/-]，其余字符替换为 '_'，
// 超长截断到 128 字节。规范化从不返回错误：埋点不能让业务调用失败。
// 需要在初始化阶段拒绝非法标识时使用 [MustFunctionID]。
package xlabel
