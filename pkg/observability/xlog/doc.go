// Package xlog 基于 log/slog 的结构化日志，供 autometrics 内部各组件使用。
//
// # 定位
//
// 埋点核心在热路径上不写日志；只有被吸收的后端故障、注册表冲突、
// 调用中止等“不应影响业务但需要被看到”的事件才经由 xlog 输出。
//
// # 创建 Logger
//
//	logger, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		Build()
//
// Builder 采用 first-error-wins：第一个配置错误之后的 Set 调用被跳过，由 Build 返回该错误。
//
// # 全局 Logger
//
//   - [Default]: 惰性初始化（stderr、Info、text）
//   - [SetDefault]: 替换全局 Logger（nil 被忽略）
//   - [ResetDefault]: 仅用于测试
//
// # 便捷属性
//
// [Err]、[Function]、[Module]、[Objective]、[Backend]、[Metric]、[Count]、[Duration]。
package xlog
