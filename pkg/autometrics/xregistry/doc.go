// Package xregistry 汇总进程内所有 SLO 目标声明。
//
// 埋点函数在包初始化阶段通过 Contribute 声明 (目标, 函数) 对，顺序不作任何假设。
// 首次读取（Objectives、Lookup、Functions、Err）时执行唯一一次合并：
// 按目标名分组，校验同名声明的成功率与延迟目标完全一致，
// 不一致时返回 ErrConflict，此后每次读取都返回同一个错误，从不静默择一。
//
// 合并后 Registry 冻结，后续的 Contribute 返回 ErrFrozen。
// 所有读取返回按目标名排序、函数去重排序的确定性结果。
package xregistry
