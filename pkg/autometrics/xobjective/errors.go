package xobjective

import "errors"

var (
	// ErrInvalidPercentile 表示百分位不在 (0, 100] 范围内或精度超过 0.0001%。
	ErrInvalidPercentile = errors.New("xobjective: invalid percentile")
	// ErrInvalidThreshold 表示延迟阈值不是正数。
	ErrInvalidThreshold = errors.New("xobjective: invalid latency threshold")
	// ErrEmptyName 表示目标名称为空。
	ErrEmptyName = errors.New("xobjective: empty objective name")
	// ErrInvalidName 表示目标名称包含非法字符。
	ErrInvalidName = errors.New("xobjective: invalid objective name")
	// ErrNoTarget 表示目标既没有成功率也没有延迟。
	ErrNoTarget = errors.New("xobjective: objective has no target")
	// ErrDuplicateTarget 表示同一类目标被声明了多次。
	ErrDuplicateTarget = errors.New("xobjective: duplicate target")
	// ErrSyntax 表示声明字符串无法解析。
	ErrSyntax = errors.New("xobjective: syntax error")
)
