package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyFunction  = "function"
	KeyModule    = "module"
	KeyObjective = "objective"
	KeyBackend   = "backend"
	KeyMetric    = "metric"
)

// Err 创建错误属性；err 为 nil 时返回空属性（被 slog 忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建人类可读的耗时属性（如 "1.5s"）。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Function 被埋点函数名
func Function(name string) slog.Attr {
	return slog.String(KeyFunction, name)
}

// Module 被埋点函数所在模块
func Module(name string) slog.Attr {
	return slog.String(KeyModule, name)
}

// Objective SLO 名称
func Objective(name string) slog.Attr {
	return slog.String(KeyObjective, name)
}

// Backend 指标后端名称
func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

// Metric 指标名称
func Metric(name string) slog.Attr {
	return slog.String(KeyMetric, name)
}
