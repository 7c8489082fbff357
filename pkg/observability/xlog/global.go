package xlog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// globalLogger 全局 Logger 实例
var globalLogger atomic.Pointer[LoggerWithLevel]

// globalMu 保护 globalOnce（ResetDefault 会重置它）
var (
	globalMu   sync.Mutex
	globalOnce sync.Once
)

// defaultLogger 惰性创建默认 Logger。
//
// 持锁执行 once.Do，避免与 ResetDefault 重置 sync.Once 产生竞争。
func defaultLogger() LoggerWithLevel {
	globalMu.Lock()
	defer globalMu.Unlock()

	globalOnce.Do(func() {
		// 默认参数不会失败，Build 错误在此不可达
		logger, _ := New().Build()
		globalLogger.Store(&logger)
	})
	return *globalLogger.Load()
}

// Default 返回全局默认 Logger（stderr，Info，text）。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	return defaultLogger()
}

// SetDefault 替换全局默认 Logger，nil 被忽略。
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// ResetDefault 重置全局 Logger 为未初始化状态（仅用于测试）。
func ResetDefault() {
	globalMu.Lock()
	globalLogger.Store(nil)
	globalOnce = sync.Once{}
	globalMu.Unlock()
}

// Warn 使用全局 Logger 记录 Warn 级别日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	logGlobal(ctx, slog.LevelWarn, msg, attrs)
}

// Info 使用全局 Logger 记录 Info 级别日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	logGlobal(ctx, slog.LevelInfo, msg, attrs)
}

// Error 使用全局 Logger 记录 Error 级别日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	logGlobal(ctx, slog.LevelError, msg, attrs)
}

func logGlobal(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	l := Default()
	if xl, ok := l.(*xlogger); ok {
		// 全局函数比实例方法多一层
		xl.log(ctx, level, msg, attrs, 1)
		return
	}
	switch level {
	case slog.LevelInfo:
		l.Info(ctx, msg, attrs...)
	case slog.LevelWarn:
		l.Warn(ctx, msg, attrs...)
	default:
		l.Error(ctx, msg, attrs...)
	}
}

// OrDefault 返回 l，l 为 nil 时返回全局 Logger。
func OrDefault(l Logger) Logger {
	if l != nil {
		return l
	}
	return Default()
}
