package xconf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// 日志文件轮转默认值与上限。
const (
	DefaultMaxSizeMB  = 500
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30

	maxSizeMB  = 10240
	maxBackups = 1024
	maxAgeDays = 3650
)

// LogSettings 配置 xlog。
type LogSettings struct {
	// Level 为 debug/info/warn/error，空值视为 info。
	Level string `koanf:"level"`
	// Format 为 text/json，空值视为 text。
	Format string `koanf:"format"`
	// File 非空时写入按大小轮转的日志文件，否则写入调用方提供的输出。
	File string `koanf:"file"`
	// MaxSizeMB 单个文件大小上限，0 取 DefaultMaxSizeMB。
	MaxSizeMB int `koanf:"max_size_mb"`
	// MaxBackups 保留的备份数，0 取 DefaultMaxBackups。
	MaxBackups int `koanf:"max_backups"`
	// MaxAgeDays 备份保留天数，0 取 DefaultMaxAgeDays。
	MaxAgeDays int `koanf:"max_age_days"`
	// Compress 是否 gzip 压缩备份。
	Compress bool `koanf:"compress"`
}

func (l LogSettings) validate() error {
	if _, err := xlog.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidSettings, err)
	}
	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidSettings, l.Format)
	}
	if l.MaxSizeMB < 0 || l.MaxSizeMB > maxSizeMB {
		return fmt.Errorf("%w: log.max_size_mb %d, want 0~%d", ErrInvalidSettings, l.MaxSizeMB, maxSizeMB)
	}
	if l.MaxBackups < 0 || l.MaxBackups > maxBackups {
		return fmt.Errorf("%w: log.max_backups %d, want 0~%d", ErrInvalidSettings, l.MaxBackups, maxBackups)
	}
	if l.MaxAgeDays < 0 || l.MaxAgeDays > maxAgeDays {
		return fmt.Errorf("%w: log.max_age_days %d, want 0~%d", ErrInvalidSettings, l.MaxAgeDays, maxAgeDays)
	}
	return nil
}

// Output 返回日志输出：配置了 File 时为轮转文件，否则为 fallback。
// 返回的 close 释放文件句柄，对 fallback 是空操作。
func (l LogSettings) Output(fallback io.Writer) (w io.Writer, closeFn func() error, err error) {
	if l.File == "" {
		return fallback, func() error { return nil }, nil
	}
	path := filepath.Clean(l.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("xconf: create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(l.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: orDefault(l.MaxBackups, DefaultMaxBackups),
		MaxAge:     orDefault(l.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   l.Compress,
	}
	return rotator, rotator.Close, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// NewLogger 按 Log 配置构建 Logger，未配置 File 时写入 fallback。
// 调用方在退出前调用 closeFn。
func (s *Settings) NewLogger(fallback io.Writer) (logger xlog.LoggerWithLevel, closeFn func() error, err error) {
	w, closeFn, err := s.Log.Output(fallback)
	if err != nil {
		return nil, nil, err
	}
	logger, err = xlog.New().
		SetOutput(w).
		SetLevelString(s.Log.Level).
		SetFormat(s.Log.Format).
		Build()
	if err != nil {
		return nil, nil, errors.Join(err, closeFn())
	}
	return logger, closeFn, nil
}

// ApplyLevel 把 Log.Level 应用到 l，用于热重载。
func (s *Settings) ApplyLevel(l xlog.Leveler) error {
	level, err := xlog.ParseLevel(s.Log.Level)
	if err != nil {
		return err
	}
	l.SetLevel(level)
	return nil
}
