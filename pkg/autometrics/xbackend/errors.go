package xbackend

import "errors"

var (
	// ErrRecordPanic 表示底层指标库在记录时 panic（已被吸收）。
	ErrRecordPanic = errors.New("xbackend: metric library panicked")
	// ErrUnknownMetric 表示记录了标签规范之外的指标名。
	ErrUnknownMetric = errors.New("xbackend: unknown metric")
	// ErrCreateInstrument 表示创建底层仪表失败。
	ErrCreateInstrument = errors.New("xbackend: create instrument failed")
)
