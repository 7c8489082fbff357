package xtracker

import "errors"

var (
	// ErrPanicked 是调用因 panic 被放弃时记录的原因。
	ErrPanicked = errors.New("xtracker: call panicked")
	// ErrAbnormalExit 是调用未正常返回（panic 或 runtime.Goexit）时记录的原因。
	ErrAbnormalExit = errors.New("xtracker: call exited abnormally")
	// ErrConflictingClassifiers 表示同时设置了 WithOkIf 与 WithErrorIf。
	ErrConflictingClassifiers = errors.New("xtracker: cannot use both WithOkIf and WithErrorIf")
)
