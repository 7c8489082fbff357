package xregistry

import "errors"

var (
	// ErrConflict 表示同名目标的声明不一致。
	ErrConflict = errors.New("xregistry: conflicting objective declarations")
	// ErrFrozen 表示 Registry 已合并，不再接受声明。
	ErrFrozen = errors.New("xregistry: registry is frozen")
	// ErrNotFound 表示目标不存在。
	ErrNotFound = errors.New("xregistry: objective not found")
	// ErrNoFunctions 表示配置声明没有列出任何函数。
	ErrNoFunctions = errors.New("xregistry: objective declares no functions")
	// ErrZeroObjective 表示贡献了零值目标。
	ErrZeroObjective = errors.New("xregistry: zero objective")
)
