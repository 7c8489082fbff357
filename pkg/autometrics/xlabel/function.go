package xlabel

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// FunctionID 标识一个被埋点的函数，创建后不可变。
type FunctionID struct {
	// Module 模块路径，Go 中即包导入路径，如 "github.com/acme/shop/order"。
	Module string
	// Function 函数名，方法为 "Type.Method"。
	Function string
}

// NewFunctionID 校验并创建 FunctionID。
// module 与 function 必须已经是规范的标签值，function 不能为空。
func NewFunctionID(module, function string) (FunctionID, error) {
	if function == "" {
		return FunctionID{}, ErrEmptyFunction
	}
	for _, v := range [...]string{module, function} {
		if !Valid(v) {
			return FunctionID{}, fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
	}
	return FunctionID{Module: module, Function: function}, nil
}

// MustFunctionID 与 NewFunctionID 相同，失败时 panic。
// 用于包级变量，非法标识在程序初始化时即失败。
func MustFunctionID(module, function string) FunctionID {
	id, err := NewFunctionID(module, function)
	if err != nil {
		panic(err)
	}
	return id
}

// Func 创建 FunctionID，对输入做规范化而不报错。
func Func(module, function string) FunctionID {
	return FunctionID{Module: Sanitize(module), Function: Sanitize(function)}
}

// CurrentFunction 从调用栈推导 FunctionID。
// skip 为 0 时返回调用 CurrentFunction 的函数。
//
//go:noinline
func CurrentFunction(skip int) FunctionID {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return FunctionID{Function: "unknown"}
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	return SplitQualified(frame.Function)
}

// SplitQualified 拆分 runtime 给出的完整函数名，
// 例如 "github.com/acme/shop.(*Cart).Checkout" → {github.com/acme/shop, Cart.Checkout}。
func SplitQualified(qualified string) FunctionID {
	if qualified == "" {
		return FunctionID{Function: "unknown"}
	}
	lastSlash := strings.LastIndexByte(qualified, '/')
	dot := strings.IndexByte(qualified[lastSlash+1:], '.')
	if dot < 0 {
		return Func("", qualified)
	}
	split := lastSlash + 1 + dot
	// runtime 把最后一段路径中的 '.' 转义为 "%2e"（如 gopkg.in/yaml%2ev3）
	module := strings.ReplaceAll(qualified[:split], "%2e", ".")
	return Func(module, qualified[split+1:])
}

// IsZero 报告是否为零值。
func (f FunctionID) IsZero() bool {
	return f.Module == "" && f.Function == ""
}

// String 返回 "module.function"，module 为空时只返回函数名。
func (f FunctionID) String() string {
	if f.Module == "" {
		return f.Function
	}
	return f.Module + "." + f.Function
}

// Identity 是一次调用的标识：被调函数以及可选的调用方。
type Identity struct {
	FunctionID
	// Caller 调用方函数名，未知时为空。
	Caller string
}

type callerKey struct{}

// WithCaller 把当前函数记录到 ctx，供其内部发起的嵌套埋点调用作为 caller 标签。
func WithCaller(ctx context.Context, fn FunctionID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, fn)
}

// CallerFrom 返回 ctx 中记录的调用方函数。
func CallerFrom(ctx context.Context) (FunctionID, bool) {
	if ctx == nil {
		return FunctionID{}, false
	}
	fn, ok := ctx.Value(callerKey{}).(FunctionID)
	return fn, ok
}

// IdentityFrom 组合被调函数与 ctx 中的调用方。
func IdentityFrom(ctx context.Context, fn FunctionID) Identity {
	id := Identity{FunctionID: fn}
	if caller, ok := CallerFrom(ctx); ok {
		id.Caller = caller.Function
	}
	return id
}
