// Package xtracker 为单次函数调用记录指标。
//
// 每个被埋点的函数声明一个 Site（通常是包级变量），每次调用通过 Site.Start
// 得到一个 Tracker。调用状态：
//
//	NotStarted → InFlight → CompletedOK | CompletedError | Aborted
//
// 进入时 function_calls_concurrent +1；正常结束时记录 function_calls_total、
// function_calls_duration（秒），关联了目标的函数还记录 objective_calls_total
// 以及延迟达标时的 objective_latency_below_threshold_total，最后并发数 −1。
// 异常退出（panic、runtime.Goexit）只释放并发数，不计入调用次数。
//
// 无论以何种方式离开跟踪范围，并发数都会回到调用前的值。
//
// 两种用法：
//
//	// 作用域形式，覆盖 panic 与 runtime.Goexit
//	err := xtracker.Track(ctx, checkoutSite, func(ctx context.Context) error {
//	    return checkout(ctx)
//	})
//
//	// defer 形式
//	func Checkout(ctx context.Context) (err error) {
//	    ctx, t := checkoutSite.Start(ctx)
//	    defer t.End(&err)
//	    ...
//	}
//
// 埋点不改变被调函数的返回值；后端故障在后端内部被吸收。
// 记录使用 context.WithoutCancel，请求取消后仍能计入失败。
package xtracker
