package xtracker

import "context"

// Track 在跟踪范围内执行 fn，返回 fn 的错误（原样返回）。
//
// fn 正常返回时按分类规则记录结果；fn 或分类函数 panic、fn 调用 runtime.Goexit 时
// 本次调用被放弃（只释放并发数），panic 原样继续传播。
func Track(ctx context.Context, site *Site, fn func(context.Context) error) error {
	_, err := TrackValue(ctx, site, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// TrackValue 与 Track 相同，用于有返回值的函数。
func TrackValue[T any](ctx context.Context, site *Site, fn func(context.Context) (T, error)) (T, error) {
	ctx, t := site.Start(ctx)
	completed := false
	defer func() {
		if !completed {
			t.Abort(ErrAbnormalExit)
		}
	}()

	v, err := fn(ctx)
	t.finishErr(err)
	completed = true
	return v, err
}
