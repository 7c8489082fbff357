package xbackend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// logEvery 同一指标首次失败之后，每累计 logEvery 次失败再记录一次日志。
const logEvery = 1000

// Guard 吸收后端失败：计数、限频记录日志，从不向调用方传播。
type Guard struct {
	backend   string
	logger    xlog.Logger
	dropped   atomic.Uint64
	perMetric sync.Map // metric name → *atomic.Uint64
}

// NewGuard 创建 Guard。logger 为 nil 时使用 xlog.Default()。
func NewGuard(backend string, logger xlog.Logger) *Guard {
	return &Guard{
		backend: backend,
		logger:  logger,
	}
}

// Do 执行 fn，吸收其中的 panic。
func (g *Guard) Do(ctx context.Context, metric string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			g.Drop(ctx, metric, fmt.Errorf("%w: %v", ErrRecordPanic, r))
		}
	}()
	fn()
}

// Drop 记录一次被吸收的失败。
func (g *Guard) Drop(ctx context.Context, metric string, err error) {
	g.dropped.Add(1)

	v, _ := g.perMetric.LoadOrStore(metric, new(atomic.Uint64))
	n := v.(*atomic.Uint64).Add(1)
	if n != 1 && n%logEvery != 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	xlog.OrDefault(g.logger).Warn(ctx, "xbackend: metric record dropped",
		xlog.Backend(g.backend),
		xlog.Metric(metric),
		xlog.Count(int64(n)),
		xlog.Err(err),
	)
}

// Dropped 返回累计被吸收的失败次数。
func (g *Guard) Dropped() uint64 {
	if g == nil {
		return 0
	}
	return g.dropped.Load()
}
