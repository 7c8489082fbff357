package xtracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// State 是一次调用的状态。
type State int32

const (
	// NotStarted 尚未开始。
	NotStarted State = iota
	// InFlight 已开始，未结束。
	InFlight
	// CompletedOK 正常结束且结果为成功。
	CompletedOK
	// CompletedError 正常结束且结果为失败。
	CompletedError
	// Aborted 异常退出（panic、runtime.Goexit）或被显式放弃。
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InFlight:
		return "in_flight"
	case CompletedOK:
		return "completed_ok"
	case CompletedError:
		return "completed_error"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Tracker 跟踪一次调用。
//
// Start 时并发数 +1；Finish、End 或 Abort 中先发生的一个结束跟踪，并发数 −1，
// 之后的调用均为空操作。
type Tracker struct {
	site     *Site
	backend  xbackend.Backend
	ctx      context.Context
	identity xlabel.Identity
	start    time.Time
	state    atomic.Int32
	once     sync.Once
}

// Start 开始一次调用跟踪。
//
// 返回的 ctx 携带当前函数作为调用方，传给内部发起的埋点调用即可得到 caller 标签。
// site 为 nil 时返回原 ctx 与 nil Tracker，nil Tracker 的方法均为空操作。
func (s *Site) Start(ctx context.Context) (context.Context, *Tracker) {
	if s == nil {
		return ctx, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t := &Tracker{
		site:     s,
		backend:  s.resolveBackend(),
		ctx:      context.WithoutCancel(ctx),
		identity: xlabel.IdentityFrom(ctx, s.fn),
	}
	t.backend.AddToGauge(t.ctx, xlabel.CallsConcurrent, s.gaugeLabels, 1)
	t.start = s.now()
	t.state.Store(int32(InFlight))

	return xlabel.WithCaller(ctx, s.fn), t
}

// State 返回当前状态。
func (t *Tracker) State() State {
	if t == nil {
		return NotStarted
	}
	return State(t.state.Load())
}

// End 以 *errp 作为调用结果结束跟踪，设计为直接 defer：
//
//	func Checkout(ctx context.Context) (err error) {
//	    ctx, t := checkoutSite.Start(ctx)
//	    defer t.End(&err)
//	    ...
//	}
//
// 函数 panic 时 End 放弃本次记录（只释放并发数），然后重新 panic。
// errp 为 nil 视为成功。
//
// runtime.Goexit 不经过 panic，End 无法把它与正常返回区分，
// 此时按 *errp 记为一次完成的调用。需要把 Goexit 记为放弃时使用 Track。
func (t *Tracker) End(errp *error) {
	if t == nil {
		return
	}
	if r := recover(); r != nil {
		t.Abort(fmt.Errorf("%w: %v", ErrPanicked, r))
		panic(r)
	}
	var err error
	if errp != nil {
		err = *errp
	}
	t.complete(func() xlabel.Outcome { return t.site.Classify(err) })
}

// Finish 以给定结果结束跟踪：记录调用次数、延迟、目标计数并释放并发数。
func (t *Tracker) Finish(outcome xlabel.Outcome) {
	if t == nil {
		return
	}
	t.complete(func() xlabel.Outcome { return outcome })
}

// finishErr 按分类规则把 err 转换为结果并结束跟踪。
func (t *Tracker) finishErr(err error) {
	if t == nil {
		return
	}
	t.complete(func() xlabel.Outcome { return t.site.Classify(err) })
}

// complete 在 once 内求值 outcome 并记录。
// 并发数总在退出时释放；outcome 求值 panic 时状态为 Aborted，panic 继续传播。
func (t *Tracker) complete(outcome func() xlabel.Outcome) {
	t.once.Do(func() {
		elapsed := t.site.now().Sub(t.start)
		recorded := false
		defer func() {
			t.release()
			if !recorded {
				t.state.Store(int32(Aborted))
			}
		}()

		out := outcome()
		obj := t.site.objective
		t.backend.IncrementCounter(t.ctx, xlabel.CallsTotal, xlabel.BuildLabels(t.identity, obj, out))
		t.backend.RecordHistogram(t.ctx, xlabel.CallsDuration, xlabel.HistogramLabels(t.identity, obj, out), elapsed.Seconds())
		if !obj.IsZero() {
			t.backend.IncrementCounter(t.ctx, xlabel.ObjectiveCallsTotal, xlabel.ObjectiveLabels(obj, out))
			if lat, ok := obj.Latency(); ok && elapsed <= lat.Threshold {
				t.backend.IncrementCounter(t.ctx, xlabel.ObjectiveBelowThreshold, xlabel.BelowThresholdLabels(obj))
			}
		}

		if out.IsError() {
			t.state.Store(int32(CompletedError))
		} else {
			t.state.Store(int32(CompletedOK))
		}
		recorded = true
	})
}

// Abort 放弃本次跟踪：只释放并发数，不计入调用次数与延迟。
func (t *Tracker) Abort(reason error) {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.release()
		t.state.Store(int32(Aborted))
		xlog.OrDefault(t.site.logger).Warn(t.ctx, "xtracker: call aborted",
			xlog.Function(t.site.fn.Function),
			xlog.Module(t.site.fn.Module),
			xlog.Err(reason),
		)
	})
}

func (t *Tracker) release() {
	t.backend.AddToGauge(t.ctx, xlabel.CallsConcurrent, t.site.gaugeLabels, -1)
}
