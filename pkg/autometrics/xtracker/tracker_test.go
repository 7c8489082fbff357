package xtracker_test

import (
	"context"
	"errors"
	"io/fs"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend/xgokit"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
	"github.com/omeyang/xautometrics/pkg/autometrics/xtracker"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ============================================================================
// 测试辅助函数
// ============================================================================

type harness struct {
	backend  *xgokit.Generic
	registry *xregistry.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	g, err := xgokit.NewGeneric()
	require.NoError(t, err)
	return &harness{backend: g, registry: xregistry.New(xregistry.WithLogger(xlog.Discard()))}
}

func (h *harness) declare(fn xlabel.FunctionID, opts ...xtracker.Option) *xtracker.Site {
	base := []xtracker.Option{
		xtracker.WithBackend(h.backend),
		xtracker.WithRegistry(h.registry),
		xtracker.WithLogger(xlog.Discard()),
	}
	return xtracker.Declare(fn, append(base, opts...)...)
}

func (h *harness) calls(fn xlabel.FunctionID, obj xobjective.Objective, outcome xlabel.Outcome) float64 {
	return h.backend.Counter(xlabel.CallsTotal, xlabel.BuildLabels(xlabel.Identity{FunctionID: fn}, obj, outcome))
}

func (h *harness) concurrent(fn xlabel.FunctionID) float64 {
	return h.backend.Concurrent(xlabel.GaugeLabels(fn))
}

// fakeClock 每次读取前进 step。
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

var errBoom = errors.New("boom")

// ============================================================================
// Track
// ============================================================================

func TestTrack_OK(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "list")
	site := h.declare(fn)

	var inside float64
	err := xtracker.Track(context.Background(), site, func(context.Context) error {
		inside = h.concurrent(fn)
		return nil
	})

	require.NoError(t, err)
	assert.InDelta(t, 1.0, inside, 1e-9)
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)

	_, observed := h.backend.Quantile(xlabel.HistogramLabels(xlabel.Identity{FunctionID: fn}, xobjective.Objective{}, xlabel.OK()), 0.5)
	assert.True(t, observed)
}

func TestTrack_ReturnsErrorUnchanged(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "pay")
	site := h.declare(fn)

	err := xtracker.Track(context.Background(), site, func(context.Context) error { return errBoom })

	assert.Same(t, errBoom, err)
	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.Error("")), 1e-9)
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
}

func TestTrack_ContextErrorsAreCategorized(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "search")
	site := h.declare(fn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := xtracker.Track(ctx, site, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)

	dctx, dcancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer dcancel()
	<-dctx.Done()
	_ = xtracker.Track(dctx, site, func(ctx context.Context) error { return ctx.Err() })

	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.Error(xtracker.CategoryCanceled)), 1e-9)
	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.Error(xtracker.CategoryDeadlineExceeded)), 1e-9)
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
}

func TestTrack_Classifiers(t *testing.T) {
	h := newHarness(t)

	notFoundOK := xlabel.Func("store", "get")
	site := h.declare(notFoundOK, xtracker.WithOkIf(func(err error) bool { return errors.Is(err, fs.ErrNotExist) }))
	_ = xtracker.Track(context.Background(), site, func(context.Context) error { return fs.ErrNotExist })
	assert.InDelta(t, 1.0, h.calls(notFoundOK, xobjective.Objective{}, xlabel.OK()), 1e-9)

	onlyBoom := xlabel.Func("store", "put")
	site = h.declare(onlyBoom, xtracker.WithErrorIf(func(err error) bool { return errors.Is(err, errBoom) }))
	_ = xtracker.Track(context.Background(), site, func(context.Context) error { return fs.ErrExist })
	_ = xtracker.Track(context.Background(), site, func(context.Context) error { return errBoom })
	assert.InDelta(t, 1.0, h.calls(onlyBoom, xobjective.Objective{}, xlabel.OK()), 1e-9)
	assert.InDelta(t, 1.0, h.calls(onlyBoom, xobjective.Objective{}, xlabel.Error("")), 1e-9)

	categorized := xlabel.Func("store", "delete")
	site = h.declare(categorized, xtracker.WithErrorCategory(func(err error) string {
		if errors.Is(err, fs.ErrPermission) {
			return "permission denied"
		}
		return ""
	}))
	_ = xtracker.Track(context.Background(), site, func(context.Context) error { return fs.ErrPermission })
	assert.InDelta(t, 1.0, h.calls(categorized, xobjective.Objective{}, xlabel.Error("permission_denied")), 1e-9)
}

func TestTrack_PanicReleasesGaugeAndPropagates(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "explode")
	site := h.declare(fn)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = xtracker.Track(context.Background(), site, func(context.Context) error { panic("kaboom") })
	})

	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
	assert.InDelta(t, 0.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)
	assert.InDelta(t, 0.0, h.calls(fn, xobjective.Objective{}, xlabel.Error("")), 1e-9)
}

func TestTrack_GoexitReleasesGauge(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "exit")
	site := h.declare(fn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = xtracker.Track(context.Background(), site, func(context.Context) error {
			runtime.Goexit()
			return nil
		})
	}()
	<-done

	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
	assert.InDelta(t, 0.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)
}

func TestTrack_ClassifierPanicReleasesGauge(t *testing.T) {
	h := newHarness(t)

	okIf := xlabel.Func("shop", "okif_panic")
	site := h.declare(okIf, xtracker.WithOkIf(func(error) bool { panic("classify") }))
	assert.PanicsWithValue(t, "classify", func() {
		_ = xtracker.Track(context.Background(), site, func(context.Context) error { return errBoom })
	})
	assert.InDelta(t, 0.0, h.concurrent(okIf), 1e-9)
	assert.InDelta(t, 0.0, h.calls(okIf, xobjective.Objective{}, xlabel.Error("")), 1e-9)

	category := xlabel.Func("shop", "category_panic")
	site = h.declare(category, xtracker.WithErrorCategory(func(error) string { panic("category") }))
	assert.PanicsWithValue(t, "category", func() {
		_, _ = xtracker.TrackValue(context.Background(), site, func(context.Context) (int, error) { return 0, errBoom })
	})
	assert.InDelta(t, 0.0, h.concurrent(category), 1e-9)
}

func TestEnd_ClassifierPanicAborts(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "errorif_panic")
	site := h.declare(fn, xtracker.WithErrorIf(func(error) bool { panic("classify") }))

	_, tr := site.Start(context.Background())
	assert.PanicsWithValue(t, "classify", func() {
		err := errBoom
		tr.End(&err)
	})
	assert.Equal(t, xtracker.Aborted, tr.State())
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
	assert.InDelta(t, 0.0, h.calls(fn, xobjective.Objective{}, xlabel.Error("")), 1e-9)
	assert.InDelta(t, 0.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)

	// once 已消耗，后续结束调用均为空操作
	tr.Finish(xlabel.OK())
	assert.Equal(t, xtracker.Aborted, tr.State())
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
}

func TestTrackValue(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "price")
	site := h.declare(fn)

	v, err := xtracker.TrackValue(context.Background(), site, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)
}

func TestTrack_NilSite(t *testing.T) {
	called := false
	err := xtracker.Track(context.Background(), nil, func(context.Context) error {
		called = true
		return errBoom
	})
	assert.True(t, called)
	assert.Same(t, errBoom, err)
}

func TestTrack_CallerPropagation(t *testing.T) {
	h := newHarness(t)
	outerFn := xlabel.Func("shop", "checkout")
	innerFn := xlabel.Func("shop", "reserve")
	outer := h.declare(outerFn)
	inner := h.declare(innerFn)

	err := xtracker.Track(context.Background(), outer, func(ctx context.Context) error {
		return xtracker.Track(ctx, inner, func(context.Context) error { return nil })
	})
	require.NoError(t, err)

	withCaller := xlabel.BuildLabels(xlabel.Identity{FunctionID: innerFn, Caller: "checkout"}, xobjective.Objective{}, xlabel.OK())
	assert.InDelta(t, 1.0, h.backend.Counter(xlabel.CallsTotal, withCaller), 1e-9)
	assert.InDelta(t, 1.0, h.calls(outerFn, xobjective.Objective{}, xlabel.OK()), 1e-9)
}

// ============================================================================
// Start / End / Finish / Abort
// ============================================================================

func deferredCall(site *xtracker.Site, fail bool) (err error) {
	_, t := site.Start(context.Background())
	defer t.End(&err)
	if fail {
		return errBoom
	}
	return nil
}

func deferredPanic(site *xtracker.Site) (err error) {
	_, t := site.Start(context.Background())
	defer t.End(&err)
	panic(errBoom)
}

func TestEnd_Deferred(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "deferred")
	site := h.declare(fn)

	require.NoError(t, deferredCall(site, false))
	require.ErrorIs(t, deferredCall(site, true), errBoom)
	assert.PanicsWithValue(t, errBoom, func() { _ = deferredPanic(site) })

	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)
	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.Error("")), 1e-9)
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
}

// End 无法区分 Goexit 与正常返回，按 *errp 记为完成；Track 则记为放弃。
func TestEnd_GoexitCountsAsCompleted(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "end_exit")
	site := h.declare(fn)

	var tr *xtracker.Tracker
	done := make(chan struct{})
	go func() {
		defer close(done)
		var err error
		_, tr = site.Start(context.Background())
		defer tr.End(&err)
		runtime.Goexit()
	}()
	<-done

	assert.Equal(t, xtracker.CompletedOK, tr.State())
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)
}

func TestTracker_StatesAndIdempotence(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "states")
	site := h.declare(fn)

	var nilTracker *xtracker.Tracker
	assert.Equal(t, xtracker.NotStarted, nilTracker.State())
	assert.NotPanics(t, func() {
		nilTracker.Finish(xlabel.OK())
		nilTracker.Abort(errBoom)
		nilTracker.End(nil)
	})

	_, tr := site.Start(context.Background())
	assert.Equal(t, xtracker.InFlight, tr.State())
	tr.Finish(xlabel.Error("x"))
	tr.Finish(xlabel.OK())
	tr.Abort(errBoom)
	tr.End(nil)
	assert.Equal(t, xtracker.CompletedError, tr.State())
	assert.Equal(t, "completed_error", tr.State().String())

	_, aborted := site.Start(context.Background())
	aborted.Abort(errBoom)
	aborted.Finish(xlabel.OK())
	assert.Equal(t, xtracker.Aborted, aborted.State())

	assert.InDelta(t, 1.0, h.calls(fn, xobjective.Objective{}, xlabel.Error("x")), 1e-9)
	assert.InDelta(t, 0.0, h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)
	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
}

func TestTracker_AbortIsLogged(t *testing.T) {
	var buf syncBuffer
	logger, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)

	h := newHarness(t)
	site := h.declare(xlabel.Func("shop", "logged"), xtracker.WithLogger(logger))
	_, tr := site.Start(context.Background())
	tr.Abort(errBoom)

	assert.Contains(t, buf.String(), "call aborted")
	assert.Contains(t, buf.String(), "logged")
}

// ============================================================================
// 目标
// ============================================================================

func TestTrack_ObjectiveCounters(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("api", "handle")
	obj := xobjective.MustNew("api-latency",
		xobjective.WithSuccessRate(xobjective.P99),
		xobjective.WithLatency(200*time.Millisecond, xobjective.P95))

	fast := h.declare(fn, xtracker.WithObjective(obj),
		xtracker.WithClock((&fakeClock{now: time.Unix(0, 0), step: 100 * time.Millisecond}).Now))
	slow := h.declare(fn, xtracker.WithObjective(obj),
		xtracker.WithClock((&fakeClock{now: time.Unix(0, 0), step: 300 * time.Millisecond}).Now))

	_ = xtracker.Track(context.Background(), fast, func(context.Context) error { return nil })
	_ = xtracker.Track(context.Background(), slow, func(context.Context) error { return nil })
	_ = xtracker.Track(context.Background(), fast, func(context.Context) error { return errBoom })

	assert.InDelta(t, 2.0, h.backend.Counter(xlabel.ObjectiveCallsTotal, xlabel.ObjectiveLabels(obj, xlabel.OK())), 1e-9)
	assert.InDelta(t, 1.0, h.backend.Counter(xlabel.ObjectiveCallsTotal, xlabel.ObjectiveLabels(obj, xlabel.Error(""))), 1e-9)
	assert.InDelta(t, 2.0, h.backend.Counter(xlabel.ObjectiveBelowThreshold, xlabel.BelowThresholdLabels(obj)), 1e-9)

	_, ok := h.backend.Quantile(xlabel.HistogramLabels(xlabel.Identity{FunctionID: fn}, obj, xlabel.OK()), 0.99)
	assert.True(t, ok)
}

func TestDeclare_ContributesObjective(t *testing.T) {
	h := newHarness(t)
	obj := xobjective.MustParse("checkout-slo", "success_rate = 99.5%")
	h.declare(xlabel.Func("shop", "checkout"), xtracker.WithObjective(obj))
	h.declare(xlabel.Func("shop", "pay"), xtracker.WithObjective(obj))
	h.declare(xlabel.Func("shop", "browse"))

	fns, err := h.registry.Functions("checkout-slo")
	require.NoError(t, err)
	assert.Equal(t, []xlabel.FunctionID{xlabel.Func("shop", "checkout"), xlabel.Func("shop", "pay")}, fns)

	// 冻结之后的声明仍可正常埋点
	late := h.declare(xlabel.Func("shop", "late"), xtracker.WithObjective(obj))
	require.NoError(t, xtracker.Track(context.Background(), late, func(context.Context) error { return nil }))
	assert.InDelta(t, 1.0, h.calls(xlabel.Func("shop", "late"), obj, xlabel.OK()), 1e-9)
}

func TestDeclare_EmptyFunctionPanics(t *testing.T) {
	assert.PanicsWithValue(t, xlabel.ErrEmptyFunction, func() {
		xtracker.Declare(xlabel.FunctionID{Module: "shop"})
	})
}

func TestDeclare_ConflictingClassifiersPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, xtracker.ErrConflictingClassifiers)
	}()
	xtracker.Declare(xlabel.Func("shop", "both"),
		xtracker.WithOkIf(func(error) bool { return true }),
		xtracker.WithErrorIf(func(error) bool { return true }),
	)
	t.Fatal("Declare did not panic")
}

func TestDeclare_SanitizesIdentity(t *testing.T) {
	h := newHarness(t)
	site := h.declare(xlabel.FunctionID{Module: "shop", Function: "(*Cart).Add item"})
	assert.Equal(t, "Cart.Add_item", site.Function().Function)
}

func TestSetBackend(t *testing.T) {
	g, err := xgokit.NewGeneric()
	require.NoError(t, err)

	prev := xtracker.SetBackend(g)
	t.Cleanup(func() { xtracker.SetBackend(prev) })
	assert.Same(t, g, xtracker.Backend())

	fn := xlabel.Func("shop", "global")
	site := xtracker.Declare(fn, xtracker.WithRegistry(xregistry.New()))
	require.NoError(t, xtracker.Track(context.Background(), site, func(context.Context) error { return nil }))
	assert.InDelta(t, 1.0, g.Counter(xlabel.CallsTotal,
		xlabel.BuildLabels(xlabel.Identity{FunctionID: fn}, xobjective.Objective{}, xlabel.OK())), 1e-9)

	xtracker.SetBackend(nil)
	assert.Equal(t, xbackend.Noop{}, xtracker.Backend())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
