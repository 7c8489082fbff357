package xtracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xautometrics/pkg/autometrics/xalert"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xtracker"
)

// 50 个并发调用全部开始后并发数为 50；其中 5 个返回错误、2 个 panic，
// 全部结束后并发数回到 0。
func TestScenario_ProcessItemConcurrency(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("worker", "process_item")
	site := h.declare(fn)

	const (
		total  = 50
		failed = 5
		panics = 2
	)

	var started sync.WaitGroup
	started.Add(total)
	release := make(chan struct{})

	var g errgroup.Group
	for i := range total {
		g.Go(func() error {
			defer func() { _ = recover() }()
			_ = xtracker.Track(context.Background(), site, func(context.Context) error {
				started.Done()
				<-release
				switch {
				case i < failed:
					return errBoom
				case i < failed+panics:
					panic("abort")
				default:
					return nil
				}
			})
			return nil
		})
	}

	started.Wait()
	assert.InDelta(t, float64(total), h.concurrent(fn), 1e-9)

	close(release)
	require.NoError(t, g.Wait())

	assert.InDelta(t, 0.0, h.concurrent(fn), 1e-9)
	assert.InDelta(t, float64(total-failed-panics), h.calls(fn, xobjective.Objective{}, xlabel.OK()), 1e-9)
	assert.InDelta(t, float64(failed), h.calls(fn, xobjective.Objective{}, xlabel.Error("")), 1e-9)
}

// checkout 声明 checkout-slo（成功率 99.5%），1000 次调用中 3 次失败：
// 失败比例 0.003 低于预算 0.005，告警不触发。
func TestScenario_CheckoutObjective(t *testing.T) {
	h := newHarness(t)
	fn := xlabel.Func("shop", "checkout")
	obj := xobjective.MustParse("checkout-slo", "success_rate = 99.5%")
	site := h.declare(fn, xtracker.WithObjective(obj))

	errDeclined := errors.New("card declined")
	for i := range 1000 {
		_ = xtracker.Track(context.Background(), site, func(context.Context) error {
			if i%333 == 1 {
				return errDeclined
			}
			return nil
		})
	}

	ok := h.calls(fn, obj, xlabel.OK())
	bad := h.calls(fn, obj, xlabel.Error(""))
	assert.InDelta(t, 997.0, ok, 1e-9)
	assert.InDelta(t, 3.0, bad, 1e-9)

	objOK := h.backend.Counter(xlabel.ObjectiveCallsTotal, xlabel.ObjectiveLabels(obj, xlabel.OK()))
	objBad := h.backend.Counter(xlabel.ObjectiveCallsTotal, xlabel.ObjectiveLabels(obj, xlabel.Error("")))
	ratio := xalert.Ratio(objBad, objOK+objBad)
	assert.InDelta(t, 0.003, ratio, 1e-12)

	rules, err := xalert.FromRegistry(h.registry)
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	for _, r := range rules {
		assert.Equal(t, "checkout-slo", r.Objective)
		assert.InDelta(t, 0.005, r.Threshold, 1e-12)
		assert.False(t, r.Firing(ratio, ratio))
	}
}
