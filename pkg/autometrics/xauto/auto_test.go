package xauto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
	"github.com/omeyang/xautometrics/pkg/autometrics/xtracker"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

func TestInit_InstallsSelectedBackend(t *testing.T) {
	ctx := context.Background()
	b, err := Init(ctx,
		WithBuildInfo(xbackend.BuildInfo{Version: "1.0.0", Commit: "abc", Branch: "main"}),
		WithLogger(xlog.Discard()),
	)
	require.NoError(t, err)

	assert.Equal(t, SelectedBackend, b.Name())
	assert.Same(t, b, xtracker.Backend())

	require.NoError(t, Shutdown(ctx, b))
	assert.Equal(t, xbackend.Noop{}, xtracker.Backend())
}

func TestInit_ObjectiveBuckets(t *testing.T) {
	r := xregistry.New(xregistry.WithLogger(xlog.Discard()))
	require.NoError(t, r.Contribute(
		xobjective.MustNew("api", xobjective.WithLatency(230*time.Millisecond, xobjective.P99)),
		xlabel.Func("shop", "checkout")))

	b, err := Init(context.Background(), WithObjectiveBuckets(r), WithLogger(xlog.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Shutdown(context.Background(), b) })
	assert.True(t, r.Frozen())
}

func TestConfig_MergeObjectiveBuckets(t *testing.T) {
	r := xregistry.New(xregistry.WithLogger(xlog.Discard()))
	require.NoError(t, r.Contribute(
		xobjective.MustNew("api", xobjective.WithLatency(230*time.Millisecond, xobjective.P99)),
		xlabel.Func("shop", "checkout")))
	require.NoError(t, r.Contribute(
		xobjective.MustNew("rate", xobjective.WithSuccessRate(xobjective.P99)),
		xlabel.Func("shop", "pay")))

	cfg := &config{buckets: []float64{0.1, 0.5}, registry: r}
	require.NoError(t, cfg.mergeObjectiveBuckets())
	assert.Equal(t, []float64{0.1, 0.23, 0.5}, cfg.buckets)

	noRegistry := &config{buckets: []float64{0.1}}
	require.NoError(t, noRegistry.mergeObjectiveBuckets())
	assert.Equal(t, []float64{0.1}, noRegistry.buckets)
}

func TestInit_RegistryConflict(t *testing.T) {
	r := xregistry.New(xregistry.WithLogger(xlog.Discard()))
	require.NoError(t, r.Contribute(xobjective.MustParse("api", "success_rate = 99%"), xlabel.Func("m", "a")))
	require.NoError(t, r.Contribute(xobjective.MustParse("api", "success_rate = 99.9%"), xlabel.Func("m", "b")))

	_, err := Init(context.Background(), WithObjectiveBuckets(r), WithLogger(xlog.Discard()))
	assert.ErrorIs(t, err, xregistry.ErrConflict)
}

func TestHandler(t *testing.T) {
	_, ok := Handler(xbackend.Noop{})
	assert.False(t, ok)
}
