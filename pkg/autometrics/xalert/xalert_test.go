package xalert

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

func TestGenerate_SuccessRateThreshold(t *testing.T) {
	obj := xobjective.MustParse("api", "success_rate = 99.9%")
	rules := Generate([]xobjective.Objective{obj})
	require.Len(t, rules, len(DefaultWindows))

	for i, r := range rules {
		assert.Equal(t, KindSuccessRate, r.Kind)
		assert.Equal(t, "api", r.Objective)
		assert.InDelta(t, 0.001, r.Threshold, 1e-12)
		assert.Equal(t, DefaultWindows[i].BurnRate, r.BurnRate)
		assert.Equal(t, DefaultWindows[i].Long, r.LongWindow)
		assert.Equal(t, DefaultWindows[i].Short, r.ShortWindow)
		assert.Contains(t, r.Expr, "0.001")
		assert.Contains(t, r.Expr, xlabel.ObjectiveCallsTotal)
		assert.Contains(t, r.Expr, `result="error"`)
		assert.Equal(t, "api", r.Labels[xlabel.KeyObjectiveName])
	}

	page := rules[0]
	assert.Equal(t, SeverityPage, page.Severity)
	assert.Contains(t, page.Expr, "[1h]")
	assert.Contains(t, page.Expr, "[5m]")
	assert.Contains(t, page.Expr, "> (14.4 * 0.001)")
	assert.Equal(t, SeverityTicket, rules[3].Severity)
	assert.Contains(t, rules[3].Expr, "[3d]")
}

func TestGenerate_LatencyThreshold(t *testing.T) {
	obj := xobjective.MustNew("search", xobjective.WithLatency(200*time.Millisecond, xobjective.P95))
	rules := Generate([]xobjective.Objective{obj})
	require.Len(t, rules, len(DefaultWindows))

	r := rules[0]
	assert.Equal(t, KindLatency, r.Kind)
	assert.InDelta(t, 0.05, r.Threshold, 1e-12)
	assert.Contains(t, r.Expr, xlabel.ObjectiveBelowThreshold)
	assert.Contains(t, r.Expr, `objective_latency_threshold="0.2"`)
	assert.Contains(t, r.Expr, "0.05")
	assert.Contains(t, r.Annotations["description"], "over 200ms")
}

func TestGenerate_Ordering(t *testing.T) {
	both := xobjective.MustParse("b", "success_rate = 99%, latency(99% < 1s)")
	a := xobjective.MustParse("a", "success_rate = 95%")
	rules := Generate([]xobjective.Objective{both, a, a}, WithWindows(DefaultWindows[0]))

	require.Len(t, rules, 3)
	assert.Equal(t, "a", rules[0].Objective)
	assert.Equal(t, "b", rules[1].Objective)
	assert.Equal(t, KindSuccessRate, rules[1].Kind)
	assert.Equal(t, KindLatency, rules[2].Kind)

	// 确定性
	assert.Equal(t, rules, Generate([]xobjective.Objective{a, both}, WithWindows(DefaultWindows[0])))
}

func TestAlertRule_Firing(t *testing.T) {
	obj := xobjective.MustParse("checkout-slo", "success_rate = 99.5%")
	rules := Generate([]xobjective.Objective{obj})

	ratio := Ratio(3, 1000)
	assert.InDelta(t, 0.003, ratio, 1e-12)
	for _, r := range rules {
		assert.InDelta(t, 0.005, r.Threshold, 1e-12)
		assert.False(t, r.Firing(ratio, ratio), "burn %v", r.BurnRate)
	}

	page := rules[0]
	assert.True(t, page.Firing(0.1, 0.1))
	assert.False(t, page.Firing(0.1, 0.01), "短窗口已恢复时不告警")
	assert.False(t, page.Firing(0.01, 0.1), "长窗口未达到时不告警")

	ticket := rules[3]
	assert.True(t, ticket.Firing(0.006, 0.006))
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 0.0, Ratio(5, 0), 1e-12)
	assert.InDelta(t, 0.0, Ratio(0, -1), 1e-12)
	assert.InDelta(t, 0.5, Ratio(1, 2), 1e-12)
}

func TestWithLabels(t *testing.T) {
	obj := xobjective.MustParse("api", "success_rate = 99%")
	rules := Generate([]xobjective.Objective{obj}, WithLabels(map[string]string{"team": "payments"}))
	for _, r := range rules {
		assert.Equal(t, "payments", r.Labels["team"])
	}
}

func TestRecording(t *testing.T) {
	obj := xobjective.MustParse("api", "success_rate = 99%, latency(99% < 250ms)")
	rules := Recording([]xobjective.Objective{obj})

	// 7 个不同窗口（5m 30m 1h 2h 6h 1d 3d）× 2 类
	require.Len(t, rules, 14)
	assert.Equal(t, "slo:sli_error:ratio_rate5m", rules[0].Record)
	assert.Equal(t, "slo:sli_error:ratio_rate3d", rules[6].Record)
	assert.Equal(t, "slo:sli_latency_over_threshold:ratio_rate5m", rules[7].Record)
	assert.Equal(t, "api", rules[0].Labels[xlabel.KeyObjectiveName])
	assert.Contains(t, rules[7].Expr, `objective_latency_threshold="0.25"`)
}

func TestRuleFile_RoundTrip(t *testing.T) {
	objs := []xobjective.Objective{
		xobjective.MustParse("checkout-slo", "success_rate = 99.5%"),
		xobjective.MustParse("search", "latency(95% < 200ms)"),
	}
	out, err := RuleFile(Groups(objs))
	require.NoError(t, err)

	var parsed File
	require.NoError(t, yaml.Unmarshal(out, &parsed))
	require.Len(t, parsed.Groups, 2)
	assert.Equal(t, "autometrics-slo-checkout-slo", parsed.Groups[0].Name)

	var alerts, records int
	for _, r := range parsed.Groups[0].Rules {
		switch {
		case r.Alert != "":
			alerts++
			assert.Equal(t, AlertSuccessRate, r.Alert)
			assert.NotEmpty(t, r.Annotations["summary"])
		case r.Record != "":
			records++
			assert.True(t, strings.HasPrefix(r.Record, "slo:sli_error:ratio_rate"))
		}
	}
	assert.Equal(t, len(DefaultWindows), alerts)
	assert.Equal(t, 7, records)

	again, err := RuleFile(Groups(objs))
	require.NoError(t, err)
	assert.Equal(t, string(out), string(again))
}

func TestRuleFile_Empty(t *testing.T) {
	out, err := RuleFile(nil)
	require.NoError(t, err)
	assert.Equal(t, "groups: []\n", string(out))
}

func TestFromRegistry(t *testing.T) {
	r := xregistry.New(xregistry.WithLogger(xlog.Discard()))
	obj := xobjective.MustParse("api", "success_rate = 99.9%")
	require.NoError(t, r.Contribute(obj, xlabel.Func("shop", "checkout")))

	rules, err := FromRegistry(r)
	require.NoError(t, err)
	assert.Len(t, rules, len(DefaultWindows))

	groups, err := GroupsFromRegistry(r)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	conflicting := xregistry.New(xregistry.WithLogger(xlog.Discard()))
	require.NoError(t, conflicting.Contribute(obj, xlabel.Func("shop", "a")))
	require.NoError(t, conflicting.Contribute(xobjective.MustParse("api", "success_rate = 99%"), xlabel.Func("shop", "b")))
	_, err = FromRegistry(conflicting)
	assert.ErrorIs(t, err, xregistry.ErrConflict)
}
