package xalert

import "time"

// Kind 是告警针对的目标类型。
type Kind string

const (
	// KindSuccessRate 成功率目标。
	KindSuccessRate Kind = "success_rate"
	// KindLatency 延迟目标。
	KindLatency Kind = "latency"
)

// Severity 告警级别。
type Severity string

const (
	// SeverityPage 需要立即处理。
	SeverityPage Severity = "page"
	// SeverityTicket 工作时间内处理。
	SeverityTicket Severity = "ticket"
)

// Window 是一组多窗口燃烧率参数：长短两个窗口上的违规比例
// 都超过 BurnRate × 错误预算时告警。
type Window struct {
	Long     time.Duration
	Short    time.Duration
	BurnRate float64
	Severity Severity
}

// DefaultWindows 是多窗口多燃烧率告警的标准参数（30 天目标周期）。
var DefaultWindows = []Window{
	{Long: time.Hour, Short: 5 * time.Minute, BurnRate: 14.4, Severity: SeverityPage},
	{Long: 6 * time.Hour, Short: 30 * time.Minute, BurnRate: 6, Severity: SeverityPage},
	{Long: 24 * time.Hour, Short: 2 * time.Hour, BurnRate: 3, Severity: SeverityTicket},
	{Long: 72 * time.Hour, Short: 6 * time.Hour, BurnRate: 1, Severity: SeverityTicket},
}

// AlertRule 是由一个目标派生出的告警规则，生成后不再修改。
type AlertRule struct {
	// Name 告警名。
	Name string
	// Objective 目标名。
	Objective string
	Kind      Kind
	// Threshold 错误预算，即 1 − 目标比例（99.9% → 0.001）。
	Threshold   float64
	BurnRate    float64
	LongWindow  time.Duration
	ShortWindow time.Duration
	Severity    Severity
	// Expr 引用 xlabel 指标名与标签名的 PromQL 表达式。
	Expr        string
	Labels      map[string]string
	Annotations map[string]string
}

// Limit 返回触发告警的违规比例下限 BurnRate × Threshold。
func (r AlertRule) Limit() float64 {
	return r.BurnRate * r.Threshold
}

// Firing 按观测到的长、短窗口违规比例判断告警是否触发，与 Expr 的语义一致。
func (r AlertRule) Firing(longRatio, shortRatio float64) bool {
	limit := r.Limit()
	return longRatio > limit && shortRatio > limit
}

// Ratio 返回 bad/total，total 不为正时返回 0。
func Ratio(bad, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return bad / total
}

// RecordingRule 预计算某个窗口上的违规比例。
type RecordingRule struct {
	// Record 记录的序列名，如 slo:sli_error:ratio_rate5m。
	Record    string
	Objective string
	Kind      Kind
	Window    time.Duration
	Expr      string
	Labels    map[string]string
}
