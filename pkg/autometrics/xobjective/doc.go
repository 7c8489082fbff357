// Package xobjective 定义服务等级目标（SLO）的数据模型。
//
// 一个 [Objective] 由唯一名称和至多一个成功率目标、至多一个延迟目标组成：
//
//	var CheckoutSLO = xobjective.MustNew("checkout-slo",
//		xobjective.WithSuccessRate(xobjective.P99_5),
//		xobjective.WithLatency(200*time.Millisecond, xobjective.P95),
//	)
//
// 也可以用声明字符串构造：
//
//	obj, err := xobjective.Parse("checkout-slo", "success_rate = 99.5%, latency(95% < 200ms)")
//
// # 百分位的精度
//
// [Percentile] 以百万分之一（ppm）为单位的定点数保存，格式化结果只取决于
// 声明值本身，不受浮点误差影响，因此标签值和告警阈值在任何进程、任何后端下
// 都逐字节一致。
package xobjective
