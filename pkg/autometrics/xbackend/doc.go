// Package xbackend 定义指标后端的能力接口。
//
// 每个构建只链接一个具体实现（由 xauto 通过 build tag 选择），
// 子包提供各生态的适配器：
//
//   - xotel: OpenTelemetry metric API
//   - xprom: Prometheus client_golang
//   - xgokit: go-kit metrics 门面
//   - xpromexp: OpenTelemetry SDK + Prometheus exporter
//
// # 故障策略
//
// [Backend] 的方法不返回错误。底层库的失败（包括 panic）由适配器通过 [Guard]
// 吸收、计数并记录日志，绝不传播到被埋点的业务代码。
//
// # 并发
//
// 适配器自身负责并发安全（底层库均为原子累加），调用方不加锁。
package xbackend
