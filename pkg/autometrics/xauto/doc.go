// Package xauto 在编译时选定唯一的指标后端。
//
// 通过构建标签选择，每次构建恰好链接一个后端：
//
//	（无标签）                 OpenTelemetry（xotel），导出由宿主配置的 MeterProvider 决定
//	autometrics_prometheus     prometheus/client_golang（xprom）
//	autometrics_gokit          go-kit metrics + Prometheus（xgokit）
//	autometrics_promexporter   OpenTelemetry SDK + Prometheus exporter（xpromexp）
//
// 同时指定两个标签时 SelectedBackend 被重复声明，构建失败。
//
// 程序启动时调用 Init：
//
//	backend, err := xauto.Init(ctx, xauto.WithBuildInfo(info))
//	if h, ok := xauto.Handler(backend); ok {
//	    mux.Handle("/metrics", h)
//	}
package xauto
