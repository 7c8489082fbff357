// Package xconf 加载 autometrics 的进程级配置，基于 koanf 实现。
//
// # 支持的格式
//
//   - YAML（默认，推荐）：.yaml, .yml
//   - JSON：.json
//
// # 用法
//
//	settings, err := xconf.Load("/etc/app/autometrics.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := xregistry.LoadObjectives(settings.Objectives); err != nil {
//	    return err
//	}
//	backend, err := xauto.Init(ctx,
//	    xauto.WithBuildInfo(settings.BuildInfo),
//	    xauto.WithBuckets(settings.BucketsOrDefault()),
//	    xauto.WithObjectiveBuckets(xregistry.Default()),
//	)
//
// 加载时完成校验：桶边界必须为正，目标声明必须能解析且覆盖至少一个函数，
// 同名目标的声明必须一致。校验只读取配置，不会向任何 Registry 贡献目标。
//
// # 并发与重载
//
// Loader.Settings 返回不可变快照；Reload 在 sync.Mutex 下串行执行，
// 成功后原子替换快照，失败时保留原配置。Loader.Watch 基于 fsnotify
// 监视配置文件所在目录，带防抖，支持编辑器的原子写入。
package xconf
