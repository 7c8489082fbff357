package xregistry

import (
	"fmt"
	"strings"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
)

var defaultRegistry = New()

// Default 返回进程级 Registry。
func Default() *Registry { return defaultRegistry }

// Contribute 向进程级 Registry 追加声明，通常在包级变量初始化时调用。
func Contribute(obj xobjective.Objective, fn xlabel.FunctionID) error {
	return defaultRegistry.Contribute(obj, fn)
}

// Objectives 返回进程级 Registry 的合并结果。
func Objectives() ([]Entry, error) {
	return defaultRegistry.Objectives()
}

// MustObjectives 与 Objectives 相同，冲突时 panic。
func MustObjectives() []Entry {
	entries, err := defaultRegistry.Objectives()
	if err != nil {
		panic(err)
	}
	return entries
}

// Declaration 是配置文件中声明的目标。
type Declaration struct {
	// Name 目标名称。
	Name string `koanf:"name" json:"name" yaml:"name"`
	// Objective 声明字符串，如 "success_rate = 99.9%, latency(99% < 200ms)"。
	Objective string `koanf:"objective" json:"objective" yaml:"objective"`
	// Functions 覆盖的函数，形如 "module.function"。
	Functions []string `koanf:"functions" json:"functions" yaml:"functions"`
}

// Load 解析配置声明并逐条贡献。任何一条解析失败都不会贡献该条声明。
func (r *Registry) Load(decls []Declaration) error {
	for _, d := range decls {
		obj, err := xobjective.Parse(d.Name, d.Objective)
		if err != nil {
			return fmt.Errorf("objective %q: %w", d.Name, err)
		}
		if len(d.Functions) == 0 {
			return fmt.Errorf("objective %q: %w", d.Name, ErrNoFunctions)
		}
		fns := make([]xlabel.FunctionID, 0, len(d.Functions))
		for _, q := range d.Functions {
			q = strings.TrimSpace(q)
			if q == "" {
				return fmt.Errorf("objective %q: %w", d.Name, xlabel.ErrEmptyFunction)
			}
			fns = append(fns, xlabel.SplitQualified(q))
		}
		for _, fn := range fns {
			if err := r.Contribute(obj, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadObjectives 向进程级 Registry 贡献配置声明。
func LoadObjectives(decls []Declaration) error {
	return defaultRegistry.Load(decls)
}
