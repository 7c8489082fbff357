package xregistry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

// Entry 是合并后的一个目标及其覆盖的函数集合。
type Entry struct {
	Objective xobjective.Objective
	// Functions 按 String() 升序、去重。
	Functions []xlabel.FunctionID
}

func (e Entry) clone() Entry {
	e.Functions = slices.Clone(e.Functions)
	return e
}

type contribution struct {
	objective xobjective.Objective
	function  xlabel.FunctionID
}

// Option 配置 Registry。
type Option func(*Registry)

// WithLogger 设置 Logger，默认使用 xlog.Default()。
func WithLogger(logger xlog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry 收集目标声明，并在首次读取时一次性合并、冻结。
//
// 贡献阶段只追加；合并只执行一次，之后所有读取都是对冻结结果的查找。
type Registry struct {
	logger xlog.Logger

	mu            sync.Mutex
	contributions []contribution
	frozen        bool

	once    sync.Once
	entries []Entry
	index   map[string]int
	err     error
	merges  atomic.Int32
}

// New 创建空 Registry。
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Contribute 追加一条 (目标, 函数) 声明。
//
// 首次读取之后 Registry 已冻结，返回 ErrFrozen：冻结后的声明不会进入合并结果。
func (r *Registry) Contribute(obj xobjective.Objective, fn xlabel.FunctionID) error {
	if obj.IsZero() {
		return ErrZeroObjective
	}
	if fn.Function == "" {
		return xlabel.ErrEmptyFunction
	}

	r.mu.Lock()
	if r.frozen {
		r.mu.Unlock()
		xlog.OrDefault(r.logger).Warn(context.Background(), "xregistry: contribution after freeze ignored",
			xlog.Objective(obj.Name()),
			xlog.Function(fn.Function),
			xlog.Module(fn.Module),
		)
		return fmt.Errorf("%w: %s for %s", ErrFrozen, obj, fn)
	}
	r.contributions = append(r.contributions, contribution{objective: obj, function: fn})
	r.mu.Unlock()
	return nil
}

// Frozen 报告是否已完成合并。
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// merge 冻结贡献并合并，只执行一次；并发的首次读取者等待同一次合并完成。
func (r *Registry) merge() {
	r.once.Do(func() {
		r.mu.Lock()
		r.frozen = true
		contributions := r.contributions
		r.contributions = nil
		r.mu.Unlock()

		r.entries, r.index, r.err = aggregate(contributions)
		r.merges.Add(1)
		if r.err != nil {
			xlog.OrDefault(r.logger).Error(context.Background(), "xregistry: conflicting objectives", xlog.Err(r.err))
		}
	})
}

func aggregate(contributions []contribution) ([]Entry, map[string]int, error) {
	byName := make(map[string]*Entry)
	var conflicts []error
	conflicted := make(map[string]bool)

	for _, c := range contributions {
		name := c.objective.Name()
		e, ok := byName[name]
		if !ok {
			e = &Entry{Objective: c.objective}
			byName[name] = e
		}
		if !e.Objective.SameTargets(c.objective) && !conflicted[name] {
			conflicted[name] = true
			conflicts = append(conflicts, fmt.Errorf("%w: %q declared as %q and %q",
				ErrConflict, name, e.Objective.Declaration(), c.objective.Declaration()))
		}
		e.Functions = append(e.Functions, c.function)
	}

	entries := make([]Entry, 0, len(byName))
	for _, e := range byName {
		slices.SortFunc(e.Functions, compareFunctions)
		e.Functions = slices.Compact(e.Functions)
		entries = append(entries, *e)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Objective.Name(), b.Objective.Name())
	})

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Objective.Name()] = i
	}

	slices.SortFunc(conflicts, func(a, b error) int { return cmp.Compare(a.Error(), b.Error()) })
	return entries, index, errors.Join(conflicts...)
}

func compareFunctions(a, b xlabel.FunctionID) int {
	if c := cmp.Compare(a.Module, b.Module); c != 0 {
		return c
	}
	return cmp.Compare(a.Function, b.Function)
}

// Objectives 返回按名称排序的合并结果（副本）。存在冲突时返回 ErrConflict。
func (r *Registry) Objectives() ([]Entry, error) {
	r.merge()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.clone()
	}
	return out, nil
}

// Lookup 按名称查找目标。
func (r *Registry) Lookup(name string) (Entry, error) {
	r.merge()
	if r.err != nil {
		return Entry{}, r.err
	}
	i, ok := r.index[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.entries[i].clone(), nil
}

// Functions 返回目标 name 覆盖的函数。
func (r *Registry) Functions(name string) ([]xlabel.FunctionID, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return e.Functions, nil
}

// Err 触发合并并返回合并错误。
func (r *Registry) Err() error {
	r.merge()
	return r.err
}
