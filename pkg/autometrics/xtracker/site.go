package xtracker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

type backendHolder struct{ backend xbackend.Backend }

var current atomic.Pointer[backendHolder]

// SetBackend 设置进程级后端并返回之前的后端。nil 恢复为 xbackend.Noop。
//
// 已经 Start 的调用继续使用 Start 时的后端完成记录。
func SetBackend(b xbackend.Backend) xbackend.Backend {
	if b == nil {
		b = xbackend.Noop{}
	}
	prev := current.Swap(&backendHolder{backend: b})
	if prev == nil {
		return xbackend.Noop{}
	}
	return prev.backend
}

// Backend 返回进程级后端，未设置时为 xbackend.Noop。
func Backend() xbackend.Backend {
	if h := current.Load(); h != nil {
		return h.backend
	}
	return xbackend.Noop{}
}

type siteConfig struct {
	objective xobjective.Objective
	registry  *xregistry.Registry
	backend   xbackend.Backend
	classify  classifier
	now       func() time.Time
	logger    xlog.Logger
}

// Option 配置 Site。
type Option func(*siteConfig)

// WithObjective 把函数关联到目标。Declare 时会向 Registry 贡献该声明。
func WithObjective(obj xobjective.Objective) Option {
	return func(cfg *siteConfig) {
		cfg.objective = obj
	}
}

// WithRegistry 指定接收目标声明的 Registry，默认 xregistry.Default()。
func WithRegistry(r *xregistry.Registry) Option {
	return func(cfg *siteConfig) {
		if r != nil {
			cfg.registry = r
		}
	}
}

// WithBackend 为该函数固定后端，不跟随 SetBackend。
func WithBackend(b xbackend.Backend) Option {
	return func(cfg *siteConfig) {
		cfg.backend = b
	}
}

// WithOkIf 当 fn(err) 为 true 时记为成功，即使 err 非 nil。不能与 WithErrorIf 同时使用。
func WithOkIf(fn func(error) bool) Option {
	return func(cfg *siteConfig) {
		cfg.classify.okIf = fn
	}
}

// WithErrorIf 以 fn(err) 决定是否记为失败，替代默认的 err != nil。不能与 WithOkIf 同时使用。
func WithErrorIf(fn func(error) bool) Option {
	return func(cfg *siteConfig) {
		cfg.classify.errorIf = fn
	}
}

// WithErrorCategory 设置错误分类函数，返回值作为 error_category 标签。
// 返回空字符串时回退到默认分类。
func WithErrorCategory(fn func(error) string) Option {
	return func(cfg *siteConfig) {
		cfg.classify.category = fn
	}
}

// WithClock 替换时钟，用于测试。
func WithClock(now func() time.Time) Option {
	return func(cfg *siteConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithLogger 设置记录异常退出的 Logger，默认 xlog.Default()。
func WithLogger(logger xlog.Logger) Option {
	return func(cfg *siteConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Site 是一个已声明的埋点函数，通常作为包级变量创建一次，并发调用安全。
//
//	var checkoutSite = xtracker.Declare(xlabel.MustFunctionID("shop", "checkout"),
//	    xtracker.WithObjective(xobjective.MustParse("checkout-slo", "success_rate = 99.5%")))
type Site struct {
	fn          xlabel.FunctionID
	objective   xobjective.Objective
	backend     xbackend.Backend
	classify    classifier
	now         func() time.Time
	logger      xlog.Logger
	gaugeLabels xlabel.Labels
}

// Declare 声明埋点函数。fn 的函数名为空或同时设置 WithOkIf 与 WithErrorIf 时 panic：
// 这是程序初始化阶段的配置错误。
//
// 带目标的声明会贡献到 Registry；Registry 已冻结时只记录警告，函数仍然正常埋点。
func Declare(fn xlabel.FunctionID, opts ...Option) *Site {
	if fn.Function == "" {
		panic(xlabel.ErrEmptyFunction)
	}
	cfg := &siteConfig{
		registry: xregistry.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if cfg.classify.okIf != nil && cfg.classify.errorIf != nil {
		panic(fmt.Errorf("%w: %s", ErrConflictingClassifiers, fn))
	}

	fn = xlabel.Func(fn.Module, fn.Function)
	if !cfg.objective.IsZero() {
		if err := cfg.registry.Contribute(cfg.objective, fn); err != nil {
			xlog.OrDefault(cfg.logger).Warn(context.Background(), "xtracker: objective not registered",
				xlog.Objective(cfg.objective.Name()),
				xlog.Function(fn.Function),
				xlog.Module(fn.Module),
				xlog.Err(err),
			)
		}
	}

	return &Site{
		fn:          fn,
		objective:   cfg.objective,
		backend:     cfg.backend,
		classify:    cfg.classify,
		now:         cfg.now,
		logger:      cfg.logger,
		gaugeLabels: xlabel.GaugeLabels(fn),
	}
}

// Function 返回函数标识。
func (s *Site) Function() xlabel.FunctionID { return s.fn }

// Objective 返回关联的目标，未关联时为零值。
func (s *Site) Objective() xobjective.Objective { return s.objective }

// Classify 按该函数的分类规则把 err 转换为调用结果。
func (s *Site) Classify(err error) xlabel.Outcome { return s.classify.outcome(err) }

func (s *Site) resolveBackend() xbackend.Backend {
	if s.backend != nil {
		return s.backend
	}
	return Backend()
}
