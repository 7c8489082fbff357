package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xautometrics/pkg/autometrics/xauto"
	"github.com/omeyang/xautometrics/pkg/autometrics/xbackend"
	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
	"github.com/omeyang/xautometrics/pkg/autometrics/xtracker"
	"github.com/omeyang/xautometrics/pkg/config/xconf"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

const shutdownTimeout = 5 * time.Second

var (
	errPaymentDeclined = errors.New("payment declined")
	errOutOfStock      = errors.New("out of stock")
	errAlreadyRefunded = errors.New("already refunded")
)

// demoObjective 覆盖 demo.checkout 与 demo.refund。
var demoObjective = xobjective.MustParse("demo-api", "success_rate = 99%, latency(99% < 250ms)")

func createDemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "以编译时选定的后端运行演示调用",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "/metrics 监听地址，为空时只运行负载",
			},
			&cli.IntFlag{
				Name:  "calls",
				Usage: "checkout 调用次数",
				Value: 200,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "并发调用数",
				Value: 8,
			},
			&cli.DurationFlag{
				Name:  "latency",
				Usage: "单次调用的基础耗时",
				Value: 2 * time.Millisecond,
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "监视配置文件并热更新日志级别",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			calls, concurrency := cmd.Int("calls"), cmd.Int("concurrency")
			if calls < 0 || concurrency <= 0 {
				return &usageError{msg: "--calls 不能为负数，--concurrency 必须为正数"}
			}
			return cmdDemo(ctx, demoOptions{
				config:      cmd.String("config"),
				addr:        cmd.String("addr"),
				calls:       calls,
				concurrency: concurrency,
				latency:     cmd.Duration("latency"),
				watch:       cmd.Bool("watch"),
				stdout:      cmd.Root().Writer,
				stderr:      cmd.Root().ErrWriter,
			})
		},
	}
}

type demoOptions struct {
	config      string
	addr        string
	calls       int
	concurrency int
	latency     time.Duration
	watch       bool
	stdout      io.Writer
	stderr      io.Writer
}

// demoService 是被插桩的演示业务：checkout 调用 inventory，refund 把重复退款视为成功。
type demoService struct {
	checkout  *xtracker.Site
	inventory *xtracker.Site
	refund    *xtracker.Site
	latency   time.Duration
}

func newDemoService(r *xregistry.Registry, logger xlog.Logger, latency time.Duration) *demoService {
	return &demoService{
		checkout: xtracker.Declare(xlabel.Func("demo", "checkout"),
			xtracker.WithObjective(demoObjective), xtracker.WithRegistry(r), xtracker.WithLogger(logger)),
		inventory: xtracker.Declare(xlabel.Func("demo", "inventory"),
			xtracker.WithRegistry(r), xtracker.WithLogger(logger)),
		refund: xtracker.Declare(xlabel.Func("demo", "refund"),
			xtracker.WithObjective(demoObjective), xtracker.WithRegistry(r), xtracker.WithLogger(logger),
			xtracker.WithOkIf(func(err error) bool { return errors.Is(err, errAlreadyRefunded) })),
		latency: latency,
	}
}

func (s *demoService) Checkout(ctx context.Context, order int) error {
	return xtracker.Track(ctx, s.checkout, func(ctx context.Context) error {
		stock, err := s.Inventory(ctx, order)
		if err != nil {
			return err
		}
		if err := s.sleep(ctx, time.Duration(order%5)*s.latency); err != nil {
			return err
		}
		if stock == 0 || order%20 == 0 {
			return errPaymentDeclined
		}
		return nil
	})
}

func (s *demoService) Inventory(ctx context.Context, order int) (int, error) {
	return xtracker.TrackValue(ctx, s.inventory, func(ctx context.Context) (int, error) {
		if err := s.sleep(ctx, s.latency); err != nil {
			return 0, err
		}
		if order%97 == 0 {
			return 0, errOutOfStock
		}
		return order % 13, nil
	})
}

func (s *demoService) Refund(ctx context.Context, order int) error {
	return xtracker.Track(ctx, s.refund, func(ctx context.Context) error {
		if order%3 == 0 {
			return errAlreadyRefunded
		}
		return s.sleep(ctx, s.latency)
	})
}

func (s *demoService) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type demoStats struct {
	ok, failed atomic.Int64
}

func cmdDemo(ctx context.Context, opts demoOptions) error {
	loader, err := loadDemoSettings(opts.config)
	if err != nil {
		return reportFailure(opts.stderr, err)
	}
	settings := loader.Settings()

	logger, closeLog, err := settings.NewLogger(opts.stderr)
	if err != nil {
		return reportFailure(opts.stderr, err)
	}
	defer func() { _ = closeLog() }()

	r := xregistry.New(xregistry.WithLogger(logger))
	if err := r.Load(settings.Objectives); err != nil {
		return reportFailure(opts.stderr, err)
	}
	svc := newDemoService(r, logger, opts.latency)

	backend, err := xauto.Init(ctx,
		xauto.WithBuildInfo(demoBuildInfo(settings.BuildInfo)),
		xauto.WithBuckets(settings.BucketsOrDefault()),
		xauto.WithObjectiveBuckets(r),
		xauto.WithLogger(logger),
	)
	if err != nil {
		return reportFailure(opts.stderr, err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := xauto.Shutdown(sctx, backend); err != nil {
			logger.Warn(sctx, "xautoctl: backend shutdown failed", xlog.Err(err))
		}
	}()

	if opts.watch && loader.Path() != "" {
		w, err := loader.Watch(func(s *xconf.Settings, err error) {
			if err != nil {
				logger.Warn(ctx, "xautoctl: config reload failed", xlog.Err(err))
				return
			}
			if err := s.ApplyLevel(logger); err == nil {
				logger.Info(ctx, "xautoctl: log level updated", slog.String("level", s.Log.Level))
			}
		})
		if err != nil {
			return reportFailure(opts.stderr, err)
		}
		w.StartAsync()
		defer func() { _ = w.Stop() }()
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.addr != "" {
		h, ok := xauto.Handler(backend)
		if !ok {
			logger.Warn(ctx, "xautoctl: backend has no scrape endpoint, metrics go to the OpenTelemetry MeterProvider",
				xlog.Backend(backend.Name()))
		} else {
			ln, err := net.Listen("tcp", opts.addr)
			if err != nil {
				return reportFailure(opts.stderr, err)
			}
			serveMetrics(gctx, g, ln, h)
			fmt.Fprintf(opts.stdout, "serving %s metrics on http://%s/metrics\n", backend.Name(), ln.Addr())
		}
	}

	stats, err := generateLoad(gctx, svc, opts.calls, opts.concurrency)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintf(opts.stdout, "backend=%s calls=%d ok=%d failed=%d dropped=%d\n",
		backend.Name(), opts.calls, stats.ok.Load(), stats.failed.Load(), dropped(backend))

	if opts.addr == "" {
		return nil
	}
	// 负载结束后继续提供 /metrics，直到收到信号
	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func loadDemoSettings(path string) (*xconf.Loader, error) {
	if path == "" {
		return xconf.NewFromBytes(nil, xconf.FormatYAML)
	}
	return xconf.New(path)
}

// demoBuildInfo 未配置版本时使用 ldflags 注入的版本信息。
func demoBuildInfo(info xbackend.BuildInfo) xbackend.BuildInfo {
	if info.Version == "" {
		info.Version = Version
	}
	if info.Commit == "" {
		info.Commit = GitCommit
	}
	if info.Branch == "" {
		info.Branch = GitBranch
	}
	return info
}

func serveMetrics(ctx context.Context, g *errgroup.Group, ln net.Listener, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// generateLoad 以 concurrency 个并发执行 calls 次 checkout，每第 10 个订单追加一次 refund。
func generateLoad(ctx context.Context, svc *demoService, calls, concurrency int) (*demoStats, error) {
	stats := &demoStats{}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for order := 1; order <= calls; order++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := svc.Checkout(ctx, order); err != nil {
				stats.failed.Add(1)
			} else {
				stats.ok.Add(1)
			}
			if order%10 == 0 {
				_ = svc.Refund(ctx, order)
			}
			return ctx.Err()
		})
	}
	return stats, g.Wait()
}

func dropped(b xbackend.Backend) uint64 {
	if d, ok := b.(interface{ Dropped() uint64 }); ok {
		return d.Dropped()
	}
	return 0
}
