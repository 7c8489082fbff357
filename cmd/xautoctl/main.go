// xautoctl 校验 autometrics 目标配置、生成 Prometheus 规则文件，并运行演示负载。
//
// 用法:
//
//	xautoctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   autometrics 配置文件（.yaml/.yml/.json）
//
// 命令:
//
//	check          加载配置并合并目标，报告冲突
//	rules          输出 Prometheus 规则文件（录制规则 + 燃烧率告警）
//	demo           以编译时选定的后端运行演示调用，并在可能时提供 /metrics
//
// 退出码:
//
//	0: 成功
//	1: 配置无效、目标冲突或执行失败
//	2: 参数错误
//
// 示例:
//
//	xautoctl -c autometrics.yaml check
//	xautoctl -c autometrics.yaml rules --out slo-rules.yaml
//	xautoctl -c autometrics.yaml demo --addr :9464 --calls 500
//	go run -tags autometrics_prometheus ./cmd/xautoctl demo --addr :9464
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xautometrics/pkg/autometrics/xauto"
)

// 版本信息，通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.GitBranch=main"
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xautoctl",
		Usage:   "autometrics 目标校验、规则生成与演示",
		Version: fmt.Sprintf("%s (commit: %s, branch: %s, backend: %s)", Version, GitCommit, GitBranch, xauto.SelectedBackend),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "autometrics 配置文件",
				Sources: cli.EnvVars("XAUTOMETRICS_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			createCheckCommand(),
			createRulesCommand(),
			createDemoCommand(),
		},
		// 退出码统一由 run 映射
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if err := createApp().Run(ctx, args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		if isCLIUsageError(err) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// exitError 表示命令已完成输出，只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 表示参数错误。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// isCLIUsageError 识别 urfave/cli 自身产生的参数错误。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"flag provided but not defined", "invalid value", "No help topic for", "invalid boolean", "Required flag"} {
		if strings.Contains(msg, prefix) {
			return true
		}
	}
	return false
}

// setupSignalHandler 第一次信号取消 context，第二次信号强制退出（130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
