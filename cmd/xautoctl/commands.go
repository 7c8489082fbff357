package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xautometrics/pkg/autometrics/xalert"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
	"github.com/omeyang/xautometrics/pkg/config/xconf"
	"github.com/omeyang/xautometrics/pkg/observability/xlog"
)

var errMissingConfig = errors.New("缺少 --config")

func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "加载配置并合并目标，报告冲突",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return cmdCheck(cmd.String("config"), cmd.Root().Writer, cmd.Root().ErrWriter)
		},
	}
}

func createRulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "输出 Prometheus 规则文件（录制规则 + 燃烧率告警）",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "输出文件，缺省写到标准输出",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return cmdRules(cmd.String("config"), cmd.String("out"), cmd.Root().Writer, cmd.Root().ErrWriter)
		},
	}
}

// loadRegistry 加载配置并把其中的目标合并到新的 Registry。
func loadRegistry(path string) (*xconf.Settings, *xregistry.Registry, error) {
	if path == "" {
		return nil, nil, &usageError{msg: errMissingConfig.Error()}
	}
	settings, err := xconf.Load(path)
	if err != nil {
		return nil, nil, err
	}
	r := xregistry.New(xregistry.WithLogger(xlog.Discard()))
	if err := r.Load(settings.Objectives); err != nil {
		return nil, nil, err
	}
	if err := r.Err(); err != nil {
		return nil, nil, err
	}
	return settings, r, nil
}

func cmdCheck(path string, stdout, stderr io.Writer) error {
	_, r, err := loadRegistry(path)
	if err != nil {
		return reportFailure(stderr, err)
	}
	entries, err := r.Objectives()
	if err != nil {
		return reportFailure(stderr, err)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OBJECTIVE\tSUCCESS RATE\tLATENCY\tFUNCTIONS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Objective.Name(), successRate(e), latency(e), functions(e))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d objective(s) ok\n", len(entries))
	return nil
}

func cmdRules(path, out string, stdout, stderr io.Writer) error {
	settings, r, err := loadRegistry(path)
	if err != nil {
		return reportFailure(stderr, err)
	}
	groups, err := xalert.GroupsFromRegistry(r, xalert.WithLabels(settings.Alerts.Labels))
	if err != nil {
		return reportFailure(stderr, err)
	}
	data, err := xalert.RuleFile(groups)
	if err != nil {
		return err
	}

	if out == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d group(s) to %s\n", len(groups), out)
	return nil
}

// reportFailure 输出错误并映射退出码：参数错误为 2，其余为 1。
func reportFailure(stderr io.Writer, err error) error {
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return err
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return &exitError{code: 1}
}

func successRate(e xregistry.Entry) string {
	if p, ok := e.Objective.SuccessRate(); ok {
		return p.String() + "%"
	}
	return "-"
}

func latency(e xregistry.Entry) string {
	if lat, ok := e.Objective.Latency(); ok {
		return fmt.Sprintf("%s%% < %s", lat.Percentile, lat.Threshold)
	}
	return "-"
}

func functions(e xregistry.Entry) string {
	names := make([]string, len(e.Functions))
	for i, fn := range e.Functions {
		names[i] = fn.String()
	}
	return strings.Join(names, ",")
}
