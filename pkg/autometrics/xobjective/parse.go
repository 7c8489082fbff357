package xobjective

import (
	"fmt"
	"strings"
	"time"
)

// Parse 解析声明字符串并创建 Objective。
//
// 语法（项之间以逗号分隔，顺序任意）：
//
//	success_rate = 99.9%
//	latency(99.9% < 200ms)
//
// latency 的比较符可以是 "<"、"<=" 或 "="，阈值接受 time.ParseDuration 的格式。
func Parse(name, decl string) (Objective, error) {
	var opts []Option
	for _, item := range splitItems(decl) {
		opt, err := parseItem(item)
		if err != nil {
			return Objective{}, fmt.Errorf("objective %q: %w", name, err)
		}
		opts = append(opts, opt)
	}
	return New(name, opts...)
}

// MustParse 与 Parse 相同，失败时 panic。
func MustParse(name, decl string) Objective {
	obj, err := Parse(name, decl)
	if err != nil {
		panic(err)
	}
	return obj
}

// splitItems 按顶层逗号切分（latency(...) 括号内不含逗号，但仍按深度处理）。
func splitItems(decl string) []string {
	var items []string
	depth, start := 0, 0
	for i, r := range decl {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				items = appendItem(items, decl[start:i])
				start = i + 1
			}
		}
	}
	return appendItem(items, decl[start:])
}

func appendItem(items []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		items = append(items, s)
	}
	return items
}

func parseItem(item string) (Option, error) {
	switch {
	case strings.HasPrefix(item, "success_rate"):
		rest := strings.TrimSpace(strings.TrimPrefix(item, "success_rate"))
		value, ok := strings.CutPrefix(rest, "=")
		if !ok {
			return nil, fmt.Errorf("%w: expected '=' after success_rate in %q", ErrSyntax, item)
		}
		p, err := parsePercent(value)
		if err != nil {
			return nil, err
		}
		return WithSuccessRate(p), nil

	case strings.HasPrefix(item, "latency"):
		rest := strings.TrimSpace(strings.TrimPrefix(item, "latency"))
		if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
			return nil, fmt.Errorf("%w: expected latency(<percentile>%% < <duration>) in %q", ErrSyntax, item)
		}
		return parseLatency(rest[1 : len(rest)-1])

	default:
		return nil, fmt.Errorf("%w: unknown item %q", ErrSyntax, item)
	}
}

func parseLatency(body string) (Option, error) {
	pctPart, durPart, found := strings.Cut(body, "<")
	if found {
		// "<=" 与 "<" 等价：阈值本身计入达标
		durPart = strings.TrimPrefix(durPart, "=")
	} else if pctPart, durPart, found = strings.Cut(body, "="); !found {
		return nil, fmt.Errorf("%w: expected '<', '<=' or '=' in latency(%s)", ErrSyntax, body)
	}

	p, err := parsePercent(pctPart)
	if err != nil {
		return nil, err
	}
	threshold, err := time.ParseDuration(strings.TrimSpace(durPart))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidThreshold, err)
	}
	return WithLatency(threshold, p), nil
}

// parsePercent 要求显式的 % 后缀，避免 0.999 与 99.9 混淆。
func parsePercent(s string) (Percentile, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("%w: percentile %q must end with %%", ErrSyntax, s)
	}
	return ParsePercentile(s)
}
