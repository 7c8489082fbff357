package xobjective

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ppmScale 表示 100% 对应的 ppm 值。
const ppmScale = 1_000_000

// Percentile 是以 ppm（百万分之一）为单位的目标比例，1_000_000 表示 100%。
//
// 零值表示“未设置”。
type Percentile uint32

// 常用百分位。
const (
	P90    Percentile = 900_000
	P95    Percentile = 950_000
	P99    Percentile = 990_000
	P99_5  Percentile = 995_000
	P99_9  Percentile = 999_000
	P99_99 Percentile = 999_900
)

// Percent 由百分数构造 Percentile，例如 Percent(99.9)。
// 精度为 0.0001%，超出部分四舍五入。
func Percent(pct float64) (Percentile, error) {
	if math.IsNaN(pct) || pct <= 0 || pct > 100 {
		return 0, fmt.Errorf("%w: %v%%", ErrInvalidPercentile, pct)
	}
	ppm := math.Round(pct * (ppmScale / 100))
	if ppm <= 0 || ppm > ppmScale {
		return 0, fmt.Errorf("%w: %v%%", ErrInvalidPercentile, pct)
	}
	return Percentile(ppm), nil
}

// ParsePercentile 解析 "99.9" 或 "99.9%"。
//
// 使用十进制精确解析，不经过浮点，小数部分最多 4 位。
func ParsePercentile(s string) (Percentile, error) {
	raw := strings.TrimSuffix(strings.TrimSpace(s), "%")
	intPart, fracPart, _ := strings.Cut(raw, ".")
	if intPart == "" || len(fracPart) > 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercentile, s)
	}
	whole, err := strconv.ParseUint(intPart, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercentile, s)
	}
	var frac uint64
	if fracPart != "" {
		frac, err = strconv.ParseUint(fracPart+strings.Repeat("0", 4-len(fracPart)), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPercentile, s)
		}
	}
	ppm := whole*10_000 + frac
	if ppm == 0 || ppm > ppmScale {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercentile, s)
	}
	return Percentile(ppm), nil
}

// Valid 报告 p 是否在 (0, 100%] 内。
func (p Percentile) Valid() bool {
	return p > 0 && p <= ppmScale
}

// String 返回百分数形式，例如 "99.9"、"95"。
func (p Percentile) String() string {
	return formatFixed(uint64(p), 4)
}

// Fraction 返回 [0, 1] 内的比例，例如 P99_9 → 0.999。
func (p Percentile) Fraction() float64 {
	return float64(p) / ppmScale
}

// Budget 返回允许违约的比例 1 − Fraction，例如 P99_9 → 0.001。
func (p Percentile) Budget() float64 {
	return float64(ppmScale-uint64(p)) / ppmScale
}

// BudgetString 返回 Budget 的精确十进制字符串，例如 "0.001"。
func (p Percentile) BudgetString() string {
	return formatFixed(ppmScale-uint64(p), 6)
}

// formatFixed 把定点整数 v（小数位数 scale）格式化为去掉末尾零的十进制字符串。
func formatFixed(v uint64, scale int) string {
	div := uint64(1)
	for range scale {
		div *= 10
	}
	whole, frac := v/div, v%div
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := strconv.FormatUint(frac, 10)
	fs = strings.Repeat("0", scale-len(fs)) + fs
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fs, "0")
}
