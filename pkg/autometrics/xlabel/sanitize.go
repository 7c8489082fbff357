package xlabel

import "strings"

// receiverReplacer 把 Go 方法名 "(*T).M"、"(T).M" 规范为 "T.M"。
var receiverReplacer = strings.NewReplacer("(*", "", "(", "", ")", "")

// Sanitize 把任意字符串规范化为合法标签值。
//
// 已经合法的值原样返回（不分配）。结果只包含 [A-Za-z0-9_.:/-]，长度不超过 128 字节。
// Sanitize 是幂等的：Sanitize(Sanitize(v)) == Sanitize(v)。
func Sanitize(v string) string {
	if Valid(v) {
		return v
	}
	v = receiverReplacer.Replace(v)

	var b strings.Builder
	b.Grow(min(len(v), maxLabelValueLength))
	for _, r := range v {
		if b.Len() >= maxLabelValueLength {
			break
		}
		if validRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteString(normalizedLabelValue)
		}
	}
	return b.String()
}

// Valid 报告 v 是否已经是规范的标签值。
func Valid(v string) bool {
	if len(v) > maxLabelValueLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		if !validRune(rune(v[i])) {
			return false
		}
	}
	return true
}

func validRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '.', r == '-', r == '/', r == ':':
		return true
	default:
		return false
	}
}
