package xlabel

import "errors"

var (
	// ErrEmptyFunction 表示函数名为空。
	ErrEmptyFunction = errors.New("xlabel: empty function name")
	// ErrInvalidValue 表示标签值包含规范字符集之外的字符或过长。
	ErrInvalidValue = errors.New("xlabel: invalid label value")
	// ErrInvalidMetricName 表示指标名不合法。
	ErrInvalidMetricName = errors.New("xlabel: invalid metric name")
	// ErrInvalidKey 表示标签键不合法。
	ErrInvalidKey = errors.New("xlabel: invalid label key")
)
