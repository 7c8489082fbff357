package xtracker

import (
	"context"
	"errors"

	"github.com/omeyang/xautometrics/pkg/autometrics/xlabel"
)

// 默认错误分类。
const (
	CategoryCanceled         = "canceled"
	CategoryDeadlineExceeded = "deadline_exceeded"
)

type classifier struct {
	okIf     func(error) bool
	errorIf  func(error) bool
	category func(error) string
}

func (c classifier) outcome(err error) xlabel.Outcome {
	if c.okIf != nil && c.okIf(err) {
		return xlabel.OK()
	}
	failed := err != nil
	if c.errorIf != nil {
		failed = c.errorIf(err)
	}
	if !failed {
		return xlabel.OK()
	}
	return xlabel.Error(c.categorize(err))
}

func (c classifier) categorize(err error) string {
	if err == nil {
		return ""
	}
	if c.category != nil {
		if cat := c.category(err); cat != "" {
			return cat
		}
	}
	return DefaultCategory(err)
}

// DefaultCategory 返回 context 取消与超时的分类，其他错误返回空字符串。
func DefaultCategory(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryDeadlineExceeded
	default:
		return ""
	}
}
