package xprom

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// exemplar 返回 ctx 中已采样 span 的 trace_id 与 span_id；未启用或无 span 时返回 nil。
func (b *Backend) exemplar(ctx context.Context) prometheus.Labels {
	if !b.exemplars || ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}
