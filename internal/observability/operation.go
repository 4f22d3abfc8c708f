package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation is one traced, timed and logged unit of work.
type Operation struct {
	ctx     context.Context
	span    trace.Span
	metrics *Metrics
	name    string
	start   time.Time
	logger  *slog.Logger
}

// StartOperation opens a span named name and starts its timer. The returned
// context carries the span.
func StartOperation(ctx context.Context, m *Metrics, name string, attrs ...attribute.KeyValue) (*Operation, context.Context) {
	ctx, span := StartSpan(ctx, name, attrs...)
	logger := slog.Default().With("operation", name)
	logger.DebugContext(ctx, "operation started")
	return &Operation{
		ctx:     ctx,
		span:    span,
		metrics: m,
		name:    name,
		start:   time.Now(),
		logger:  logger,
	}, ctx
}

// End closes the operation. Pass a pointer to the caller's named error so a
// deferred End sees the final value.
func (o *Operation) End(errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	elapsed := time.Since(o.start)
	status := "ok"
	if err != nil {
		status = "error"
		o.logger.ErrorContext(o.ctx, "operation failed", "error", err, "duration", elapsed)
	} else {
		o.logger.DebugContext(o.ctx, "operation completed", "duration", elapsed)
	}
	EndSpan(o.span, err)
	o.metrics.observe(o.name, status, elapsed.Seconds())
}
