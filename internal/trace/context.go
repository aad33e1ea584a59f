package trace

import "context"

type ctxKey struct{}

// carrier is what a context holds: the tracer and the span new spans nest
// under. Both travel together so a unit population started on a worker
// goroutine keeps the pass span as its parent.
type carrier struct {
	tracer Tracer
	span   SpanContext
}

// SpanContext identifies the active span.
type SpanContext struct {
	SpanID uint64
	GID    uint64
}

func fromCtx(ctx context.Context) carrier {
	if ctx != nil {
		if c, ok := ctx.Value(ctxKey{}).(carrier); ok {
			return c
		}
	}
	return carrier{tracer: Nop}
}

// FromContext returns the tracer of ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return fromCtx(ctx).tracer
}

// WithTracer attaches t to ctx, keeping the active span.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	c := fromCtx(ctx)
	c.tracer = t
	return context.WithValue(ctx, ctxKey{}, c)
}

// CurrentSpan returns the active span of ctx; zero when there is none.
func CurrentSpan(ctx context.Context) SpanContext {
	return fromCtx(ctx).span
}

// WithSpanContext makes sc the active span of ctx.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	if ctx == nil {
		return nil
	}
	c := fromCtx(ctx)
	c.span = sc
	return context.WithValue(ctx, ctxKey{}, c)
}
