package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext binds a logger for one event delivery to ctx.
// Dynamic fields only: event_id (generated), event name, aggregate_id for keyed events,
// trace_id/span_id when ctx carries a valid span, plus low-cardinality attrs.
func WithEventContext(ctx context.Context, base observability.Logger, e domoutbox.Event, attrs map[string]string) context.Context {
	if base == nil {
		base = logctx.FromOr(ctx, observability.NopLogger())
	}

	fields := make([]observability.Field, 0, 5+len(attrs))
	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields,
		observability.F("event_id", evtID),
		observability.F("event", e.EventName()),
	)
	if k, ok := e.(domoutbox.Keyed); ok {
		fields = append(fields, observability.F("aggregate_id", k.AggregateID()))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}
	return logctx.With(ctx, base.With(fields...))
}
