package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
	LogKeyService = "service"
	LogKeyEnv     = "env"
)

// NewLogger returns a logger writing text or JSON records to w (os.Stderr
// when nil), tagged with service and, when non-empty, env.
func NewLogger(w io.Writer, level slog.Level, json bool, service, env string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		base = slog.NewJSONHandler(w, opts)
	}

	static := []slog.Attr{slog.String(LogKeyService, service)}
	if env != "" {
		static = append(static, slog.String(LogKeyEnv, env))
	}

	return slog.New(NewSpanHandler(base.WithAttrs(static)))
}

// SpanHandler stamps records logged under an active span with its trace_id
// and span_id.
type SpanHandler struct {
	next slog.Handler
}

// NewSpanHandler wraps next.
func NewSpanHandler(next slog.Handler) *SpanHandler {
	return &SpanHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *SpanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SpanHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}

	err := h.next.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("span handler: %w", err)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *SpanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSpanHandler(h.next.WithAttrs(attrs))
}

// WithGroup implements slog.Handler.
func (h *SpanHandler) WithGroup(name string) slog.Handler {
	return NewSpanHandler(h.next.WithGroup(name))
}
