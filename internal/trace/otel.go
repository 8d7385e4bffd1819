package trace

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a tracer provider that reports every finished span to
// logger at debug level. The returned function flushes pending spans.
func Setup(logger *slog.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(NewLogExporter(logger)),
	)
	otel.SetTracerProvider(tp)
	slog.Info("span tracing enabled")
	return tp.Shutdown
}

// LogExporter writes finished spans as structured log lines.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter logs to logger, or to the default logger when nil.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		args := []any{
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
		}
		if s.Parent().IsValid() {
			args = append(args, "parent_span_id", s.Parent().SpanID().String())
		}
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		level := slog.LevelDebug
		if s.Status().Code == codes.Error {
			level = slog.LevelWarn
			args = append(args, "error", s.Status().Description)
		}
		e.logger.Log(ctx, level, "span finished", args...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
