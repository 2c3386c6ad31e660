package observability

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/config"
)

const tracerScope = "github.com/interfix/helpdesk"

var serviceName atomic.Value

// ConfigureTracing records the service name stamped on spans and routes
// OpenTelemetry internal errors to logger.
func ConfigureTracing(cfg config.TelemetryConfig, logger *zap.Logger) {
	if cfg.ServiceName != "" {
		serviceName.Store(cfg.ServiceName)
	}
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("opentelemetry error", zap.Error(err))
	}))
}

// StartSpan opens a client span on the global tracer. Without an installed SDK the span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if svc, ok := serviceName.Load().(string); ok {
		attrs = append(attrs, attribute.String("service.name", svc))
	}
	return otel.Tracer(tracerScope).Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
