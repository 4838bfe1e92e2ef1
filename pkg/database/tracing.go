package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/checkout-service/pkg/database"

var slowQueryCfg struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowQueryLogging enables warning logs for queries whose duration meets
// the threshold. A zero threshold disables the logging.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQueryCfg.mu.Lock()
	defer slowQueryCfg.mu.Unlock()
	slowQueryCfg.threshold = threshold
	slowQueryCfg.logger = logger
}

// TraceQuery opens a client span for one repository operation. The returned
// func closes the span and must receive the operation's error:
//
//	ctx, end := database.TraceQuery(ctx, "GetSession", "SELECT FROM checkout_sessions WHERE id")
//	defer func() { end(err) }()
//
// When slow query logging is configured, operations at or over the threshold
// are logged with their duration.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		logIfSlow(ctx, operation, statement, time.Since(start), err)
	}
}

func logIfSlow(ctx context.Context, operation, statement string, elapsed time.Duration, err error) {
	slowQueryCfg.mu.RLock()
	threshold, logger := slowQueryCfg.threshold, slowQueryCfg.logger
	slowQueryCfg.mu.RUnlock()

	if threshold <= 0 || logger == nil || elapsed < threshold {
		return
	}

	attrs := []any{
		slog.String("operation", operation),
		slog.String("statement", statement),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.WarnContext(ctx, "slow query detected", attrs...)
}
