// Package tracing wires internal/reqctx ids into internal/log output.
package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/reqctx"
)

// GenerateRequestID returns a new request id, format gw-{uuid}.
func GenerateRequestID() string {
	return fmt.Sprintf("gw-%s", uuid.New().String())
}

// SetupLogger registers the trace/request id field hook on the given logger.
func SetupLogger(logger *log.Logger) {
	logger.AddHook(log.HookFunc(fieldsHook))
}

func fieldsHook(ctx context.Context, _ string, fields ...log.Field) []log.Field {
	if ctx == nil {
		return fields
	}

	if traceID, ok := reqctx.TraceID(ctx); ok {
		fields = append(fields, log.String("trace_id", traceID))
	}

	if requestID, ok := reqctx.RequestID(ctx); ok {
		fields = append(fields, log.String("request_id", requestID))
	}

	if op, ok := reqctx.OperationName(ctx); ok {
		fields = append(fields, log.String("operation_name", op))
	}

	if dialect, ok := reqctx.GetDialect(ctx); ok {
		fields = append(fields, log.String("dialect", string(dialect)))
	}

	return fields
}
