// Package reqctx carries per-request identifiers (trace id, request id,
// the originating dialect) through a context.Context, so the logger and
// the balancer's post-call recording never need them threaded explicitly
// through every function signature.
package reqctx

import "context"

type ctxKey string

const (
	traceIDKey     ctxKey = "trace_id"
	requestIDKey   ctxKey = "request_id"
	operationKey   ctxKey = "operation_name"
	dialectKey     ctxKey = "dialect"
)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	return v, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok
}

func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey, name)
}

func OperationName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(operationKey).(string)
	return v, ok
}

// Dialect is the client-facing wire format that originated the current request.
type Dialect string

const (
	DialectOpenAI Dialect = "openai"
	DialectClaude Dialect = "claude"
	DialectGemini Dialect = "gemini"
)

func WithDialect(ctx context.Context, d Dialect) context.Context {
	return context.WithValue(ctx, dialectKey, d)
}

func GetDialect(ctx context.Context) (Dialect, bool) {
	v, ok := ctx.Value(dialectKey).(Dialect)
	return v, ok
}
