package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// Request ids arrive from clients in X-Request-Id; only short ids made of
// these characters are trusted into log lines.
const maxRequestIDLen = 128

var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ContextFields returns the correlation fields carried by ctx: the active
// span (trace_id, span_id, trace_sampled) and the request id.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field

	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

// WithRequestID returns ctx carrying id. Empty, oversized or oddly shaped
// ids are ignored and ctx is returned as is.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" || len(id) > maxRequestIDLen || !requestIDPattern.MatchString(id) {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
