package context

import (
	"context"
)

// RequestMeta identifies one HTTP request across logs and spans.
type RequestMeta struct {
	RequestID string
	TraceID   string
	SpanID    string
}

type requestMetaKey struct{}

// WithRequestMeta stores m in ctx.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFrom returns the ids stored by WithRequestMeta.
func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	m, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m, ok
}

// LogFields returns the request and staff ids in ctx as zap key/value pairs.
func LogFields(ctx context.Context) []any {
	var kv []any
	if m, ok := RequestMetaFrom(ctx); ok {
		kv = append(kv, "request_id", m.RequestID, "trace_id", m.TraceID)
	}
	if s, ok := StaffFrom(ctx); ok {
		kv = append(kv, "user_id", s.ID.String(), "role", s.Role)
	}
	return kv
}
