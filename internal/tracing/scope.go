package tracing

import (
	"context"
)

// contextKey is the private key type for trace context propagation.
type contextKey struct{}

var scopeKey contextKey

// WithContext binds a trace context as ambient for the returned Context.
// Nested code recovers it with FromContext without parameter threading;
// propagation follows the logical call chain because context.Context does.
func WithContext(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, scopeKey, tc)
}

// FromContext returns the ambient trace context, if any.
func FromContext(ctx context.Context) (*TraceContext, bool) {
	tc, ok := ctx.Value(scopeKey).(*TraceContext)
	return tc, ok
}

// RunWithScope executes fn with tc bound as the ambient trace context for
// the dynamic extent of fn, including any goroutines fn derives from the
// passed context.
func RunWithScope(ctx context.Context, tc *TraceContext, fn func(context.Context) error) error {
	return fn(WithContext(ctx, tc))
}

// CreateChild creates a fresh trace context seeded with the parent's
// metadata merged with overrides, plus a parentTraceId back-reference. The
// back-reference is informational only; the child has its own lifecycle and
// must be finalized by whoever forked it.
func (tc *TraceContext) CreateChild(operationName string, overrides map[string]any) *TraceContext {
	metadata := copyMetadata(tc.metadata)
	for k, v := range overrides {
		metadata[k] = v
	}
	metadata["operation"] = operationName
	metadata["parentTraceId"] = tc.traceID.String()

	return NewContext(metadata, tc.logger)
}
