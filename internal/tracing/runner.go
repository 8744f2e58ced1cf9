package tracing

import (
	"context"
	"fmt"

	"github.com/spanlight/spanlight/internal/logging"
)

// Collector receives finalized traces. Implemented by the trace store;
// kept as an interface here so instrumented code does not depend on
// storage.
type Collector interface {
	Collect(trace *Trace)
}

// Run traces fn end to end: it creates a fresh trace context, binds it as
// ambient, invokes fn, and finalizes and collects the trace even when fn
// fails or panics. A failure is attached to the still-open root span before
// finalize, and fn's error is returned unchanged; tracing never alters the
// business result.
func Run(
	ctx context.Context,
	collector Collector,
	operation string,
	metadata map[string]any,
	logger *logging.Logger,
	fn func(context.Context) error,
) error {
	merged := copyMetadata(metadata)
	merged["operation"] = operation

	tc := NewContext(merged, logger)

	defer func() {
		if r := recover(); r != nil {
			if root := tc.spans[tc.order[0]]; !root.Ended() {
				tc.EndSpan(root.SpanID, fmt.Errorf("panic: %v", r))
			}
			finalizeAndCollect(tc, collector)
			panic(r)
		}
		finalizeAndCollect(tc, collector)
	}()

	err := RunWithScope(ctx, tc, fn)
	if err != nil {
		// Attach the failure to the still-open root span so finalize
		// records the trace as errored.
		if root := tc.spans[tc.order[0]]; !root.Ended() {
			tc.EndSpan(root.SpanID, err)
		}
	}
	return err
}

func finalizeAndCollect(tc *TraceContext, collector Collector) {
	trace := tc.Finalize()
	if collector != nil {
		collector.Collect(trace)
	}
}
