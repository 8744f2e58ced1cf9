/*
Package tracing implements in-process trace recording.

# Overview

This package records hierarchical spans for units of work inside a single
process and correlates them into traces. It follows OpenTelemetry concepts
but with a minimal implementation: there is no collector, no sampling, and
no cross-process propagation.

# Features

- Span creation with parent-child relationships and an implicit root span
- Tags, structured logs, and success/error status per span
- A mutable TraceContext that finalizes into an immutable Trace
- Ambient context propagation via context.Context
- Child contexts for genuinely parallel sub-work
- A Run helper that traces a function and collects the result

# Usage

	// Trace a function end to end
	err := tracing.Run(ctx, store, "handle_message", map[string]any{
		"source": "chat",
	}, logger, func(ctx context.Context) error {
		tc, _ := tracing.FromContext(ctx)

		span, err := tc.StartSpan("MessageService.process", nil)
		if err != nil {
			return err
		}
		defer tc.EndSpan(span.SpanID, nil)

		tc.AddTags(map[string]any{"user": "u-123"})
		tc.AddLog("processing message", "info", nil)
		return process(ctx)
	})

# Lifecycle rules

A TraceContext belongs to one logical call chain. Starting a span after
Finalize is a contract violation and returns ErrContextFinalized; every
other instrumentation mistake (ending an unknown span, tagging with no
current span, a span left open at finalize) is logged and recovered, never
propagated. The tracing subsystem must never be the reason a traced
operation fails.

Parallel branches of one request must use CreateChild rather than sharing
the parent's span map; a single TraceContext is not safe for unsynchronized
concurrent mutation.
*/
package tracing
