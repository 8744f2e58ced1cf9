package tracing

import (
	"errors"
	"fmt"
	"time"

	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/shared/id"
	"go.uber.org/zap"
)

// ErrContextFinalized is returned when a caller starts a span on a context
// that has already been finalized. This is a programming bug in the
// instrumenting code, so it is the one tracing failure that is surfaced
// hard instead of logged and recovered.
var ErrContextFinalized = errors.New("tracing: trace context already finalized")

// RootOperationName is the operation name of the implicit root span.
const RootOperationName = "root"

// TraceContext is the mutable builder for a trace-in-progress. It is owned
// by one logical call chain; parallel branches must use CreateChild.
type TraceContext struct {
	traceID   id.TraceID
	startTime time.Time
	spans     map[id.SpanID]*Span
	order     []id.SpanID
	current   id.SpanID
	finalized bool
	final     *Trace
	metadata  map[string]any
	logger    *logging.Logger
}

// NewContext creates a trace context with optional initial metadata. The
// implicit root span is opened immediately and stays open until Finalize.
func NewContext(metadata map[string]any, logger *logging.Logger) *TraceContext {
	if logger == nil {
		logger = logging.NewNop()
	}

	tc := &TraceContext{
		traceID:   id.NewTraceID(),
		startTime: time.Now(),
		spans:     make(map[id.SpanID]*Span),
		metadata:  copyMetadata(metadata),
		logger:    logger,
	}
	tc.open(RootOperationName, nil)
	return tc
}

// TraceID returns the trace identifier.
func (tc *TraceContext) TraceID() id.TraceID { return tc.traceID }

// StartTime returns when the context was created.
func (tc *TraceContext) StartTime() time.Time { return tc.startTime }

// Metadata returns the metadata supplied at creation.
func (tc *TraceContext) Metadata() map[string]any { return tc.metadata }

// Finalized reports whether Finalize has been called.
func (tc *TraceContext) Finalized() bool { return tc.finalized }

// CurrentSpan returns the innermost open span, or nil after finalize.
func (tc *TraceContext) CurrentSpan() *Span {
	if tc.current == "" {
		return nil
	}
	return tc.spans[tc.current]
}

// StartSpan opens a new span as a child of the current span and makes it
// current. Fails with ErrContextFinalized after Finalize.
func (tc *TraceContext) StartSpan(operationName string, tags map[string]any) (*Span, error) {
	if tc.finalized {
		return nil, fmt.Errorf("start span %q: %w", operationName, ErrContextFinalized)
	}
	return tc.open(operationName, tags), nil
}

// open allocates a span parented to the current span and makes it current.
func (tc *TraceContext) open(operationName string, tags map[string]any) *Span {
	span := &Span{
		SpanID:        id.NewSpanID(),
		ParentSpanID:  tc.current,
		OperationName: operationName,
		StartTime:     time.Now(),
		Status:        StatusInProgress,
		Logs:          []LogEntry{},
	}
	span.setTags(tags)

	tc.spans[span.SpanID] = span
	tc.order = append(tc.order, span.SpanID)
	tc.current = span.SpanID
	return span
}

// EndSpan closes a span. Unknown or already-ended spans are tolerated with
// a warning; instrumentation mistakes must never crash the host. If the
// ended span was current, the parent becomes current again.
func (tc *TraceContext) EndSpan(spanID id.SpanID, spanErr error) {
	span, ok := tc.spans[spanID]
	if !ok {
		tc.logger.Warn("end of unknown span ignored",
			zap.String("trace_id", tc.traceID.String()),
			zap.String("span_id", spanID.String()),
		)
		return
	}
	if span.Ended() {
		tc.logger.Warn("span already ended",
			zap.String("trace_id", tc.traceID.String()),
			zap.String("span_id", spanID.String()),
			zap.String("operation", span.OperationName),
		)
		return
	}

	tc.close(span, spanErr)

	if tc.current == spanID {
		tc.current = span.ParentSpanID
	}
}

// close stamps end time, duration, and status on an open span.
func (tc *TraceContext) close(span *Span, spanErr error) {
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	if spanErr != nil {
		span.Status = StatusError
		span.Error = spanErr.Error()
		span.setTags(map[string]any{
			"error.type":    fmt.Sprintf("%T", spanErr),
			"error.message": spanErr.Error(),
		})
	} else {
		span.Status = StatusSuccess
	}
}

// AddTags merges tags into the current span.
func (tc *TraceContext) AddTags(tags map[string]any) {
	span := tc.CurrentSpan()
	if span == nil {
		tc.logger.Warn("tags dropped, no current span",
			zap.String("trace_id", tc.traceID.String()),
		)
		return
	}
	span.setTags(tags)
}

// AddLog appends a structured log entry to the current span.
func (tc *TraceContext) AddLog(message, level string, fields map[string]any) {
	span := tc.CurrentSpan()
	if span == nil {
		tc.logger.Warn("log dropped, no current span",
			zap.String("trace_id", tc.traceID.String()),
			zap.String("log_message", message),
		)
		return
	}
	span.Logs = append(span.Logs, LogEntry{
		Timestamp: time.Now(),
		Message:   message,
		Level:     level,
		Fields:    fields,
	})
}

// Finalize closes the trace and returns its immutable form. The root span
// closes as success since it is expected to stay open; any other span still
// open is closed as an error to surface the instrumentation bug. Calling
// Finalize twice returns the same trace with a warning.
func (tc *TraceContext) Finalize() *Trace {
	if tc.finalized {
		tc.logger.Warn("trace context finalized twice",
			zap.String("trace_id", tc.traceID.String()),
		)
		return tc.final
	}
	tc.finalized = true

	rootID := tc.order[0]
	for _, spanID := range tc.order {
		span := tc.spans[spanID]
		if span.Ended() {
			continue
		}
		if spanID == rootID {
			tc.close(span, nil)
			continue
		}
		tc.logger.Warn("span not properly closed before finalize",
			zap.String("trace_id", tc.traceID.String()),
			zap.String("span_id", spanID.String()),
			zap.String("operation", span.OperationName),
		)
		tc.close(span, errors.New("span not properly closed"))
	}
	tc.current = ""

	spans := make([]*Span, 0, len(tc.order))
	for _, spanID := range tc.order {
		spans = append(spans, tc.spans[spanID])
	}

	tc.final = &Trace{
		TraceID:   tc.traceID,
		StartTime: tc.startTime,
		Duration:  time.Since(tc.startTime),
		Spans:     spans,
		Metadata:  tc.metadata,
	}
	return tc.final
}

func copyMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
