package tracing

import (
	"time"

	"github.com/spanlight/spanlight/internal/shared/id"
)

// Trace is a finalized, immutable collection of spans for one logical
// request. It is produced exclusively by TraceContext.Finalize and never
// mutated afterward.
type Trace struct {
	TraceID   id.TraceID     `json:"traceId"`
	StartTime time.Time      `json:"startTime"`
	Duration  time.Duration  `json:"duration"`
	Spans     []*Span        `json:"spans"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Root returns the implicit root span, or nil for a malformed trace.
func (t *Trace) Root() *Span {
	if len(t.Spans) == 0 {
		return nil
	}
	return t.Spans[0]
}

// OldestSpanStart returns the earliest span start time. Retention TTL is
// measured from this point.
func (t *Trace) OldestSpanStart() time.Time {
	oldest := t.StartTime
	for _, s := range t.Spans {
		if s.StartTime.Before(oldest) {
			oldest = s.StartTime
		}
	}
	return oldest
}

// SpanCount returns the number of spans, root included.
func (t *Trace) SpanCount() int {
	return len(t.Spans)
}

// ErrorCount returns the number of errored spans.
func (t *Trace) ErrorCount() int {
	n := 0
	for _, s := range t.Spans {
		if s.Status == StatusError {
			n++
		}
	}
	return n
}
