package tracing

import (
	"time"

	"github.com/spanlight/spanlight/internal/shared/id"
)

// Status describes the lifecycle state of a span.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// Span represents a single timed operation within a trace.
type Span struct {
	SpanID        id.SpanID      `json:"spanId"`
	ParentSpanID  id.SpanID      `json:"parentSpanId,omitempty"`
	OperationName string         `json:"operationName"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	Duration      time.Duration  `json:"duration"`
	Tags          map[string]any `json:"tags"`
	Logs          []LogEntry     `json:"logs"`
	Status        Status         `json:"status"`
	Error         string         `json:"error,omitempty"`
}

// LogEntry represents a structured log recorded against a span.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Level     string         `json:"level"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Ended reports whether the span has been closed.
func (s *Span) Ended() bool {
	return s.Status != StatusInProgress
}

// setTags merges tags into the span, allocating the map lazily.
func (s *Span) setTags(tags map[string]any) {
	if len(tags) == 0 {
		return
	}
	if s.Tags == nil {
		s.Tags = make(map[string]any, len(tags))
	}
	for k, v := range tags {
		s.Tags[k] = v
	}
}
