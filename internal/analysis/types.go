package analysis

import (
	"time"

	"github.com/spanlight/spanlight/internal/shared/id"
	"github.com/spanlight/spanlight/internal/tracing"
)

// Analysis is the immutable report derived from one trace.
type Analysis struct {
	TraceID         id.TraceID      `json:"traceId"`
	Summary         Summary         `json:"summary"`
	Performance     Performance     `json:"performance"`
	Errors          []SpanError     `json:"errors"`
	Timeline        []TimelineEntry `json:"timeline"`
	Insights        []string        `json:"insights"`
	Recommendations []string        `json:"recommendations"`
}

// Summary holds headline counts for a trace.
type Summary struct {
	TotalDuration      time.Duration  `json:"totalDuration"`
	SpanCount          int            `json:"spanCount"`
	ErrorCount         int            `json:"errorCount"`
	SlowSpanCount      int            `json:"slowSpanCount"`
	MaxDepth           int            `json:"maxDepth"`
	OperationBreakdown map[string]int `json:"operationBreakdown"`
}

// Performance holds duration statistics for a trace.
type Performance struct {
	SlowestOperation *SlowOperation `json:"slowestOperation,omitempty"`
	AverageDuration  time.Duration  `json:"averageDuration"`
	Percentiles      Percentiles    `json:"percentiles"`
	Memory           *MemorySummary `json:"memory,omitempty"`
}

// SlowOperation points at the slowest completed span.
type SlowOperation struct {
	SpanID    id.SpanID     `json:"spanId"`
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
}

// Percentiles holds the fixed percentile set over completed span durations.
type Percentiles struct {
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// MemorySummary reports memory growth derived from span tags.
type MemorySummary struct {
	PeakMB       float64 `json:"peakMb"`
	TotalDeltaMB float64 `json:"totalDeltaMb"`
	Efficiency   string  `json:"efficiency"` // good, concerning, poor
}

// SpanError describes one errored span.
type SpanError struct {
	SpanID    id.SpanID `json:"spanId"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
}

// TimelineEntry is one span flattened onto the trace timeline.
type TimelineEntry struct {
	SpanID    id.SpanID      `json:"spanId"`
	Operation string         `json:"operation"`
	Offset    time.Duration  `json:"offset"`
	Duration  time.Duration  `json:"duration"`
	Status    tracing.Status `json:"status"`
	Depth     int            `json:"depth"`
}

// Category buckets operation names by substring match for human-readable
// insights. A best-effort classifier, not part of the trace model.
type Category struct {
	Name     string
	Keywords []string
}

// OtherCategory is the fallback bucket for unmatched operations.
const OtherCategory = "Other"

// DefaultCategories covers the operations a chat-style workload produces.
func DefaultCategories() []Category {
	return []Category{
		{Name: "AI Generation", Keywords: []string{"generate", "ai", "llm", "completion"}},
		{Name: "Messaging", Keywords: []string{"message", "chat", "send", "reply"}},
		{Name: "Caching", Keywords: []string{"cache"}},
		{Name: "Storage", Keywords: []string{"db", "store", "query", "persist"}},
		{Name: "HTTP", Keywords: []string{"http", "request", "fetch"}},
	}
}
