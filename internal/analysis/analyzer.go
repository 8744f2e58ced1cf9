package analysis

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/shared/id"
	"github.com/spanlight/spanlight/internal/tracing"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// maxParentWalk caps the parent-link walk as a second safety net behind
// cycle detection; no sane trace nests deeper.
const maxParentWalk = 100

// Config holds analyzer thresholds.
type Config struct {
	SlowThreshold     time.Duration
	VerySlowThreshold time.Duration
	MemoryConcernMB   float64
	MemoryPoorMB      float64
	Categories        []Category
}

// DefaultConfig returns the standard thresholds: 1s slow, 5s very slow,
// 100MB concerning growth, 500MB poor.
func DefaultConfig() Config {
	return Config{
		SlowThreshold:     time.Second,
		VerySlowThreshold: 5 * time.Second,
		MemoryConcernMB:   100,
		MemoryPoorMB:      500,
		Categories:        DefaultCategories(),
	}
}

// Analyzer computes trace analyses. Safe for concurrent use; it holds no
// mutable state.
type Analyzer struct {
	cfg    Config
	logger *logging.Logger
}

// New creates an analyzer.
func New(cfg Config, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Analyze produces the full report for one trace.
func (a *Analyzer) Analyze(trace *tracing.Trace) *Analysis {
	byID := make(map[id.SpanID]*tracing.Span, len(trace.Spans))
	for _, s := range trace.Spans {
		byID[s.SpanID] = s
	}

	depths := make(map[id.SpanID]int, len(trace.Spans))
	maxDepth := 0
	for _, s := range trace.Spans {
		d := a.walkDepth(trace.TraceID, s, byID)
		depths[s.SpanID] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	var (
		durations []time.Duration
		errors    []SpanError
		slowCount int
		slowest   *SlowOperation
	)
	breakdown := make(map[string]int)

	for _, s := range trace.Spans {
		breakdown[a.categorize(s.OperationName)]++

		if s.Status == tracing.StatusError {
			errors = append(errors, SpanError{
				SpanID:    s.SpanID,
				Operation: s.OperationName,
				Message:   s.Error,
			})
		}
		if !s.Ended() {
			continue
		}
		durations = append(durations, s.Duration)
		if s.Duration > a.cfg.SlowThreshold {
			slowCount++
		}
		if slowest == nil || s.Duration > slowest.Duration {
			slowest = &SlowOperation{
				SpanID:    s.SpanID,
				Operation: s.OperationName,
				Duration:  s.Duration,
			}
		}
	}

	analysis := &Analysis{
		TraceID: trace.TraceID,
		Summary: Summary{
			TotalDuration:      trace.Duration,
			SpanCount:          len(trace.Spans),
			ErrorCount:         len(errors),
			SlowSpanCount:      slowCount,
			MaxDepth:           maxDepth,
			OperationBreakdown: breakdown,
		},
		Performance: Performance{
			SlowestOperation: slowest,
			AverageDuration:  meanDuration(durations),
			Percentiles:      computePercentiles(durations),
			Memory:           a.memorySummary(trace),
		},
		Errors:   errors,
		Timeline: timeline(trace, depths),
	}

	analysis.Insights = a.insights(analysis)
	analysis.Recommendations = a.recommendations(analysis)
	return analysis
}

// walkDepth counts hops from a span to the root. A per-walk visited set
// detects cycles in malformed parent links; the hop cap backstops anything
// the visited set misses.
func (a *Analyzer) walkDepth(traceID id.TraceID, span *tracing.Span, byID map[id.SpanID]*tracing.Span) int {
	depth := 0
	visited := map[id.SpanID]bool{span.SpanID: true}
	current := span

	for i := 0; i < maxParentWalk; i++ {
		if current.ParentSpanID == "" {
			return depth
		}
		parent, ok := byID[current.ParentSpanID]
		if !ok {
			a.logger.Warn("dangling parent span link",
				zap.String("trace_id", traceID.String()),
				zap.String("span_id", current.SpanID.String()),
				zap.String("parent_span_id", current.ParentSpanID.String()),
			)
			return depth
		}
		if visited[parent.SpanID] {
			a.logger.Warn("cycle detected in span parent links",
				zap.String("trace_id", traceID.String()),
				zap.String("span_id", span.SpanID.String()),
			)
			return depth
		}
		visited[parent.SpanID] = true
		depth++
		current = parent
	}

	a.logger.Warn("span parent walk exceeded cap",
		zap.String("trace_id", traceID.String()),
		zap.String("span_id", span.SpanID.String()),
		zap.Int("cap", maxParentWalk),
	)
	return depth
}

// categorize buckets an operation name by keyword substring match.
func (a *Analyzer) categorize(operation string) string {
	lower := strings.ToLower(operation)
	for _, c := range a.cfg.Categories {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				return c.Name
			}
		}
	}
	return OtherCategory
}

// memorySummary derives memory growth from paired startMemoryMB and
// endMemoryMB span tags. Returns nil when no span carries the pair.
func (a *Analyzer) memorySummary(trace *tracing.Trace) *MemorySummary {
	var (
		peak       float64
		totalDelta float64
		seen       bool
	)
	for _, s := range trace.Spans {
		start, okStart := tagNumber(s.Tags, "startMemoryMB")
		end, okEnd := tagNumber(s.Tags, "endMemoryMB")
		if !okStart || !okEnd {
			continue
		}
		seen = true
		if end > peak {
			peak = end
		}
		totalDelta += end - start
	}
	if !seen {
		return nil
	}

	efficiency := "good"
	switch {
	case totalDelta > a.cfg.MemoryPoorMB:
		efficiency = "poor"
	case totalDelta > a.cfg.MemoryConcernMB:
		efficiency = "concerning"
	}

	return &MemorySummary{
		PeakMB:       peak,
		TotalDeltaMB: totalDelta,
		Efficiency:   efficiency,
	}
}

// timeline flattens spans onto the trace timeline in span order.
func timeline(trace *tracing.Trace, depths map[id.SpanID]int) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(trace.Spans))
	for _, s := range trace.Spans {
		entries = append(entries, TimelineEntry{
			SpanID:    s.SpanID,
			Operation: s.OperationName,
			Offset:    s.StartTime.Sub(trace.StartTime),
			Duration:  s.Duration,
			Status:    s.Status,
			Depth:     depths[s.SpanID],
		})
	}
	return entries
}

// computePercentiles computes the fixed percentile set with the index
// formula idx = ceil(p/100*n)-1 over ascending durations. All zero when no
// durations are available.
func computePercentiles(durations []time.Duration) Percentiles {
	if len(durations) == 0 {
		return Percentiles{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return Percentiles{
		P50: percentile(sorted, 50),
		P90: percentile(sorted, 90),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile expects sorted ascending input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// meanDuration averages durations with gonum.
func meanDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	values := make([]float64, len(durations))
	for i, d := range durations {
		values[i] = float64(d)
	}
	return time.Duration(stat.Mean(values, nil))
}

// tagNumber reads a numeric tag, tolerating the types JSON and callers
// produce.
func tagNumber(tags map[string]any, key string) (float64, bool) {
	v, ok := tags[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
