package monitoring

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/shared/id"
	"github.com/spanlight/spanlight/internal/tracing"
	"gonum.org/v1/gonum/stat"
)

// Health status values for a service group.
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Trend classification values.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDegrading = "degrading"
)

// Classification thresholds.
const (
	criticalErrorRate  = 0.20
	warningErrorRate   = 0.10
	warningSlowRatio   = 0.30
	trendDegradeChange = 0.10
	trendImproveChange = 0.10
	errorImproveChange = 0.20
)

// Snapshot is the per-trace metric record kept in the rolling history.
type Snapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	TraceID   id.TraceID    `json:"traceId"`
	Duration  time.Duration `json:"duration"`
	SpanCount int           `json:"spanCount"`
	ErrorRate float64       `json:"errorRate"`
	// Throughput is implied spans per second for this trace.
	Throughput float64 `json:"throughput"`
}

// ServiceHealth is the derived health classification for one inferred
// service.
type ServiceHealth struct {
	Service         string        `json:"service"`
	OperationCount  int           `json:"operationCount"`
	AvgDuration     time.Duration `json:"avgDuration"`
	ErrorRate       float64       `json:"errorRate"`
	SlowCount       int           `json:"slowCount"`
	Status          string        `json:"status"`
	Issues          []string      `json:"issues,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
}

// Trends holds the two-window trend classifications.
type Trends struct {
	AvgResponseTime string `json:"avgResponseTime"`
	ErrorRate       string `json:"errorRate"`
}

// Overview is the fleet-wide analytics result.
type Overview struct {
	History       []Snapshot                `json:"history"`
	ServiceHealth map[string]*ServiceHealth `json:"serviceHealth"`
	Trends        Trends                    `json:"trends"`
}

// Config holds monitor window sizes and thresholds.
type Config struct {
	HistorySize   int
	HealthWindow  int
	TrendWindow   int
	SlowThreshold time.Duration
}

// DefaultConfig returns the standard windows: 100 history entries, health
// over the 50 most recent traces, trends over two windows of 5.
func DefaultConfig() Config {
	return Config{
		HistorySize:   100,
		HealthWindow:  50,
		TrendWindow:   5,
		SlowThreshold: time.Second,
	}
}

// Monitor aggregates per-trace metrics into service health and trends. It
// is shared across concurrently finishing requests and guarded by a single
// lock.
type Monitor struct {
	mu      sync.RWMutex
	cfg     Config
	history []Snapshot
	recent  []*tracing.Trace
	logger  *logging.Logger
}

// New creates an aggregate monitor.
func New(cfg Config, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.HealthWindow <= 0 {
		cfg.HealthWindow = 50
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = 5
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = time.Second
	}
	return &Monitor{cfg: cfg, logger: logger}
}

// Record folds one finalized trace into the rolling history.
func (m *Monitor) Record(trace *tracing.Trace) {
	snapshot := Snapshot{
		Timestamp: time.Now(),
		TraceID:   trace.TraceID,
		Duration:  trace.Duration,
		SpanCount: trace.SpanCount(),
	}
	if n := trace.SpanCount(); n > 0 {
		snapshot.ErrorRate = float64(trace.ErrorCount()) / float64(n)
	}
	if secs := trace.Duration.Seconds(); secs > 0 {
		snapshot.Throughput = float64(trace.SpanCount()) / secs
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, snapshot)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}

	m.recent = append(m.recent, trace)
	if len(m.recent) > m.cfg.HealthWindow {
		m.recent = m.recent[len(m.recent)-m.cfg.HealthWindow:]
	}
}

// Overview returns the history, per-service health, and trend
// classifications. Reads may trail a concurrent Record by one insert.
func (m *Monitor) Overview() Overview {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]Snapshot, len(m.history))
	copy(history, m.history)

	return Overview{
		History:       history,
		ServiceHealth: m.serviceHealthLocked(),
		Trends: Trends{
			AvgResponseTime: m.trendLocked(func(s Snapshot) float64 { return float64(s.Duration) }, trendImproveChange),
			ErrorRate:       m.trendLocked(func(s Snapshot) float64 { return s.ErrorRate }, errorImproveChange),
		},
	}
}

// serviceHealthLocked groups spans of the recent traces by inferred
// service and classifies each group. Caller holds at least a read lock.
func (m *Monitor) serviceHealthLocked() map[string]*ServiceHealth {
	type group struct {
		durations []float64
		errors    int
		slow      int
	}
	groups := make(map[string]*group)

	for _, trace := range m.recent {
		for _, span := range trace.Spans {
			service := InferService(span.OperationName)
			g, ok := groups[service]
			if !ok {
				g = &group{}
				groups[service] = g
			}
			g.durations = append(g.durations, float64(span.Duration))
			if span.Status == tracing.StatusError {
				g.errors++
			}
			if span.Duration > m.cfg.SlowThreshold {
				g.slow++
			}
		}
	}

	health := make(map[string]*ServiceHealth, len(groups))
	for service, g := range groups {
		count := len(g.durations)
		h := &ServiceHealth{
			Service:        service,
			OperationCount: count,
			AvgDuration:    time.Duration(stat.Mean(g.durations, nil)),
			ErrorRate:      float64(g.errors) / float64(count),
			SlowCount:      g.slow,
		}
		m.classify(h)
		health[service] = h
	}
	return health
}

// classify assigns a tri-state status with issues and recommendations.
func (m *Monitor) classify(h *ServiceHealth) {
	slowRatio := 0.0
	if h.OperationCount > 0 {
		slowRatio = float64(h.SlowCount) / float64(h.OperationCount)
	}

	switch {
	case h.ErrorRate > criticalErrorRate:
		h.Status = StatusCritical
		h.Issues = append(h.Issues, fmt.Sprintf("error rate %.0f%% exceeds %.0f%%",
			h.ErrorRate*100, criticalErrorRate*100))
		h.Recommendations = append(h.Recommendations,
			fmt.Sprintf("Investigate recurring failures in %s immediately", h.Service))
	case h.ErrorRate > warningErrorRate || h.AvgDuration > m.cfg.SlowThreshold || slowRatio > warningSlowRatio:
		h.Status = StatusWarning
		if h.ErrorRate > warningErrorRate {
			h.Issues = append(h.Issues, fmt.Sprintf("elevated error rate %.0f%%", h.ErrorRate*100))
		}
		if h.AvgDuration > m.cfg.SlowThreshold {
			h.Issues = append(h.Issues, fmt.Sprintf("average duration %dms exceeds the %dms slow threshold",
				h.AvgDuration.Milliseconds(), m.cfg.SlowThreshold.Milliseconds()))
		}
		if slowRatio > warningSlowRatio {
			h.Issues = append(h.Issues, fmt.Sprintf("%.0f%% of operations are slow", slowRatio*100))
		}
		h.Recommendations = append(h.Recommendations,
			fmt.Sprintf("Profile %s before it degrades further", h.Service))
	default:
		h.Status = StatusHealthy
	}
}

// trendLocked compares the mean of the last window against the mean of the
// full window before it. Anything short of two full windows reports stable.
// Caller holds at least a read lock.
func (m *Monitor) trendLocked(value func(Snapshot) float64, improveThreshold float64) string {
	w := m.cfg.TrendWindow
	n := len(m.history)
	if n < 2*w {
		return TrendStable
	}

	recentStart := n - w
	recentMean := snapshotMean(m.history[recentStart:], value)
	prevMean := snapshotMean(m.history[recentStart-w:recentStart], value)
	if prevMean == 0 {
		return TrendStable
	}

	change := (recentMean - prevMean) / prevMean
	switch {
	case change > trendDegradeChange:
		return TrendDegrading
	case change < -improveThreshold:
		return TrendImproving
	default:
		return TrendStable
	}
}

func snapshotMean(snapshots []Snapshot, value func(Snapshot) float64) float64 {
	values := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = value(s)
	}
	return stat.Mean(values, nil)
}

// serviceKeywords backs InferService for operation names without a dotted
// service prefix. A best-effort classifier for dashboards, not an
// invariant.
var serviceKeywords = []struct {
	keyword string
	service string
}{
	{"message", "ChatService"},
	{"chat", "ChatService"},
	{"generate", "AIService"},
	{"ai", "AIService"},
	{"llm", "AIService"},
	{"cache", "CacheService"},
	{"db", "StorageService"},
	{"query", "StorageService"},
	{"store", "StorageService"},
	{"http", "HTTPGateway"},
	{"request", "HTTPGateway"},
}

// InferService maps an operation name to a service name: the segment
// before the first dot when present, otherwise a keyword lookup, otherwise
// the general bucket.
func InferService(operation string) string {
	if idx := strings.Index(operation, "."); idx > 0 {
		return operation[:idx]
	}
	lower := strings.ToLower(operation)
	for _, entry := range serviceKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.service
		}
	}
	return "general"
}
