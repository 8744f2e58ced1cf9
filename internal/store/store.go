// Package store holds finalized traces with bounded, time-evicted
// retention. Volatile and best-effort: this is diagnostic data, not a
// durable audit log.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spanlight/spanlight/internal/analysis"
	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/monitoring"
	"github.com/spanlight/spanlight/internal/shared/id"
	"github.com/spanlight/spanlight/internal/tracing"
	"go.uber.org/zap"
)

// Config holds retention limits.
type Config struct {
	MaxTraces     int
	TraceTTL      time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the standard retention: 2000 traces, 2 hour TTL,
// sweep every 5 minutes.
func DefaultConfig() Config {
	return Config{
		MaxTraces:     2000,
		TraceTTL:      2 * time.Hour,
		SweepInterval: 5 * time.Minute,
	}
}

// Stats reports store residency.
type Stats struct {
	TraceCount       int     `json:"traceCount"`
	SpanCount        int     `json:"spanCount"`
	AvgSpansPerTrace float64 `json:"avgSpansPerTrace"`
	MemoryUsageMB    float64 `json:"memoryUsageMB"`
}

// Store is the shared, concurrently-accessed trace collection. A single
// lock covers insert, evict, and read; a stale-by-one-insert read is
// acceptable for diagnostic data.
type Store struct {
	mu       sync.RWMutex
	cfg      Config
	traces   map[id.TraceID]*tracing.Trace
	analyses map[id.TraceID]*analysis.Analysis

	analyzer *analysis.Analyzer
	monitor  *monitoring.Monitor
	metrics  *monitoring.Metrics
	logger   *logging.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a store and starts its background sweeper. metrics may be
// nil.
func New(
	cfg Config,
	analyzer *analysis.Analyzer,
	monitor *monitoring.Monitor,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MaxTraces <= 0 {
		cfg.MaxTraces = 2000
	}
	if cfg.TraceTTL <= 0 {
		cfg.TraceTTL = 2 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}

	s := &Store{
		cfg:      cfg,
		traces:   make(map[id.TraceID]*tracing.Trace),
		analyses: make(map[id.TraceID]*analysis.Analysis),
		analyzer: analyzer,
		monitor:  monitor,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Collect stores a finalized trace and synchronously runs analysis and
// aggregation for it. A failure while analyzing one trace is isolated to
// that trace; the trace itself is still stored.
func (s *Store) Collect(trace *tracing.Trace) {
	if trace == nil {
		return
	}

	an := s.analyze(trace)

	s.mu.Lock()
	s.traces[trace.TraceID] = trace
	if an != nil {
		s.analyses[trace.TraceID] = an
	}
	over := len(s.traces) > s.cfg.MaxTraces
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordTrace(trace.SpanCount(), trace.Duration)
	}
	if over {
		s.Sweep()
	}
}

// analyze runs the analyzer and monitor for one trace, recovering any
// panic so a malformed trace cannot take down collection of later ones.
func (s *Store) analyze(trace *tracing.Trace) (an *analysis.Analysis) {
	defer func() {
		if r := recover(); r != nil {
			an = nil
			s.logger.Error("trace analysis failed",
				zap.String("trace_id", trace.TraceID.String()),
				zap.Any("panic", r),
			)
			if s.metrics != nil {
				s.metrics.AnalysisFailures.Inc()
			}
		}
	}()

	if s.monitor != nil {
		s.monitor.Record(trace)
	}
	if s.analyzer == nil {
		return nil
	}
	return s.analyzer.Analyze(trace)
}

// GetTrace returns a stored trace.
func (s *Store) GetTrace(traceID id.TraceID) (*tracing.Trace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[traceID]
	return t, ok
}

// GetAnalysis returns the analysis computed when the trace was collected.
func (s *Store) GetAnalysis(traceID id.TraceID) (*analysis.Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	an, ok := s.analyses[traceID]
	return an, ok
}

// Analyses returns all resident analyses, newest last by trace ID order.
func (s *Store) Analyses() []*analysis.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.analyses))
	for traceID := range s.analyses {
		ids = append(ids, traceID.String())
	}
	sort.Strings(ids)

	out := make([]*analysis.Analysis, 0, len(ids))
	for _, traceID := range ids {
		out = append(out, s.analyses[id.TraceID(traceID)])
	}
	return out
}

// Stats reports residency counts and an estimated serialized footprint.
// The footprint is the JSON-encoded size of all resident traces.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TraceCount: len(s.traces)}
	for _, t := range s.traces {
		stats.SpanCount += t.SpanCount()
	}
	if stats.TraceCount > 0 {
		stats.AvgSpansPerTrace = float64(stats.SpanCount) / float64(stats.TraceCount)
	}

	if data, err := sonic.Marshal(s.traces); err == nil {
		stats.MemoryUsageMB = float64(len(data)) / (1024 * 1024)
		if s.metrics != nil {
			s.metrics.RecordStoreSize(stats.TraceCount, len(data))
		}
	}
	return stats
}

// Sweep evicts expired traces, then oldest-first down to MaxTraces.
func (s *Store) Sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for traceID, trace := range s.traces {
		if now.Sub(trace.OldestSpanStart()) > s.cfg.TraceTTL {
			delete(s.traces, traceID)
			delete(s.analyses, traceID)
			expired++
		}
	}

	evicted := 0
	if excess := len(s.traces) - s.cfg.MaxTraces; excess > 0 {
		type aged struct {
			traceID id.TraceID
			start   time.Time
		}
		resident := make([]aged, 0, len(s.traces))
		for traceID, trace := range s.traces {
			resident = append(resident, aged{traceID, trace.StartTime})
		}
		sort.Slice(resident, func(i, j int) bool {
			return resident[i].start.Before(resident[j].start)
		})
		for _, entry := range resident[:excess] {
			delete(s.traces, entry.traceID)
			delete(s.analyses, entry.traceID)
			evicted++
		}
	}

	if expired > 0 || evicted > 0 {
		s.logger.Info("trace store sweep",
			zap.Int("expired", expired),
			zap.Int("evicted", evicted),
			zap.Int("resident", len(s.traces)),
		)
		if s.metrics != nil {
			if expired > 0 {
				s.metrics.RecordEviction("ttl", expired)
			}
			if evicted > 0 {
				s.metrics.RecordEviction("capacity", evicted)
			}
		}
	}
}

// Stop halts the background sweeper. No sweeps run after it returns.
// Idempotent.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

func (s *Store) sweepLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}
