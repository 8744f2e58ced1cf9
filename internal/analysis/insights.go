package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Depth thresholds for call-stack insights.
const (
	depthWarning  = 15
	depthCritical = 25
)

// slowRatioThreshold flags traces where slow spans dominate.
const slowRatioThreshold = 0.30

// insights applies the rule set in a fixed order. Each rule is independent
// and deterministic given the same analysis.
func (a *Analyzer) insights(an *Analysis) []string {
	var out []string

	if s := an.Performance.SlowestOperation; s != nil && s.Duration > a.cfg.VerySlowThreshold {
		out = append(out, fmt.Sprintf(
			"Critical bottleneck: %s took %dms, exceeding the very-slow threshold of %dms",
			s.Operation, s.Duration.Milliseconds(), a.cfg.VerySlowThreshold.Milliseconds()))
	}

	if ratio := slowRatio(an); ratio > slowRatioThreshold {
		out = append(out, fmt.Sprintf(
			"High slow-span ratio: %.0f%% of spans exceeded the %dms slow threshold",
			ratio*100, a.cfg.SlowThreshold.Milliseconds()))
	}

	if msg, count := dominantError(an.Errors); count > 0 {
		out = append(out, fmt.Sprintf(
			"Most common error: %q occurred %d time(s) across %d errored span(s)",
			msg, count, len(an.Errors)))
	}

	switch {
	case an.Summary.MaxDepth > depthCritical:
		out = append(out, fmt.Sprintf(
			"Excessive call stack depth: %d levels (critical above %d)",
			an.Summary.MaxDepth, depthCritical))
	case an.Summary.MaxDepth > depthWarning:
		out = append(out, fmt.Sprintf(
			"Deep call stack: %d levels (warning above %d)",
			an.Summary.MaxDepth, depthWarning))
	}

	if m := an.Performance.Memory; m != nil && m.Efficiency == "poor" {
		out = append(out, fmt.Sprintf(
			"Poor memory efficiency: %.0fMB total growth, peak %.0fMB",
			m.TotalDeltaMB, m.PeakMB))
	}

	if name, count := mostActiveCategory(an.Summary.OperationBreakdown); name != "" {
		out = append(out, fmt.Sprintf(
			"Most active category: %s (%d operations)", name, count))
	}

	return out
}

// recommendations mirror the insight rules with actionable phrasing.
func (a *Analyzer) recommendations(an *Analysis) []string {
	var out []string

	if s := an.Performance.SlowestOperation; s != nil && s.Duration > a.cfg.VerySlowThreshold {
		out = append(out, fmt.Sprintf(
			"Optimize %s: break the operation into smaller units or move it off the critical path", s.Operation))
	}

	if slowRatio(an) > slowRatioThreshold {
		out = append(out, "Profile the slow operations and consider caching or batching their work")
	}

	if msg, _ := dominantError(an.Errors); msg != "" {
		if strings.Contains(strings.ToLower(msg), "timeout") {
			out = append(out, "Implement a circuit breaker for timeout-prone operations")
		} else {
			out = append(out, fmt.Sprintf("Add retry with backoff or alerting for recurring error %q", msg))
		}
	}

	if an.Summary.MaxDepth > depthWarning {
		out = append(out, "Flatten the call hierarchy; deeply nested operations hide latency and complicate debugging")
	}

	if m := an.Performance.Memory; m != nil && m.Efficiency != "good" {
		out = append(out, "Review allocations in memory-heavy spans; consider streaming or pooling buffers")
	}

	return out
}

// slowRatio returns the fraction of spans counted as slow.
func slowRatio(an *Analysis) float64 {
	if an.Summary.SpanCount == 0 {
		return 0
	}
	return float64(an.Summary.SlowSpanCount) / float64(an.Summary.SpanCount)
}

// dominantError finds the most frequent error message. Ties break
// alphabetically so the output is stable.
func dominantError(errors []SpanError) (string, int) {
	if len(errors) == 0 {
		return "", 0
	}
	counts := make(map[string]int)
	for _, e := range errors {
		counts[e.Message]++
	}

	messages := make([]string, 0, len(counts))
	for msg := range counts {
		messages = append(messages, msg)
	}
	sort.Strings(messages)

	best, bestCount := "", 0
	for _, msg := range messages {
		if counts[msg] > bestCount {
			best, bestCount = msg, counts[msg]
		}
	}
	return best, bestCount
}

// mostActiveCategory finds the busiest operation bucket, ignoring Other.
// Ties break alphabetically.
func mostActiveCategory(breakdown map[string]int) (string, int) {
	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		if name != OtherCategory {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	best, bestCount := "", 0
	for _, name := range names {
		if breakdown[name] > bestCount {
			best, bestCount = name, breakdown[name]
		}
	}
	return best, bestCount
}
