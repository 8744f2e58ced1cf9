// Package http exposes the engine's query surface over gin: per-trace
// analysis, fleet-wide overview, store stats, and the export snapshot.
package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spanlight/spanlight/internal/export"
	"github.com/spanlight/spanlight/internal/monitoring"
	"github.com/spanlight/spanlight/internal/shared/id"
	"github.com/spanlight/spanlight/internal/shared/utils"
	"github.com/spanlight/spanlight/internal/store"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	store   *store.Store
	monitor *monitoring.Monitor
}

// NewHandlers creates a new handler set.
func NewHandlers(s *store.Store, m *monitoring.Monitor) *Handlers {
	return &Handlers{store: s, monitor: m}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "spanlight",
		"version": "0.3.0",
	})
}

// Health handles the health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"store":  h.store.Stats(),
	})
}

// GetTraceAnalysis returns the analysis for one trace.
func (h *Handlers) GetTraceAnalysis(c *gin.Context) {
	traceID := c.Param("id")
	if err := utils.ValidateTraceID(traceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	an, ok := h.store.GetAnalysis(id.TraceID(traceID))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, an)
}

// GetSpan returns one span of a stored trace, with the issue time decoded
// from its ULID.
func (h *Handlers) GetSpan(c *gin.Context) {
	traceID := c.Param("id")
	if err := utils.ValidateTraceID(traceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spanID := c.Param("spanId")
	if err := utils.ValidateSpanID(spanID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trace, ok := h.store.GetTrace(id.TraceID(traceID))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	for _, span := range trace.Spans {
		if span.SpanID == id.SpanID(spanID) {
			resp := gin.H{"traceId": trace.TraceID, "span": span}
			if issued, err := id.Timestamp(strings.TrimPrefix(spanID, id.SpanPrefix+"_")); err == nil {
				resp["issuedAt"] = issued
			}
			c.JSON(http.StatusOK, resp)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "span not found"})
}

// GetOverview returns history, service health, and trends.
func (h *Handlers) GetOverview(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Overview())
}

// GetStats returns store residency stats.
func (h *Handlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// Export returns the full dashboard snapshot, optionally gzip-compressed
// with ?gzip=1.
func (h *Handlers) Export(c *gin.Context) {
	snapshot := export.Build(h.store, h.monitor)

	if c.Query("gzip") == "1" {
		c.Header("Content-Type", "application/json")
		c.Header("Content-Encoding", "gzip")
		c.Status(http.StatusOK)
		if err := export.WriteGzip(c.Writer, snapshot); err != nil {
			c.Error(err)
		}
		return
	}

	data, err := export.Marshal(snapshot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot encoding failed"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
