package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spanlight/spanlight/internal/analysis"
	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/monitoring"
	"github.com/spanlight/spanlight/internal/store"
	"github.com/spanlight/spanlight/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewNop()
	monitor := monitoring.New(monitoring.DefaultConfig(), logger)
	s := store.New(
		store.DefaultConfig(),
		analysis.New(analysis.DefaultConfig(), logger),
		monitor,
		nil,
		logger,
	)
	t.Cleanup(s.Stop)

	handlers := NewHandlers(s, monitor)

	router := gin.New()
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/traces/:id/analysis", handlers.GetTraceAnalysis)
	router.GET("/traces/:id/spans/:spanId", handlers.GetSpan)
	router.GET("/overview", handlers.GetOverview)
	router.GET("/stats", handlers.GetStats)
	router.GET("/export", handlers.Export)
	return router, s
}

func seedTrace(t *testing.T, s *store.Store) (string, string) {
	t.Helper()
	var traceID, spanID string

	err := tracing.Run(context.Background(), s, "seed", nil, logging.NewNop(), func(ctx context.Context) error {
		tc, ok := tracing.FromContext(ctx)
		require.True(t, ok)
		traceID = tc.TraceID().String()

		span, err := tc.StartSpan("MessageService.send", nil)
		if err != nil {
			return err
		}
		spanID = span.SpanID.String()
		tc.EndSpan(span.SpanID, nil)
		return nil
	})
	require.NoError(t, err)
	return traceID, spanID
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestTraceAnalysisEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	traceID, _ := seedTrace(t, s)

	t.Run("known trace", func(t *testing.T) {
		w := get(router, "/traces/"+traceID+"/analysis")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, traceID, body["traceId"])

		summary, ok := body["summary"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 2.0, summary["spanCount"])
	})

	t.Run("unknown trace", func(t *testing.T) {
		w := get(router, "/traces/trc_01HZZZZZZZZZZZZZZZZZZZZZZZ/analysis")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := get(router, "/traces/bogus/analysis")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSpanEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	traceID, spanID := seedTrace(t, s)

	t.Run("known span", func(t *testing.T) {
		w := get(router, "/traces/"+traceID+"/spans/"+spanID)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, traceID, body["traceId"])
		assert.Contains(t, body, "issuedAt")

		span, ok := body["span"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, spanID, span["spanId"])
		assert.Equal(t, "MessageService.send", span["operationName"])
	})

	t.Run("unknown span", func(t *testing.T) {
		w := get(router, "/traces/"+traceID+"/spans/spn_01HZZZZZZZZZZZZZZZZZZZZZZZ")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed span id", func(t *testing.T) {
		w := get(router, "/traces/"+traceID+"/spans/bogus")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOverviewEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	seedTrace(t, s)

	w := get(router, "/overview")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "history")
	assert.Contains(t, body, "serviceHealth")
	assert.Contains(t, body, "trends")
}

func TestStatsEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	seedTrace(t, s)

	w := get(router, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1.0, body["traceCount"])
	assert.Equal(t, 2.0, body["spanCount"])
}

func TestExportEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	seedTrace(t, s)

	t.Run("plain json", func(t *testing.T) {
		w := get(router, "/export")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body, "stats")
		assert.Contains(t, body, "overview")
		assert.Contains(t, body, "analyses")
	})

	t.Run("gzip", func(t *testing.T) {
		w := get(router, "/export?gzip=1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.NotEmpty(t, w.Body.Bytes())
	})
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}
