// Package server wires the engine together: analyzer, monitor, store,
// HTTP query surface, and websocket streaming.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spanlight/spanlight/internal/analysis"
	enginehttp "github.com/spanlight/spanlight/internal/http"
	"github.com/spanlight/spanlight/internal/infrastructure/config"
	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/middleware"
	"github.com/spanlight/spanlight/internal/monitoring"
	"github.com/spanlight/spanlight/internal/store"
	"github.com/spanlight/spanlight/internal/ws"
	"go.uber.org/zap"
)

// Server owns the engine components and the HTTP surface.
type Server struct {
	cfg       *config.Config
	logger    *logging.Logger
	router    *gin.Engine
	httpSrv   *http.Server
	store     *store.Store
	monitor   *monitoring.Monitor
	metrics   *monitoring.Metrics
	wsHandler *ws.Handler
}

// New assembles a server from configuration. All engine state is owned
// here; nothing is a hidden singleton.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefault()
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	analyzer := analysis.New(analysis.Config{
		SlowThreshold:     cfg.Analyzer.SlowThreshold,
		VerySlowThreshold: cfg.Analyzer.VerySlowThreshold,
		MemoryConcernMB:   cfg.Analyzer.MemoryConcernMB,
		MemoryPoorMB:      cfg.Analyzer.MemoryPoorMB,
	}, logger)

	monitor := monitoring.New(monitoring.Config{
		HistorySize:   cfg.Monitor.HistorySize,
		HealthWindow:  cfg.Monitor.HealthWindow,
		TrendWindow:   cfg.Monitor.TrendWindow,
		SlowThreshold: cfg.Analyzer.SlowThreshold,
	}, logger)

	traceStore := store.New(store.Config{
		MaxTraces:     cfg.Store.MaxTraces,
		TraceTTL:      cfg.Store.TraceTTL,
		SweepInterval: cfg.Store.SweepInterval,
	}, analyzer, monitor, metrics, logger)

	wsHandler := ws.NewHandler(monitor, metrics, cfg.Stream.PushInterval, logger)
	handlers := enginehttp.NewHandlers(traceStore, monitor)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(middleware.Metrics(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	router.Use(middleware.Tracing(traceStore, logger))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/traces/:id/analysis", handlers.GetTraceAnalysis)
	router.GET("/traces/:id/spans/:spanId", handlers.GetSpan)
	router.GET("/overview", handlers.GetOverview)
	router.GET("/stats", handlers.GetStats)
	router.GET("/export", handlers.Export)
	router.GET("/stream", wsHandler.HandleConnection)
	promHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	router.GET("/metrics", func(c *gin.Context) {
		metrics.UpdateUptime()
		promHandler.ServeHTTP(c.Writer, c.Request)
	})

	return &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		store:     traceStore,
		monitor:   monitor,
		metrics:   metrics,
		wsHandler: wsHandler,
	}
}

// Store exposes the trace store so embedding applications can collect
// traces from their own instrumentation.
func (s *Server) Store() *store.Store { return s.store }

// Monitor exposes the aggregate monitor.
func (s *Server) Monitor() *monitoring.Monitor { return s.monitor }

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves the query surface until Shutdown.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("spanlight listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP surface, websocket pushes, and the store
// sweeper, in that order.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err = s.httpSrv.Shutdown(shutdownCtx)
	}

	s.wsHandler.Stop()
	s.store.Stop()
	return err
}
