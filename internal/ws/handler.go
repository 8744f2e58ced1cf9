// Package ws streams performance-overview snapshots to dashboard clients
// over WebSocket.
//
// Each connection gets a periodic push of the current overview; clients
// send nothing but pings. Connections close when the client goes away or
// the engine shuts down.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/monitoring"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard is same-host; CORS handles the rest
	},
}

// Handler manages WebSocket dashboard connections.
type Handler struct {
	monitor      *monitoring.Monitor
	metrics      *monitoring.Metrics
	logger       *logging.Logger
	pushInterval time.Duration
	stopOnce     sync.Once
	stopCh       chan struct{}
}

// NewHandler creates a WebSocket handler. metrics may be nil.
func NewHandler(monitor *monitoring.Monitor, metrics *monitoring.Metrics, pushInterval time.Duration, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if pushInterval <= 0 {
		pushInterval = 5 * time.Second
	}
	return &Handler{
		monitor:      monitor,
		metrics:      metrics,
		logger:       logger,
		pushInterval: pushInterval,
		stopCh:       make(chan struct{}),
	}
}

// HandleConnection upgrades the request and starts the push loop.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	closed := make(chan struct{})
	go h.readPump(conn, closed)
	go h.pushLoop(conn, closed)
}

// Stop closes the handler; all push loops terminate. Idempotent.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}

// readPump drains client frames so control messages are processed, and
// signals when the peer goes away.
func (h *Handler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) pushLoop(conn *websocket.Conn, closed <-chan struct{}) {
	defer func() {
		conn.Close()
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
	}()

	ticker := time.NewTicker(h.pushInterval)
	defer ticker.Stop()

	// Send one snapshot immediately so dashboards render without waiting
	// a full interval.
	if err := h.push(conn); err != nil {
		return
	}

	for {
		select {
		case <-ticker.C:
			if err := h.push(conn); err != nil {
				return
			}
		case <-closed:
			return
		case <-h.stopCh:
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
			return
		}
	}
}

func (h *Handler) push(conn *websocket.Conn) error {
	payload, err := sonic.Marshal(gin.H{
		"type":     "overview",
		"overview": h.monitor.Overview(),
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
