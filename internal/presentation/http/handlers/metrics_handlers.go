package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zirconsol/drshaq-backend/internal/infrastructure/messaging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/metrics"
)

// MetricsHandlers exposes the live ingestion counters to the admin
// dashboard, as a snapshot and as a websocket stream.
type MetricsHandlers struct {
	counters    *metrics.IngestionCounters
	broadcaster *messaging.MetricsBroadcaster
	logger      *logging.ChanneledLogger
	upgrader    websocket.Upgrader
}

// NewMetricsHandlers creates metrics handlers with their dependencies.
func NewMetricsHandlers(counters *metrics.IngestionCounters, broadcaster *messaging.MetricsBroadcaster, logger *logging.ChanneledLogger) *MetricsHandlers {
	return &MetricsHandlers{
		counters:    counters,
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin was already vetted by the admin JWT gate.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetIngestionMetrics handles GET /api/v1/metrics/ingestion.
func (h *MetricsHandlers) GetIngestionMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.counters.Snapshot())
}

// StreamIngestionMetrics handles GET /api/v1/metrics/ingestion/stream,
// upgrading to a websocket that receives periodic counter snapshots.
func (h *MetricsHandlers) StreamIngestionMetrics(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Metrics().Error("Failed to upgrade metrics stream", "error", err)
		return
	}

	client := &messaging.MetricsClient{
		Conn: conn,
		Send: make(chan []byte, 8),
	}
	h.broadcaster.Register(client)
	go client.WritePump()

	// Read loop exists to observe the close handshake.
	go func() {
		defer h.broadcaster.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
