// Package messaging pushes live ingestion metrics to connected admin
// dashboard clients over websockets.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/metrics"
)

// MetricsClient represents a single connected dashboard client.
type MetricsClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// MetricsBroadcaster manages connected clients and pushes a counter
// snapshot to each of them on every tick.
type MetricsBroadcaster struct {
	counters   *metrics.IngestionCounters
	logger     *logging.ChanneledLogger
	interval   time.Duration
	register   chan *MetricsClient
	unregister chan *MetricsClient
	clients    map[*MetricsClient]bool
	mu         sync.RWMutex
}

// NewMetricsBroadcaster creates a new broadcaster instance.
func NewMetricsBroadcaster(counters *metrics.IngestionCounters, logger *logging.ChanneledLogger, interval time.Duration) *MetricsBroadcaster {
	return &MetricsBroadcaster{
		counters:   counters,
		logger:     logger,
		interval:   interval,
		register:   make(chan *MetricsClient),
		unregister: make(chan *MetricsClient),
		clients:    make(map[*MetricsClient]bool),
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *MetricsBroadcaster) Run() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
			b.logger.Metrics().Debug("Metrics client registered",
				"clients", b.clientCount())

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mu.Unlock()
			b.logger.Metrics().Debug("Metrics client unregistered",
				"clients", b.clientCount())

		case <-ticker.C:
			b.broadcastSnapshot()
		}
	}
}

// Register queues a client for registration.
func (b *MetricsBroadcaster) Register(client *MetricsClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *MetricsBroadcaster) Unregister(client *MetricsClient) {
	b.unregister <- client
}

func (b *MetricsBroadcaster) clientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *MetricsBroadcaster) broadcastSnapshot() {
	b.mu.RLock()
	if len(b.clients) == 0 {
		b.mu.RUnlock()
		return
	}
	clients := make([]*MetricsClient, 0, len(b.clients))
	for client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	payload, err := json.Marshal(b.counters.Snapshot())
	if err != nil {
		b.logger.Metrics().Error("Failed to marshal metrics snapshot", "error", err)
		return
	}

	var slow []*MetricsClient
	for _, client := range clients {
		select {
		case client.Send <- payload:
		default:
			// Slow consumer; drop it rather than stall the tick.
			slow = append(slow, client)
		}
	}
	if len(slow) == 0 {
		return
	}
	b.mu.Lock()
	for _, client := range slow {
		if _, ok := b.clients[client]; ok {
			delete(b.clients, client)
			close(client.Send)
		}
	}
	b.mu.Unlock()
}

// WritePump drains the client's send channel onto its connection. It
// runs as a goroutine per client and exits when the channel closes.
func (c *MetricsClient) WritePump() {
	defer c.Conn.Close()
	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
