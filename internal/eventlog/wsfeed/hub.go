// Package wsfeed broadcasts committed pool events to websocket subscribers.
package wsfeed

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"partybid/internal/domain"
	"partybid/internal/eventlog"
	"partybid/internal/observability"
)

// Config configures the hub.
type Config struct {
	// SendBuffer is the number of messages queued per client before it is dropped.
	SendBuffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfig returns default hub configuration.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Replayer supplies history to clients that connect with ?since=N.
// An event committed while a client connects may be delivered twice;
// clients dedupe by seq.
type Replayer interface {
	Since(seq uint64) []domain.Event
}

// Hub implements eventlog.Sink and http.Handler.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	replay   Replayer
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

var _ eventlog.Sink = (*Hub)(nil)

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan eventlog.Message
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub. replay, logger and metrics may be nil.
func NewHub(cfg Config, replay Replayer, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		replay:   replay,
		logger:   logger,
		metrics:  metrics,
		clients:  make(map[*client]struct{}),
	}
}

// Publish queues events for every connected client. Slow clients whose
// buffer is full are disconnected rather than blocking the pool.
func (h *Hub) Publish(_ context.Context, events []domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

clients:
	for c := range h.clients {
		for _, e := range events {
			select {
			case c.send <- eventlog.ToMessage(e):
			default:
				h.logger.Warn("feed client too slow, dropping", zap.String("remote", c.remote))
				h.removeLocked(c)
				continue clients
			}
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var since uint64
	replay := false
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since, replay = v, true
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	// History is read under the hub lock so no live event slips between
	// replay and stream.
	var history []domain.Event
	if replay && h.replay != nil {
		history = h.replay.Since(since)
	}
	c := &client{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan eventlog.Message, len(history)+h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
	for _, e := range history {
		c.send <- eventlog.ToMessage(e)
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.FeedClients.Set(float64(n))
	}

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		h.remove(c)
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteTimeout))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		c.close()
		return
	}
	delete(h.clients, c)
	c.close()
	if h.metrics != nil {
		h.metrics.FeedClients.Set(float64(len(h.clients)))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
