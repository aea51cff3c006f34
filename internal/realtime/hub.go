package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/pkg/logger"
	"github.com/ihuzaapp/shopperd/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	sendBufferSize = 32
)

// Event is a JSON payload delivered to dashboard subscribers.
type Event struct {
	Stream string         `json:"stream"`
	Type   string         `json:"type"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type controlFrame struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Hub fans shopper-scoped events out over multiplexed websocket streams. A
// slow subscriber never stalls the engine: the per-connection buffer drops
// the whole connection when it fills.
type Hub struct {
	mu       sync.RWMutex
	streams  map[string]map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		streams: make(map[string]map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostOnly(origin)
				return originHost == hostOnly(r.Host) || isLoopback(originHost)
			},
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the request and pumps events until the peer goes away.
// Blocks for the lifetime of the connection.
func (h *Hub) Serve(shopperID string, streams []string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:       h,
		socket:    socket,
		shopperID: shopperID,
		send:      make(chan Event, sendBufferSize),
		done:      make(chan struct{}),
	}
	metrics.RealtimeConnections.Inc()
	h.subscribe(c, streams)

	go c.writeLoop()
	c.readLoop()
}

// Publish delivers an event to every connection the shopper has on the
// event's stream. A shopper with no subscribers is a no-op, never an error.
func (h *Hub) Publish(shopperID string, event Event) {
	stream := normalize(event.Stream)
	if stream == "" || shopperID == "" {
		return
	}
	event.Stream = stream

	h.mu.RLock()
	var stalled []*client
	for c := range h.streams[stream][shopperID] {
		if !c.offer(event) {
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	h.drop(stalled)
}

// Broadcast delivers an event to every subscriber on the event's stream
// regardless of shopper, used for system-wide announcements.
func (h *Hub) Broadcast(event Event) {
	stream := normalize(event.Stream)
	if stream == "" {
		return
	}
	event.Stream = stream

	h.mu.RLock()
	var stalled []*client
	for _, conns := range h.streams[stream] {
		for c := range conns {
			if !c.offer(event) {
				stalled = append(stalled, c)
			}
		}
	}
	h.mu.RUnlock()

	h.drop(stalled)
}

// drop closes backpressured connections. Must run without h.mu held: close
// re-enters the hub lock through unregister.
func (h *Hub) drop(stalled []*client) {
	for _, c := range stalled {
		h.log.Warn("dropping backpressured subscriber", zap.String("shopper_id", c.shopperID))
		c.close()
	}
}

func (h *Hub) subscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range streams {
		stream = normalize(stream)
		if stream == "" {
			continue
		}
		if c.streams == nil {
			c.streams = make(map[string]struct{})
		}
		if _, ok := c.streams[stream]; ok {
			continue
		}

		if h.streams[stream] == nil {
			h.streams[stream] = make(map[string]map[*client]struct{})
		}
		if h.streams[stream][c.shopperID] == nil {
			h.streams[stream][c.shopperID] = make(map[*client]struct{})
		}

		c.streams[stream] = struct{}{}
		h.streams[stream][c.shopperID][c] = struct{}{}
	}
}

func (h *Hub) unsubscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range streams {
		h.dropLocked(c, normalize(stream))
		delete(c.streams, normalize(stream))
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for stream := range c.streams {
		h.dropLocked(c, stream)
	}
	metrics.RealtimeConnections.Dec()
}

func (h *Hub) dropLocked(c *client, stream string) {
	if stream == "" {
		return
	}
	conns := h.streams[stream][c.shopperID]
	if len(conns) == 0 {
		return
	}

	delete(conns, c)
	if len(conns) == 0 {
		delete(h.streams[stream], c.shopperID)
	}
	if len(h.streams[stream]) == 0 {
		delete(h.streams, stream)
	}
}

type client struct {
	hub       *Hub
	socket    *websocket.Conn
	shopperID string
	streams   map[string]struct{}
	send      chan Event
	done      chan struct{}
	once      sync.Once
}

// offer queues an event without blocking. A false return means the send
// buffer is full and the connection should be dropped; a closing connection
// reports true so it is not dropped twice.
func (c *client) offer(event Event) bool {
	select {
	case <-c.done:
		return true
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *client) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			return
		}
		if len(payload) == 0 {
			continue
		}

		var frame controlFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.hub.log.Debug("discarding malformed control frame",
				zap.String("shopper_id", c.shopperID), zap.Error(err))
			continue
		}

		switch strings.ToLower(strings.TrimSpace(frame.Action)) {
		case "subscribe":
			c.hub.subscribe(c, frame.Streams)
		case "unsubscribe":
			c.hub.unsubscribe(c, frame.Streams)
		case "ping":
			if !c.offer(Event{Type: "pong"}) {
				return
			}
		}
	}
}

func (c *client) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case event := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		if c.socket != nil {
			_ = c.socket.Close()
		}
	})
}

func hostOnly(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalize(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}
