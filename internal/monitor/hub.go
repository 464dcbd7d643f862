package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/rcnneval/internal/eval"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Message types on the progress stream.
const (
	MessageState     = "state"
	MessageStart     = "start"
	MessageImage     = "image"
	MessageThreshold = "threshold"
	MessageComplete  = "complete"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream is read-only progress, so any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is one frame of the progress stream.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Progress is the running state of a pass, sent to every new subscriber.
type Progress struct {
	Dataset    string `json:"dataset"`
	Total      int    `json:"total"`
	Done       int    `json:"done"`
	Detections int    `json:"detections"`
	Finished   bool   `json:"finished"`
}

// ThresholdUpdate reports a raised class threshold.
type ThresholdUpdate struct {
	Class     int     `json:"class"`
	Threshold float64 `json:"threshold"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans pass progress out to WebSocket subscribers. It implements
// eval.Observer and http.Handler. Slow subscribers miss frames instead of
// stalling the pass.
type Hub struct {
	metrics *Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	state   Progress
}

// NewHub creates a hub. m may be nil.
func NewHub(m *Metrics) *Hub {
	return &Hub{metrics: m, clients: make(map[*client]struct{})}
}

// ServeHTTP upgrades the request and streams progress until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	c.send <- encode(MessageState, h.state)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.websocketConnections.Inc()
		defer h.metrics.websocketConnections.Dec()
	}
	slog.Info("Progress subscriber connected", "remote_addr", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readLoop discards client frames and returns when the connection drops.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Progress subscriber dropped", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// broadcast queues data for every client; h.mu must be held.
func (h *Hub) broadcast(data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
			if h.metrics != nil {
				h.metrics.websocketMessages.Inc()
			}
		default:
		}
	}
}

func encode(kind string, payload any) []byte {
	data, err := json.Marshal(Message{Type: kind, Payload: payload})
	if err != nil {
		// Payloads are plain structs of finite numbers.
		slog.Error("Failed to encode progress message", "type", kind, "error", err)
		return []byte(`{"type":"` + kind + `"}`)
	}
	return data
}

// OnStart implements eval.Observer.
func (h *Hub) OnStart(dataset string, total int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Progress{Dataset: dataset, Total: total}
	h.broadcast(encode(MessageStart, h.state))
}

// OnImage implements eval.Observer.
func (h *Hub) OnImage(ev eval.ImageEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Done = ev.Index + 1
	h.state.Detections += ev.Detections
	h.broadcast(encode(MessageImage, ev))
}

// OnThreshold implements eval.Observer.
func (h *Hub) OnThreshold(class int, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(encode(MessageThreshold, ThresholdUpdate{Class: class, Threshold: value}))
}

// OnComplete implements eval.Observer.
func (h *Hub) OnComplete(s eval.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Finished = true
	h.broadcast(encode(MessageComplete, s))
}
