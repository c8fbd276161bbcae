// Package feed streams replicated collection events to websocket observers.
package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/itemforge/internal/replication"
)

// Defaults used when the config leaves a value at zero.
const (
	DefaultSendQueueSize = 64
	DefaultWriteTimeout  = 5 * time.Second
)

// Hub fans collection events out to connected websocket clients. It
// implements replication.Sink.
type Hub struct {
	queueSize    int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn      *websocket.Conn
	inventory string
	send      chan []byte
}

// NewHub creates a hub. Each client gets a send queue of queueSize frames;
// a client whose queue is full is disconnected.
func NewHub(queueSize int, writeTimeout time.Duration) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Hub{
		queueSize:    queueSize,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

var _ replication.Sink = (*Hub)(nil)

func (h *Hub) OnAdded(e replication.Entry)   { h.publish(entryFrame(KindAdded, e)) }
func (h *Hub) OnChanged(e replication.Entry) { h.publish(entryFrame(KindChanged, e)) }
func (h *Hub) OnRemoved(e replication.Entry) { h.publish(entryFrame(KindRemoved, e)) }

func (h *Hub) OnPropertyChanged(e replication.Entry, change replication.PropertyChange) {
	h.publish(Frame{
		Kind:      KindProperty,
		Inventory: e.Owner,
		Item:      &WireItem{ID: e.Item.ID, Definition: e.Item.Definition},
		Tag:       change.Tag,
		ChangeID:  change.ChangeID,
		Property:  change.Property,
		Old:       wireValue(change.Old),
		New:       wireValue(change.New),
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams frames until the client goes
// away. ?inventory=<id> limits the stream to one inventory.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn:      conn,
		inventory: r.URL.Query().Get("inventory"),
		send:      make(chan []byte, h.queueSize),
	}
	if !h.register(c) {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = conn.Close()
		return
	}
	slog.Debug("feed client connected", "remote", r.RemoteAddr, "inventory", c.inventory)

	go h.writePump(c)

	// Клиент ничего не присылает; чтение нужно только чтобы заметить закрытие.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (h *Hub) publish(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("marshalling feed frame", "kind", f.Kind, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.inventory != "" && c.inventory != f.Inventory {
			continue
		}
		select {
		case c.send <- data:
		default:
			slog.Warn("dropping slow feed client", "inventory", c.inventory)
			h.dropLocked(c)
		}
	}
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("feed write failed", "inventory", c.inventory, "error", err)
			h.unregister(c)
			return
		}
	}
}
