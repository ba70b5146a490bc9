package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/helpdesk-chat-relay/modules/presence"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// DefaultQueueSize is the per-client outbound frame buffer.
const DefaultQueueSize = 256

var (
	ErrClientNotFound = errors.New("client not found")
	ErrQueueFull      = errors.New("client send queue is full")
)

// Conn is the subset of a WebSocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Frame is the JSON envelope of every outbound message.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client represents a connected WebSocket client.
type Client struct {
	ID   presence.ConnID
	Conn Conn

	send chan []byte
	done chan struct{}
}

// Done is closed once the client's writer has flushed and exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Hub owns the live client connections and fans frames out to them. Each
// client has a single writer goroutine, so a connection is never written
// concurrently.
type Hub struct {
	clients   map[presence.ConnID]*Client
	queueSize int
	logger    types.Logger
	done      chan struct{}
	mu        sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		clients:   make(map[presence.ConnID]*Client),
		queueSize: queueSize,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.logger.Info("Hub shutting down", "clients", h.ClientCount())
	h.closeAllClients()
	close(h.done)
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// closeAllClients closes all connected client connections.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
		_ = client.Conn.Close()
	}
	h.clients = make(map[presence.ConnID]*Client)
}

// Register adds a connection to the hub and starts its writer.
func (h *Hub) Register(id presence.ConnID, conn Conn) *Client {
	client := &Client{
		ID:   id,
		Conn: conn,
		send: make(chan []byte, h.queueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		close(old.send)
	}
	h.clients[id] = client
	h.mu.Unlock()

	go h.writeLoop(client)
	h.logger.Debug("Client registered", "conn", id)
	return client
}

// Unregister removes a connection. Frames already queued are still written.
// The connection itself is left to its owner to close.
func (h *Hub) Unregister(id presence.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(client.send)
		h.logger.Debug("Client unregistered", "conn", id)
	}
}

// SendTo queues an event for one connection.
func (h *Hub) SendTo(id presence.ConnID, event string, payload any) error {
	data, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	return h.enqueue(client, data)
}

// Broadcast queues an event for every connection.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast frame", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		_ = h.enqueue(client, data)
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(client *Client, data []byte) error {
	select {
	case client.send <- data:
		return nil
	default:
		h.logger.Warn("Dropping frame for slow client", "conn", client.ID)
		return ErrQueueFull
	}
}

func (h *Hub) writeLoop(client *Client) {
	defer close(client.done)
	for data := range client.send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("Failed to write to client", "conn", client.ID, "error", err)
		}
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(Frame{Type: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}
	return data, nil
}
