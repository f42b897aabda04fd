// Package hub provides a thread-safe websocket broadcast hub using
// the channel-based fan-out pattern. The preview server uses one hub
// for binary JPEG frames and one for JSON status updates.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/openthermal/go-senxor/internal/log"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name string

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Guards clients. Writers (register, unregister, slow-client
	// drops, shutdown) take the full lock; ClientCount and the
	// broadcast fan-out read under RLock.
	mu sync.RWMutex
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop. Call it in a goroutine. Canceling
// the context closes every client and returns.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Info("preview client connected", "hub", h.name, "clients", count)

		case client := <-h.unregister:
			count := h.dropClients([]*Client{client})
			log.Info("preview client disconnected", "hub", h.name, "clients", count)

		case message := <-h.broadcast:
			// Fan out under the read lock only; mutating the client
			// set here would race ClientCount's concurrent RLock.
			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, they can't keep up
					// with the frame rate. Drop them below.
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.dropClients(slow)
				log.Warn("dropped slow preview clients", "hub", h.name, "count", len(slow))
			}
		}
	}
}

// dropClients removes clients under the write lock and returns the
// remaining count. Safe against a client being both dropped as slow
// and unregistered by its own pump.
func (h *Hub) dropClients(clients []*Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range clients {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
	}
	return len(h.clients)
}

// Broadcast sends a message to all connected clients. Never blocks;
// frames are dropped when the hub is saturated.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn("broadcast channel full, dropping frame", "hub", h.name)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data (JPEG preview frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
