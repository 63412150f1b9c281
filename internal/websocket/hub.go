// Package websocket implements a Hub for pushing live leaderboard updates.
// WebSockets are persistent two-way connections: once a rider opens one for a group
// session, the server pushes the new standings the moment anyone in the session syncs
// their equipment, instead of the client polling the leaderboard endpoint.
package websocket

import (
	"context"
	"sync"
)

// sendBuffer is how many undelivered messages a client may queue before it is
// considered too slow and dropped.
const sendBuffer = 16

// Client represents a single connected WebSocket client.
type Client struct {
	SessionID string      // Which group session this client is watching
	Send      chan []byte // Outgoing messages; the Hub writes here, the connection goroutine drains it
}

// NewClient returns a Client for sessionID with a buffered Send channel.
func NewClient(sessionID string) *Client {
	return &Client{SessionID: sessionID, Send: make(chan []byte, sendBuffer)}
}

// Message is a unit of data for every client watching one session.
type Message struct {
	SessionID string
	Data      []byte // Typically a JSON leaderboard snapshot
}

// Hub manages all active WebSocket connections, grouped by session ID.
// Run owns the clients map: registration, removal and fan-out all happen on
// its goroutine, and the mutex only guards reads from Count.
type Hub struct {
	// sessionID -> set of clients. map[*Client]bool is the usual Go set idiom.
	clients map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // Closed when Run returns

	mu sync.RWMutex
}

// NewHub creates a Hub. The broadcast channel is buffered so a sync request never waits
// on the hub; register and unregister are unbuffered and complete synchronously.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the Hub's event loop. Start it with "go hub.Run(ctx)". When ctx is cancelled
// it closes every client's Send channel, which ends their connection goroutines.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for sessionID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, sessionID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]bool)
			}
			h.clients[client.SessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			for client := range h.clients[msg.SessionID] {
				select {
				case client.Send <- msg.Data:
				default:
					// Too slow: drop it here rather than sending to h.unregister,
					// which only this goroutine reads.
					h.remove(client)
				}
			}
		}
	}
}

// remove deletes client and closes its Send channel. Safe to call for a client
// that was already removed.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.SessionID)
	}
}

// BroadcastToSession queues data for every client watching sessionID. It never blocks:
// if the queue is full or the hub has stopped, the update is dropped and false is returned.
func (h *Hub) BroadcastToSession(sessionID string, data []byte) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- &Message{SessionID: sessionID, Data: data}:
		return true
	default:
		return false
	}
}

// Register adds a client so it starts receiving broadcasts for its session.
// It returns false if the hub has already stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client when its connection closes.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Count returns how many clients are watching sessionID.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}
