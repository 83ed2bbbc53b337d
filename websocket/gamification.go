package websocket

import (
	"log"
	"sync"

	"tareahub/models"

	"github.com/gorilla/websocket"
)

// Client represents one connection listening for gamification updates
type Client struct {
	conn    *websocket.Conn
	userID  string
	writeMu sync.Mutex
}

// safeWriteJSON serializes writes to the underlying connection
func (c *Client) safeWriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub fans gamification events out to the connected clients of the affected
// user. It is constructed once and shared; it implements services.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	log.Printf("Gamification client registered. Total clients: %d", len(h.clients))
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.conn.Close()
	log.Printf("Gamification client unregistered. Total clients: %d", len(h.clients))
}

// Notify pushes an event to every connection belonging to the event's user
func (h *Hub) Notify(event models.GamificationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.userID != event.UserID {
			continue
		}
		if err := client.safeWriteJSON(event); err != nil {
			log.Printf("Error pushing gamification event to client: %v", err)
			go h.unregister(client)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
