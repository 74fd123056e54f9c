package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a connected WebSocket client
type Client struct {
	conn     *websocket.Conn
	playerID int
	send     chan []byte
}

// Hub maintains the set of active clients keyed by player id
type Hub struct {
	clients map[int]*Client
	mu      sync.RWMutex
}

// EventHub is the process-wide hub instance
var EventHub = NewHub()

func NewHub() *Hub {
	return &Hub{clients: make(map[int]*Client)}
}

// Register attaches a client, replacing any previous connection for the
// same player
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if prev, exists := h.clients[c.playerID]; exists {
		close(prev.send)
	}
	h.clients[c.playerID] = c
	h.mu.Unlock()
	log.Printf("[WS] player %d connected", c.playerID)
}

// Unregister detaches a client if it is still the current one for its player
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if cur, exists := h.clients[c.playerID]; exists && cur == c {
		delete(h.clients, c.playerID)
		close(c.send)
	}
	h.mu.Unlock()
	log.Printf("[WS] player %d disconnected", c.playerID)
}

// SendToPlayer sends a message to a specific player
func (h *Hub) SendToPlayer(playerID int, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[playerID]; exists {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] SendToPlayer dropped message for player %d (buffer full)", playerID)
		}
	}
}

// Broadcast sends a message to every connected player
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for playerID, client := range h.clients {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Broadcast dropped message for player %d (buffer full)", playerID)
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed, connection is being replaced or cleaned up.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for player %d: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for player %d: %v", c.playerID, err)
				return
			}
		}
	}
}

func (c *Client) sendError(message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
	select {
	case c.send <- data:
	default:
	}
}
