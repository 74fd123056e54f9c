package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

// inbound is the shape of client-to-server messages
type inbound struct {
	Type         string `json:"type"`
	SessionToken string `json:"session_token"`
}

// Serve runs the read loop for an upgraded connection. joinSession is called
// when the client announces it has joined a match session; a nil error marks
// the player connected on that session. Blocks until the connection drops.
func Serve(conn *websocket.Conn, playerID int, joinSession func(sessionToken string) error) {
	client := &Client{
		conn:     conn,
		playerID: playerID,
		send:     make(chan []byte, 64),
	}
	EventHub.Register(client)
	go client.writePump()

	defer func() {
		EventHub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] read error for player %d: %v", playerID, err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.sendError("invalid message")
			continue
		}

		switch msg.Type {
		case "join_session":
			if msg.SessionToken == "" {
				client.sendError("session_token required")
				continue
			}
			if err := joinSession(msg.SessionToken); err != nil {
				log.Printf("[WS] join_session failed for player %d: %v", playerID, err)
				client.sendError("could not join session")
				continue
			}
			ack, _ := json.Marshal(map[string]interface{}{
				"type":          "session_joined",
				"session_token": msg.SessionToken,
			})
			client.send <- ack

		case "ping":
			pong, _ := json.Marshal(map[string]interface{}{"type": "pong"})
			client.send <- pong

		default:
			client.sendError("unknown message type")
		}
	}
}
