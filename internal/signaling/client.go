package signaling

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from a peer - enough for SDP + a
	// generous ICE candidate batch.
	maxMessageSize = 64 * 1024
)

// Client is one accepted websocket connection: a signaling-side endpoint,
// identified by an opaque UUID, optionally a member of one Room.
type Client struct {
	ID string

	Hub    *Hub
	Conn   *websocket.Conn
	RoomID string

	// Send is the buffered channel WritePump drains; Hub logic never
	// writes to the socket directly.
	Send chan *Message
}

// NewClient wraps an accepted websocket connection. The caller is
// responsible for registering it with the Hub and starting its pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan *Message, 256),
	}
}

// ReadPump reads frames from the websocket and forwards them to the Hub's
// Broadcast channel. Exactly one goroutine reads from a given connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("signaling: read error from %s: %v", c.ID, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send <- newError(ErrInvalidJSON, "malformed JSON")
			continue
		}
		msg.client = c
		c.Hub.Broadcast <- &msg
	}
}

// WritePump drains Send onto the websocket and keeps the connection alive
// with periodic pings. Exactly one goroutine writes to a given connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				log.Printf("signaling: write error to %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
