package rendezvous

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// reconnectBackoff is the fixed delay ladder from the reconnect policy:
// 1s, 2s, 4s, 8s, 16s, capped at the final value.
var reconnectBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Client owns the websocket connection to the signaling server, including
// unattended reconnection with backoff. Outbound messages queued before (or
// during) a disconnect are preserved and flushed once a new connection
// opens, because they live in the outgoing channel's buffer rather than in
// any per-connection state.
type Client struct {
	serverURL string

	mu   sync.Mutex
	conn *websocket.Conn

	incoming chan *Message
	outgoing chan *Message

	closed atomic.Bool
	ready  chan struct{} // closed once the first connection succeeds
}

// NewClient creates a signaling client bound to serverURL. Call Connect to
// establish the first connection.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Message, 32),
		outgoing:  make(chan *Message, 256),
		ready:     make(chan struct{}),
	}
}

// Connect performs the first dial synchronously, then hands subsequent
// lifecycle (ping/pong, reconnect-on-drop) to background goroutines.
func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	close(c.ready)

	go c.supervise(conn)
	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

// supervise runs one connection's read/write pumps to completion, then, if
// the client hasn't been explicitly closed, reconnects with backoff. It is
// the only goroutine that sends on incoming (via readPump), so it closes
// incoming on the way out and Close never has to race a sender.
func (c *Client) supervise(conn *websocket.Conn) {
	defer close(c.incoming)

	attempt := 0
	for {
		done := make(chan struct{})
		go c.writePump(conn, done)
		c.readPump(conn, done) // blocks until the connection dies

		if c.closed.Load() {
			return
		}

		delay := reconnectBackoff[min(attempt, len(reconnectBackoff)-1)]
		log.Printf("rendezvous: connection lost, reconnecting in %s", delay)
		time.Sleep(delay)
		if c.closed.Load() {
			return
		}
		attempt++

		newConn, err := c.dial()
		if err != nil {
			log.Printf("rendezvous: reconnect failed: %v", err)
			continue
		}

		attempt = 0 // reset the backoff counter on successful open
		c.mu.Lock()
		c.conn = newConn
		c.mu.Unlock()
		conn = newConn
	}
}

func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		c.incoming <- &msg
	}
}

func (c *Client) writePump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				// Put it back so the next connection flushes it, then exit.
				select {
				case c.outgoing <- msg:
				default:
				}
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// SendMessage enqueues a message for delivery. Safe to call from any
// goroutine, including while a reconnect is in progress.
func (c *Client) SendMessage(msg *Message) {
	if c.closed.Load() {
		return
	}
	c.outgoing <- msg
}

// Incoming returns the channel of messages received from the server.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close tears down the client. Idempotent. Closing the connection makes
// the read pump exit, which lets supervise observe the closed flag and
// shut the incoming channel down cleanly.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, []byte{})
		conn.Close()
	}
}
