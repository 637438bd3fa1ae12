package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// Client represents a WebSocket client connection
type Client struct {
	ID     string
	UserID uuid.UUID // uuid.Nil for anonymous sockets
	Conn   *websocket.Conn
	Send   chan []byte

	channels map[string]bool
	mu       sync.RWMutex // protects channels and conn writes
}

func NewClient(conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		channels: make(map[string]bool),
	}
}

func (c *Client) subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

// Channels returns a copy of all subscribed channels
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// WriteLoop drains Send to the socket and pings on an interval.
// It returns when Send is closed by the hub or ctx is done.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case msg, ok := <-c.Send:
			if !ok {
				c.close()
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Client) close() {
	c.mu.Lock()
	_ = c.Conn.Close()
	c.mu.Unlock()
}

// SendMessage queues a frame without blocking; frames are dropped when the buffer is full.
func (c *Client) SendMessage(msg []byte) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}
