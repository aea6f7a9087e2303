package ws

import (
	"sync"

	"golang.org/x/net/websocket"
)

// sendBuffer is how many status events a slow socket may fall behind
// before it is dropped.
const sendBuffer = 64

// Client is one open socket. A client that cannot keep up is closed rather
// than allowed to stall the notifier.
type Client struct {
	conn *websocket.Conn
	who  subscriber
	out  chan []byte

	mu       sync.Mutex
	closed   bool
	channels map[string]struct{}
}

func NewClient(conn *websocket.Conn, who subscriber) *Client {
	return &Client{
		conn:     conn,
		who:      who,
		out:      make(chan []byte, sendBuffer),
		channels: map[string]struct{}{},
	}
}

func (c *Client) send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.out <- payload:
	default:
		c.closeLocked()
	}
}

// close is safe to call from both the reader and a publishing goroutine.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *Client) listChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}
