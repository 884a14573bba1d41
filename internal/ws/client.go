package ws

import (
	"errors"
	"sync"

	"log/slog"

	"github.com/gorilla/websocket"
)

var errClientClosed = errors.New("websocket client closed")

// Client wraps a websocket connection behind the Subscriber interface.
// A gorilla connection permits at most one concurrent writer, and sends
// arrive from both the hub loop and per-connection reply paths, so every
// write goes through the mutex.
type Client struct {
	log *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewClient constructs a client wrapper around an upgraded connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send writes a text message to the connection. A write failure closes the
// connection and reports the error so the hub can drop the subscriber.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", "error", err)
		c.closed = true
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
