package signal

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is the WebSocket Transport used by students and teachers to reach
// the relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan Message
	outgoing chan Message
	done     chan struct{}

	mu           sync.Mutex
	onDisconnect func()
	closed       bool
	connected    bool
}

// Dial connects to the relay at the given WebSocket URL.
func Dial(serverURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverURL, err)
	}

	c := &Client{
		conn:      conn,
		incoming:  make(chan Message, 100),
		outgoing:  make(chan Message, 100),
		done:      make(chan struct{}),
		connected: true,
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)

		c.mu.Lock()
		c.connected = false
		handler := c.onDisconnect
		wasClosed := c.closed
		c.mu.Unlock()

		if handler != nil && !wasClosed {
			handler()
		}
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("signal client: read error: %v", err)
			}
			return
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("signal client: write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues a message for the relay.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	closed := c.closed
	connected := c.connected
	c.mu.Unlock()

	if closed || !connected {
		return fmt.Errorf("transport closed")
	}

	select {
	case c.outgoing <- msg:
		return nil
	default:
		return fmt.Errorf("send queue full")
	}
}

// Messages returns the channel of incoming messages.
func (c *Client) Messages() <-chan Message {
	return c.incoming
}

// Connected reports whether the transport is usable.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed
}

// SetDisconnectHandler sets the callback for a lost connection.
func (c *Client) SetDisconnectHandler(handler func()) {
	c.mu.Lock()
	c.onDisconnect = handler
	c.mu.Unlock()
}

// Close shuts down the transport.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)
	c.conn.Close()
}
