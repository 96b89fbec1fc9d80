// Package signaling is the client side of the relay websocket.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned by Send once the connection is gone.
var ErrClosed = errors.New("signaling connection closed")

// Client manages the websocket connection to the relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan protocol.Message
	outgoing chan protocol.Message
	done     chan struct{} // closed by Close
	closed   chan struct{} // closed by Close or a transport failure

	closeOnce sync.Once
	shutOnce  sync.Once
	mu        sync.Mutex
	err       error
}

// Dial connects to the relay websocket at url.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan protocol.Message, 16),
		outgoing: make(chan protocol.Message, 16),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
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
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(err)
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
				c.fail(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}

		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever was queued before Close.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// fail records the first transport error unless the client was closed locally.
func (c *Client) fail(err error) {
	defer c.shutdown()
	select {
	case <-c.done:
		return
	default:
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *Client) shutdown() {
	c.shutOnce.Do(func() {
		close(c.closed)
	})
}

// Send queues msg for the writer. It never blocks past the end of the
// connection.
func (c *Client) Send(msg protocol.Message) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// Emit encodes data under event and sends it.
func (c *Client) Emit(event string, data any) error {
	msg, err := protocol.NewMessage(event, data)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Incoming is closed when the connection ends; Err then reports why.
func (c *Client) Incoming() <-chan protocol.Message {
	return c.incoming
}

// Err returns the transport error that ended the connection, or nil when it
// is still open or was closed with Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.shutdown()
	})
	return nil
}
