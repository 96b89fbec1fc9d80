package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/huddle/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// SDP blobs with many candidates fit comfortably.
	maxMessageSize = 64 * 1024

	sendBufferSize = 64
)

// WSClient is one browser or CLI connection. Writes go through send and are
// performed only by writePump.
type WSClient struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan protocol.Message

	mu     sync.Mutex
	closed bool
}

var _ ws.Client = (*WSClient)(nil)

func newWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		id:   domain.NewConnID(),
		conn: conn,
		send: make(chan protocol.Message, sendBufferSize),
	}
}

func (c *WSClient) ID() domain.ConnID {
	return c.id
}

func (c *WSClient) Enqueue(msg protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the writer, which then sends a close frame. Safe to call twice.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(conn)

	l := log.With().Str("conn_id", client.id.String()).Logger()
	l.Info().Str("remote", r.RemoteAddr).Msg("New client connected")

	h.Hub.Register(client)
	go client.writePump(l)
	client.readPump(h.Hub, l)
}

func (c *WSClient) readPump(hub *ws.Hub, l zerolog.Logger) {
	defer func() {
		l.Info().Msg("Client disconnected")
		hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			l.Warn().Err(err).Msg("Dropping malformed frame")
			c.rejectFrame()
			continue
		}
		hub.Dispatch(c, msg)
	}
}

func (c *WSClient) rejectFrame() {
	msg, err := protocol.NewMessage(protocol.EventError, protocol.ErrorPayload{
		Code:    protocol.CodeInvalidEvent,
		Message: "Malformed message",
	})
	if err == nil {
		c.Enqueue(msg)
	}
}

func (c *WSClient) writePump(l zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				l.Debug().Err(err).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
