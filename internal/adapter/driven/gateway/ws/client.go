package ws

import (
	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/protocol"
)

// Client is one transport connection as seen by the hub.
type Client interface {
	ID() domain.ConnID
	// Enqueue hands msg to the connection writer without blocking and
	// reports false when the client is closed or its buffer is full.
	Enqueue(msg protocol.Message) bool
	Close() error
}
