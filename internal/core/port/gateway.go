package port

import (
	"context"
	"errors"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/protocol"
)

// ErrUnknownConnection is returned when the target connection is gone.
var ErrUnknownConnection = errors.New("unknown connection")

// RealTimeGateway delivers relay output to individual connections.
type RealTimeGateway interface {
	Send(ctx context.Context, connID domain.ConnID, msg protocol.Message) error
}
