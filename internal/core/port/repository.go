package port

import (
	"context"

	"github.com/Wyydra/huddle/internal/core/domain"
)

// RoomRepository is the room registry.
type RoomRepository interface {
	Create(ctx context.Context, hostID domain.UserID, hostName string) (domain.Room, error)
	Get(ctx context.Context, id domain.RoomID) (domain.Room, error)
	AddParticipant(ctx context.Context, id domain.RoomID, p domain.Participant) error
	// RemoveParticipant deletes the room once its last participant is gone
	// and reports whether that happened.
	RemoveParticipant(ctx context.Context, id domain.RoomID, connID domain.ConnID) (removed bool, roomDeleted bool, err error)
	SetMediaEnabled(ctx context.Context, id domain.RoomID, connID domain.ConnID, kind domain.MediaKind, enabled bool) error
}

// SessionRepository is the connection to session directory.
type SessionRepository interface {
	Put(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, connID domain.ConnID) (domain.Session, bool, error)
	Delete(ctx context.Context, connID domain.ConnID) error
}
