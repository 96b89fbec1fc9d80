package domain

import (
	"github.com/google/uuid"
)

// RoomID is allocated by the room-creation API.
type RoomID uuid.UUID

// ConnID identifies one live relay connection.
type ConnID uuid.UUID

// UserID is supplied by the caller and only unique within its session.
type UserID string

type MessageID uuid.UUID

func NewRoomID() RoomID {
	return RoomID(uuid.New())
}

func ParseRoomID(s string) (RoomID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RoomID{}, err
	}
	return RoomID(id), nil
}

func (id RoomID) String() string {
	return uuid.UUID(id).String()
}

func NewConnID() ConnID {
	return ConnID(uuid.New())
}

func ParseConnID(s string) (ConnID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ConnID{}, err
	}
	return ConnID(id), nil
}

func (id ConnID) String() string {
	return uuid.UUID(id).String()
}

func (id UserID) String() string {
	return string(id)
}

func NewMessageID() MessageID {
	return MessageID(uuid.New())
}

func (id MessageID) String() string {
	return uuid.UUID(id).String()
}
