package service

import (
	"context"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/rs/zerolog/log"
)

// RoomService backs the room-creation REST boundary.
type RoomService struct {
	rooms port.RoomRepository
}

func NewRoomService(rooms port.RoomRepository) *RoomService {
	return &RoomService{rooms: rooms}
}

func (s *RoomService) CreateRoom(ctx context.Context, hostID domain.UserID, hostName string) (domain.Room, error) {
	room, err := s.rooms.Create(ctx, hostID, hostName)
	if err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("room_id", room.ID.String()).Str("host_id", hostID.String()).Msg("Room created")
	return room, nil
}

// Room resolves a caller-supplied id; malformed ids are reported as missing.
func (s *RoomService) Room(ctx context.Context, id string) (domain.Room, error) {
	roomID, err := domain.ParseRoomID(id)
	if err != nil {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return s.rooms.Get(ctx, roomID)
}
