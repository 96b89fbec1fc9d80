package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
)

type roomRecord struct {
	room domain.Room
	// joined stays false until the first participant arrives so that a
	// freshly created room is not collected before anyone uses it.
	joined bool
}

// RoomRepository is the in-memory room registry.
type RoomRepository struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomRecord
}

func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		rooms: make(map[domain.RoomID]*roomRecord),
	}
}

func (r *RoomRepository) Create(ctx context.Context, hostID domain.UserID, hostName string) (domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.NewRoomID()
	for r.rooms[id] != nil {
		id = domain.NewRoomID()
	}

	room := domain.Room{
		ID:        id,
		HostID:    hostID,
		HostName:  hostName,
		CreatedAt: time.Now(),
		Active:    true,
	}
	r.rooms[id] = &roomRecord{room: room}
	return snapshot(room), nil
}

func (r *RoomRepository) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return snapshot(rec.room), nil
}

func (r *RoomRepository) AddParticipant(ctx context.Context, id domain.RoomID, p domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	rec.room.Participants = append(rec.room.Participants, p)
	rec.joined = true
	return nil
}

func (r *RoomRepository) RemoveParticipant(ctx context.Context, id domain.RoomID, connID domain.ConnID) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[id]
	if !ok {
		return false, false, domain.ErrRoomNotFound
	}

	removed := false
	kept := rec.room.Participants[:0]
	for _, p := range rec.room.Participants {
		if p.ConnID == connID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	rec.room.Participants = kept

	if rec.joined && len(kept) == 0 {
		delete(r.rooms, id)
		return removed, true, nil
	}
	return removed, false, nil
}

func (r *RoomRepository) SetMediaEnabled(ctx context.Context, id domain.RoomID, connID domain.ConnID, kind domain.MediaKind, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	for i := range rec.room.Participants {
		p := &rec.room.Participants[i]
		if p.ConnID != connID {
			continue
		}
		switch kind {
		case domain.MediaAudio:
			p.AudioEnabled = enabled
		case domain.MediaVideo:
			p.VideoEnabled = enabled
		}
		return nil
	}
	return domain.ErrParticipantAbsent
}

// Len reports how many rooms are registered.
func (r *RoomRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func snapshot(room domain.Room) domain.Room {
	room.Participants = append([]domain.Participant(nil), room.Participants...)
	return room
}
