package domain

import (
	"errors"
	"time"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrAlreadyInRoom     = errors.New("connection already joined this room")
	ErrParticipantAbsent = errors.New("participant not in room")
)

// MediaKind selects which per-participant flag a toggle applies to.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

type Participant struct {
	UserID       UserID
	Name         string
	ConnID       ConnID
	JoinedAt     time.Time
	AudioEnabled bool
	VideoEnabled bool
}

func NewParticipant(userID UserID, name string, connID ConnID, now time.Time) Participant {
	return Participant{
		UserID:       userID,
		Name:         name,
		ConnID:       connID,
		JoinedAt:     now,
		AudioEnabled: true,
		VideoEnabled: true,
	}
}

// Room is a value snapshot; the registry owns the live record.
type Room struct {
	ID           RoomID
	HostID       UserID
	HostName     string
	Participants []Participant
	CreatedAt    time.Time
	Active       bool
}

// Others returns every participant except the one on connID.
func (r Room) Others(connID ConnID) []Participant {
	out := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.ConnID != connID {
			out = append(out, p)
		}
	}
	return out
}

func (r Room) Participant(connID ConnID) (Participant, bool) {
	for _, p := range r.Participants {
		if p.ConnID == connID {
			return p, true
		}
	}
	return Participant{}, false
}
