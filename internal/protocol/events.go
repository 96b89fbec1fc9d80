package protocol

import (
	"encoding/json"
	"time"
)

// Client to server events.
const (
	EventJoin         = "join"
	EventJoinRoom     = "join-room" // accepted alias
	EventLeaveRoom    = "leave-room"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventToggleAudio  = "toggle-audio"
	EventToggleVideo  = "toggle-video"
	EventChatMessage  = "chat-message"
)

// Server to client events. offer, answer, ice-candidate and chat-message
// keep their client-side names.
const (
	EventRoomUsers       = "room-users"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventUserAudioToggle = "user-audio-toggle"
	EventUserVideoToggle = "user-video-toggle"
	EventError           = "error"
)

// Error codes carried by EventError.
const (
	CodeRoomNotFound  = "room-not-found"
	CodeInvalidEvent  = "invalid-event"
	CodeAlreadyJoined = "already-joined"
)

const (
	KindAudio = "audio"
	KindVideo = "video"
)

type JoinRequest struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type DescriptionRequest struct {
	Target string          `json:"target"`
	SDP    json.RawMessage `json:"sdp"`
}

type CandidateRequest struct {
	Target    string          `json:"target"`
	Candidate json.RawMessage `json:"candidate"`
}

// ToggleRequest accepts the generic flag and the per-kind names older
// clients send.
type ToggleRequest struct {
	Enabled      *bool `json:"enabled,omitempty"`
	AudioEnabled *bool `json:"audioEnabled,omitempty"`
	VideoEnabled *bool `json:"videoEnabled,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ParticipantInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SocketID     string    `json:"socketId"`
	JoinedAt     time.Time `json:"joinedAt"`
	AudioEnabled bool      `json:"audioEnabled"`
	VideoEnabled bool      `json:"videoEnabled"`
}

// Presence is the payload of user-joined and user-left.
type Presence struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	SocketID string `json:"socketId"`
}

type RelayedDescription struct {
	SDP        json.RawMessage `json:"sdp"`
	Sender     string          `json:"sender"`
	SenderName string          `json:"senderName"`
}

type RelayedCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
	Sender    string          `json:"sender"`
}

type MediaToggle struct {
	UserID       string `json:"userId"`
	Enabled      bool   `json:"enabled"`
	AudioEnabled *bool  `json:"audioEnabled,omitempty"`
	VideoEnabled *bool  `json:"videoEnabled,omitempty"`
}

// NewMediaToggle fills the kind-specific field alongside Enabled.
func NewMediaToggle(userID, kind string, enabled bool) MediaToggle {
	t := MediaToggle{UserID: userID, Enabled: enabled}
	if kind == KindAudio {
		t.AudioEnabled = &enabled
	} else {
		t.VideoEnabled = &enabled
	}
	return t
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
