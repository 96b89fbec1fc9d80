package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// Inbound is the closed set of events a client may send to the relay.
type Inbound interface {
	isInbound()
}

type Join struct {
	RoomID   string
	UserID   string
	UserName string
}

type Leave struct{}

// Offer and Answer carry the session description untouched.
type Offer struct {
	Target string
	SDP    []byte
}

type Answer struct {
	Target string
	SDP    []byte
}

type ICECandidate struct {
	Target    string
	Candidate []byte
}

type Toggle struct {
	Kind    string
	Enabled bool
}

type Chat struct {
	Message string
}

func (Join) isInbound()         {}
func (Leave) isInbound()        {}
func (Offer) isInbound()        {}
func (Answer) isInbound()       {}
func (ICECandidate) isInbound() {}
func (Toggle) isInbound()       {}
func (Chat) isInbound()         {}

// DecodeInbound validates an envelope received from a client and returns
// its typed event.
func DecodeInbound(m Message) (Inbound, error) {
	switch m.Event {
	case EventJoin, EventJoinRoom:
		var req JoinRequest
		if err := m.Decode(&req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.RoomID) == "" {
			return nil, invalid(m.Event, "roomId is required")
		}
		if strings.TrimSpace(req.UserID) == "" {
			return nil, invalid(m.Event, "userId is required")
		}
		return Join{RoomID: req.RoomID, UserID: req.UserID, UserName: req.UserName}, nil

	case EventLeaveRoom:
		return Leave{}, nil

	case EventOffer, EventAnswer:
		var req DescriptionRequest
		if err := m.Decode(&req); err != nil {
			return nil, err
		}
		if req.Target == "" {
			return nil, invalid(m.Event, "target is required")
		}
		if isEmptyJSON(req.SDP) {
			return nil, invalid(m.Event, "sdp is required")
		}
		if m.Event == EventOffer {
			return Offer{Target: req.Target, SDP: req.SDP}, nil
		}
		return Answer{Target: req.Target, SDP: req.SDP}, nil

	case EventICECandidate:
		var req CandidateRequest
		if err := m.Decode(&req); err != nil {
			return nil, err
		}
		if req.Target == "" {
			return nil, invalid(m.Event, "target is required")
		}
		if isEmptyJSON(req.Candidate) {
			return nil, invalid(m.Event, "candidate is required")
		}
		return ICECandidate{Target: req.Target, Candidate: req.Candidate}, nil

	case EventToggleAudio, EventToggleVideo:
		var req ToggleRequest
		if err := m.Decode(&req); err != nil {
			return nil, err
		}
		kind, flag := KindAudio, req.AudioEnabled
		if m.Event == EventToggleVideo {
			kind, flag = KindVideo, req.VideoEnabled
		}
		if req.Enabled != nil {
			flag = req.Enabled
		}
		if flag == nil {
			return nil, invalid(m.Event, "enabled is required")
		}
		return Toggle{Kind: kind, Enabled: *flag}, nil

	case EventChatMessage:
		var req ChatRequest
		if err := m.Decode(&req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Message) == "" {
			return nil, invalid(m.Event, "message is required")
		}
		return Chat{Message: req.Message}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, m.Event)
	}
}

func invalid(event, reason string) error {
	return fmt.Errorf("%s: %w: %s", event, ErrInvalidPayload, reason)
}

func isEmptyJSON(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
