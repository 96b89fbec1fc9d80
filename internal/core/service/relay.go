package service

import (
	"context"
	"errors"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// RelayService routes signaling events between connections. It is not safe
// for concurrent use: the gateway calls it from a single dispatcher
// goroutine and every call completes its fan-out before returning.
type RelayService struct {
	rooms    port.RoomRepository
	sessions port.SessionRepository
	gateway  port.RealTimeGateway
	now      func() time.Time
}

func NewRelayService(rooms port.RoomRepository, sessions port.SessionRepository, gateway port.RealTimeGateway) *RelayService {
	return &RelayService{
		rooms:    rooms,
		sessions: sessions,
		gateway:  gateway,
		now:      time.Now,
	}
}

// HandleMessage validates one envelope from connID and routes it.
func (s *RelayService) HandleMessage(ctx context.Context, connID domain.ConnID, msg protocol.Message) {
	ev, err := protocol.DecodeInbound(msg)
	if err != nil {
		log.Warn().Err(err).Str("conn_id", connID.String()).Str("event", msg.Event).Msg("Rejected malformed event")
		s.sendError(ctx, connID, protocol.CodeInvalidEvent, err.Error())
		return
	}

	switch ev := ev.(type) {
	case protocol.Join:
		s.join(ctx, connID, ev)
	case protocol.Leave:
		s.Disconnect(ctx, connID)
	case protocol.Offer:
		s.forwardDescription(ctx, connID, protocol.EventOffer, ev.Target, ev.SDP)
	case protocol.Answer:
		s.forwardDescription(ctx, connID, protocol.EventAnswer, ev.Target, ev.SDP)
	case protocol.ICECandidate:
		s.forwardCandidate(ctx, connID, ev)
	case protocol.Toggle:
		s.toggle(ctx, connID, ev)
	case protocol.Chat:
		s.chat(ctx, connID, ev)
	}
}

// Disconnect removes the connection's session and participant entry. It is
// a no-op for connections that never joined.
func (s *RelayService) Disconnect(ctx context.Context, connID domain.ConnID) {
	sess, ok, err := s.sessions.Get(ctx, connID)
	if err != nil {
		log.Error().Err(err).Str("conn_id", connID.String()).Msg("Session lookup failed")
		return
	}
	if !ok {
		return
	}
	s.leave(ctx, sess)
}

func (s *RelayService) join(ctx context.Context, connID domain.ConnID, ev protocol.Join) {
	l := log.With().Str("conn_id", connID.String()).Str("room_id", ev.RoomID).Logger()

	roomID, err := domain.ParseRoomID(ev.RoomID)
	if err != nil {
		l.Info().Msg("Join refused: malformed room id")
		s.sendError(ctx, connID, protocol.CodeRoomNotFound, "Room not found")
		return
	}
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		l.Info().Err(err).Msg("Join refused")
		s.sendError(ctx, connID, protocol.CodeRoomNotFound, "Room not found")
		return
	}

	if prev, ok, _ := s.sessions.Get(ctx, connID); ok {
		if prev.RoomID == roomID {
			s.sendError(ctx, connID, protocol.CodeAlreadyJoined, domain.ErrAlreadyInRoom.Error())
			return
		}
		l.Info().Str("previous_room_id", prev.RoomID.String()).Msg("Leaving previous room before join")
		s.leave(ctx, prev)
	}

	p := domain.NewParticipant(domain.UserID(ev.UserID), ev.UserName, connID, s.now())
	if err := s.rooms.AddParticipant(ctx, roomID, p); err != nil {
		l.Error().Err(err).Msg("Failed to add participant")
		s.sendError(ctx, connID, protocol.CodeRoomNotFound, "Room not found")
		return
	}
	sess := domain.Session{ConnID: connID, UserID: p.UserID, Name: p.Name, RoomID: roomID}
	if err := s.sessions.Put(ctx, sess); err != nil {
		l.Error().Err(err).Msg("Failed to register session")
		return
	}

	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		l.Error().Err(err).Msg("Room vanished during join")
		return
	}
	others := room.Others(connID)

	users := make([]protocol.ParticipantInfo, 0, len(others))
	for _, o := range others {
		users = append(users, participantInfo(o))
	}
	s.send(ctx, connID, protocol.EventRoomUsers, users)
	s.fanOut(ctx, others, protocol.EventUserJoined, presence(p))

	l.Info().Str("user_id", ev.UserID).Int("count", len(room.Participants)).Msg("Participant joined room")
}

func (s *RelayService) leave(ctx context.Context, sess domain.Session) {
	l := log.With().Str("conn_id", sess.ConnID.String()).Str("room_id", sess.RoomID.String()).Logger()

	if err := s.sessions.Delete(ctx, sess.ConnID); err != nil {
		l.Error().Err(err).Msg("Failed to delete session")
	}

	_, deleted, err := s.rooms.RemoveParticipant(ctx, sess.RoomID, sess.ConnID)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			l.Error().Err(err).Msg("Failed to remove participant")
		}
		return
	}
	if deleted {
		l.Info().Msg("Room deleted: no participants")
		return
	}

	room, err := s.rooms.Get(ctx, sess.RoomID)
	if err != nil {
		return
	}
	s.fanOut(ctx, room.Participants, protocol.EventUserLeft, protocol.Presence{
		UserID:   sess.UserID.String(),
		UserName: sess.Name,
		SocketID: sess.ConnID.String(),
	})
	l.Info().Int("count", len(room.Participants)).Msg("Participant left room")
}

func (s *RelayService) forwardDescription(ctx context.Context, from domain.ConnID, event, target string, sdp []byte) {
	sess, _, _ := s.sessions.Get(ctx, from)
	s.forward(ctx, from, event, target, protocol.RelayedDescription{
		SDP:        sdp,
		Sender:     from.String(),
		SenderName: sess.Name,
	})
}

func (s *RelayService) forwardCandidate(ctx context.Context, from domain.ConnID, ev protocol.ICECandidate) {
	s.forward(ctx, from, protocol.EventICECandidate, ev.Target, protocol.RelayedCandidate{
		Candidate: ev.Candidate,
		Sender:    from.String(),
	})
}

// forward delivers to a single target. Vanished targets are dropped: the
// sender learns about them through user-left.
func (s *RelayService) forward(ctx context.Context, from domain.ConnID, event, target string, data any) {
	targetID, err := domain.ParseConnID(target)
	if err != nil {
		log.Debug().Str("conn_id", from.String()).Str("target", target).Str("event", event).Msg("Dropped forward to malformed target")
		return
	}
	msg, err := protocol.NewMessage(event, data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode forward")
		return
	}
	if err := s.gateway.Send(ctx, targetID, msg); err != nil {
		log.Debug().Err(err).Str("conn_id", from.String()).Str("target", target).Str("event", event).Msg("Dropped forward")
	}
}

func (s *RelayService) toggle(ctx context.Context, connID domain.ConnID, ev protocol.Toggle) {
	sess, ok, _ := s.sessions.Get(ctx, connID)
	if !ok {
		log.Debug().Str("conn_id", connID.String()).Msg("Ignored toggle outside a room")
		return
	}
	if err := s.rooms.SetMediaEnabled(ctx, sess.RoomID, connID, domain.MediaKind(ev.Kind), ev.Enabled); err != nil {
		log.Warn().Err(err).Str("conn_id", connID.String()).Msg("Failed to record media state")
	}
	room, err := s.rooms.Get(ctx, sess.RoomID)
	if err != nil {
		return
	}

	event := protocol.EventUserAudioToggle
	if ev.Kind == protocol.KindVideo {
		event = protocol.EventUserVideoToggle
	}
	s.fanOut(ctx, room.Others(connID), event, protocol.NewMediaToggle(sess.UserID.String(), ev.Kind, ev.Enabled))
}

func (s *RelayService) chat(ctx context.Context, connID domain.ConnID, ev protocol.Chat) {
	sess, ok, _ := s.sessions.Get(ctx, connID)
	if !ok {
		log.Debug().Str("conn_id", connID.String()).Msg("Ignored chat outside a room")
		return
	}
	msg, err := domain.NewChatMessage(sess, ev.Message, s.now())
	if err != nil {
		s.sendError(ctx, connID, protocol.CodeInvalidEvent, err.Error())
		return
	}
	room, err := s.rooms.Get(ctx, sess.RoomID)
	if err != nil {
		return
	}
	s.fanOut(ctx, room.Participants, protocol.EventChatMessage, protocol.ChatMessage{
		ID:        msg.ID.String(),
		Message:   msg.Content,
		Sender:    msg.SenderName,
		SenderID:  msg.SenderID.String(),
		Timestamp: msg.SentAt.UTC(),
	})
}

func (s *RelayService) fanOut(ctx context.Context, to []domain.Participant, event string, data any) {
	if len(to) == 0 {
		return
	}
	msg, err := protocol.NewMessage(event, data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode broadcast")
		return
	}
	for _, p := range to {
		if err := s.gateway.Send(ctx, p.ConnID, msg); err != nil {
			log.Debug().Err(err).Str("conn_id", p.ConnID.String()).Str("event", event).Msg("Broadcast delivery failed")
		}
	}
}

func (s *RelayService) send(ctx context.Context, connID domain.ConnID, event string, data any) {
	msg, err := protocol.NewMessage(event, data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode message")
		return
	}
	if err := s.gateway.Send(ctx, connID, msg); err != nil {
		log.Debug().Err(err).Str("conn_id", connID.String()).Str("event", event).Msg("Delivery failed")
	}
}

func (s *RelayService) sendError(ctx context.Context, connID domain.ConnID, code, message string) {
	s.send(ctx, connID, protocol.EventError, protocol.ErrorPayload{Code: code, Message: message})
}

func participantInfo(p domain.Participant) protocol.ParticipantInfo {
	return protocol.ParticipantInfo{
		ID:           p.UserID.String(),
		Name:         p.Name,
		SocketID:     p.ConnID.String(),
		JoinedAt:     p.JoinedAt.UTC(),
		AudioEnabled: p.AudioEnabled,
		VideoEnabled: p.VideoEnabled,
	}
}

func presence(p domain.Participant) protocol.Presence {
	return protocol.Presence{
		UserID:   p.UserID.String(),
		UserName: p.Name,
		SocketID: p.ConnID.String(),
	}
}
