// Package call runs one participant's side of a multi-party call: it
// acquires local media, joins a room through the relay and keeps one peer
// connection per remote participant.
package call

import (
	"context"
	"sync"
	"time"

	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

const joinTimeout = 10 * time.Second

// Call describes one join attempt. A retry is a fresh Join on the same Call.
type Call struct {
	URL      string
	RoomID   string
	UserID   string
	UserName string

	Source   MediaSource
	Factory  PeerFactory
	Dial     Dialer
	Observer Observer
}

// Session is a joined call. Its resources are released together.
type Session struct {
	orch  *Orchestrator
	conn  Connection
	media LocalMedia

	hangup   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	err      error
}

// Join acquires media, connects to the relay and joins the room. Nothing is
// left open when it returns an error.
func (c *Call) Join(ctx context.Context) (*Session, error) {
	m, err := c.Source.Acquire(ctx)
	if err != nil {
		return nil, WrapError("acquire media", ErrMediaUnavailable, err.Error())
	}

	conn, err := c.Dial(ctx, c.URL)
	if err != nil {
		m.Close()
		return nil, WrapError("connect", ErrSignalingUnavailable, err.Error())
	}

	s := &Session{
		conn:   conn,
		media:  m,
		hangup: make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.orch = NewOrchestrator(c.Factory, m, conn, c.Observer)

	if err := s.join(ctx, c); err != nil {
		s.teardown()
		return nil, err
	}

	log.Info().Str("room_id", c.RoomID).Msg("Joined room")
	go s.loop()
	return s, nil
}

// join sends the join event and waits for the member list or an error.
func (s *Session) join(ctx context.Context, c *Call) error {
	err := s.conn.Emit(protocol.EventJoin, protocol.JoinRequest{
		RoomID:   c.RoomID,
		UserID:   c.UserID,
		UserName: c.UserName,
	})
	if err != nil {
		return WrapError("join", ErrSignalingDisconnected, err.Error())
	}

	timer := time.NewTimer(joinTimeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-s.conn.Incoming():
			if !ok {
				return s.disconnected("join")
			}
			if err := s.orch.Handle(msg); err != nil {
				return err
			}
			if msg.Event == protocol.EventRoomUsers {
				return nil
			}
		case <-timer.C:
			return WrapError("join", ErrSignalingDisconnected, "no answer from server")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case msg, ok := <-s.conn.Incoming():
			if !ok {
				select {
				case <-s.hangup:
				default:
					s.err = s.disconnected("signaling")
				}
				s.teardown()
				return
			}
			if err := s.orch.Handle(msg); err != nil {
				s.err = err
				s.teardown()
				return
			}
		case <-s.hangup:
			s.teardown()
			return
		}
	}
}

func (s *Session) disconnected(op string) error {
	if err := s.conn.Err(); err != nil {
		return WrapError(op, ErrSignalingDisconnected, err.Error())
	}
	return NewError(op, ErrSignalingDisconnected)
}

// Orchestrator exposes the peer links, tiles, chat and local toggles.
func (s *Session) Orchestrator() *Orchestrator {
	return s.orch
}

// Wait blocks until the session ends and returns why. A Hangup ends it with
// a nil error.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Hangup leaves the room and releases everything.
func (s *Session) Hangup() {
	s.stopOnce.Do(func() {
		if err := s.conn.Emit(protocol.EventLeaveRoom, nil); err != nil {
			log.Debug().Err(err).Msg("Failed to send leave")
		}
		close(s.hangup)
	})
	<-s.done
}

// teardown disposes every link, stops media and closes the connection.
func (s *Session) teardown() {
	s.orch.Close()
	if err := s.media.Close(); err != nil {
		log.Debug().Err(err).Msg("Error releasing media")
	}
	if err := s.conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing signaling connection")
	}
}
