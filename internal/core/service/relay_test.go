package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Wyydra/huddle/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/protocol"
)

type delivery struct {
	to  domain.ConnID
	msg protocol.Message
}

type recordingGateway struct {
	live map[domain.ConnID]bool
	log  []delivery
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{live: make(map[domain.ConnID]bool)}
}

func (g *recordingGateway) connect() domain.ConnID {
	id := domain.NewConnID()
	g.live[id] = true
	return id
}

func (g *recordingGateway) Send(ctx context.Context, connID domain.ConnID, msg protocol.Message) error {
	if !g.live[connID] {
		return port.ErrUnknownConnection
	}
	g.log = append(g.log, delivery{to: connID, msg: msg})
	return nil
}

func (g *recordingGateway) received(connID domain.ConnID) []protocol.Message {
	var out []protocol.Message
	for _, d := range g.log {
		if d.to == connID {
			out = append(out, d.msg)
		}
	}
	return out
}

func (g *recordingGateway) reset() {
	g.log = nil
}

type fixture struct {
	rooms    *memory.RoomRepository
	sessions *memory.SessionRepository
	gw       *recordingGateway
	relay    *RelayService
	ctx      context.Context
}

func newFixture() *fixture {
	rooms := memory.NewRoomRepository()
	sessions := memory.NewSessionRepository()
	gw := newRecordingGateway()
	return &fixture{
		rooms:    rooms,
		sessions: sessions,
		gw:       gw,
		relay:    NewRelayService(rooms, sessions, gw),
		ctx:      context.Background(),
	}
}

func (f *fixture) createRoom(t *testing.T) domain.RoomID {
	t.Helper()
	room, err := f.rooms.Create(f.ctx, "h1", "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room.ID
}

func (f *fixture) emit(t *testing.T, from domain.ConnID, event string, data any) {
	t.Helper()
	msg, err := protocol.NewMessage(event, data)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	f.relay.HandleMessage(f.ctx, from, msg)
}

func (f *fixture) join(t *testing.T, conn domain.ConnID, room domain.RoomID, userID, name string) {
	t.Helper()
	f.emit(t, conn, protocol.EventJoin, protocol.JoinRequest{RoomID: room.String(), UserID: userID, UserName: name})
}

func decode[T any](t *testing.T, m protocol.Message) T {
	t.Helper()
	var v T
	if err := m.Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", m.Event, err)
	}
	return v
}

func TestRelayJoinAnnouncesParticipants(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()

	f.join(t, a, room, "u1", "Alice")
	got := f.gw.received(a)
	if len(got) != 1 || got[0].Event != protocol.EventRoomUsers {
		t.Fatalf("expected room-users for A, got %+v", got)
	}
	if users := decode[[]protocol.ParticipantInfo](t, got[0]); len(users) != 0 {
		t.Errorf("expected empty room-users, got %+v", users)
	}
	if string(got[0].Data) != "[]" {
		t.Errorf("room-users must encode as an empty list, got %s", got[0].Data)
	}

	f.gw.reset()
	f.join(t, b, room, "u2", "Bob")

	toB := f.gw.received(b)
	if len(toB) != 1 || toB[0].Event != protocol.EventRoomUsers {
		t.Fatalf("expected room-users for B, got %+v", toB)
	}
	users := decode[[]protocol.ParticipantInfo](t, toB[0])
	if len(users) != 1 || users[0].ID != "u1" || users[0].Name != "Alice" || users[0].SocketID != a.String() {
		t.Errorf("unexpected room-users %+v", users)
	}
	if !users[0].AudioEnabled || !users[0].VideoEnabled {
		t.Errorf("media flags must default to enabled: %+v", users[0])
	}

	toA := f.gw.received(a)
	if len(toA) != 1 || toA[0].Event != protocol.EventUserJoined {
		t.Fatalf("expected user-joined for A, got %+v", toA)
	}
	joined := decode[protocol.Presence](t, toA[0])
	if joined != (protocol.Presence{UserID: "u2", UserName: "Bob", SocketID: b.String()}) {
		t.Errorf("unexpected user-joined %+v", joined)
	}
}

func TestRelayJoinUnknownRoom(t *testing.T) {
	f := newFixture()
	a, b := f.gw.connect(), f.gw.connect()
	room := f.createRoom(t)
	f.join(t, b, room, "u2", "Bob")
	f.gw.reset()

	for _, id := range []string{domain.NewRoomID().String(), "not-a-uuid"} {
		f.emit(t, a, protocol.EventJoin, protocol.JoinRequest{RoomID: id, UserID: "u1", UserName: "Alice"})
	}

	if got := f.gw.received(b); len(got) != 0 {
		t.Errorf("error leaked to other connections: %+v", got)
	}
	got := f.gw.received(a)
	if len(got) != 2 {
		t.Fatalf("expected two errors, got %+v", got)
	}
	for _, m := range got {
		if m.Event != protocol.EventError {
			t.Fatalf("expected error event, got %s", m.Event)
		}
		if p := decode[protocol.ErrorPayload](t, m); p.Code != protocol.CodeRoomNotFound || p.Message != "Room not found" {
			t.Errorf("unexpected error payload %+v", p)
		}
	}
	if _, ok, _ := f.sessions.Get(f.ctx, a); ok {
		t.Errorf("session registered for failed join")
	}
}

func TestRelayTargetedForward(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b, c := f.gw.connect(), f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")
	f.join(t, c, room, "u3", "Carol")
	f.gw.reset()

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	f.emit(t, a, protocol.EventOffer, protocol.DescriptionRequest{Target: b.String(), SDP: sdp})
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host","sdpMid":"0","sdpMLineIndex":0}`)
	f.emit(t, a, protocol.EventICECandidate, protocol.CandidateRequest{Target: b.String(), Candidate: candidate})
	f.emit(t, b, protocol.EventAnswer, protocol.DescriptionRequest{Target: a.String(), SDP: sdp})

	if got := f.gw.received(c); len(got) != 0 {
		t.Fatalf("third party received targeted messages: %+v", got)
	}

	toB := f.gw.received(b)
	if len(toB) != 2 || toB[0].Event != protocol.EventOffer || toB[1].Event != protocol.EventICECandidate {
		t.Fatalf("unexpected deliveries to B: %+v", toB)
	}
	offer := decode[protocol.RelayedDescription](t, toB[0])
	if string(offer.SDP) != string(sdp) || offer.Sender != a.String() || offer.SenderName != "Alice" {
		t.Errorf("unexpected offer %+v", offer)
	}
	ice := decode[protocol.RelayedCandidate](t, toB[1])
	if string(ice.Candidate) != string(candidate) || ice.Sender != a.String() {
		t.Errorf("unexpected candidate %+v", ice)
	}

	toA := f.gw.received(a)
	if len(toA) != 1 || toA[0].Event != protocol.EventAnswer {
		t.Fatalf("unexpected deliveries to A: %+v", toA)
	}
	answer := decode[protocol.RelayedDescription](t, toA[0])
	if answer.Sender != b.String() || answer.SenderName != "Bob" {
		t.Errorf("unexpected answer %+v", answer)
	}
}

func TestRelayDropsForwardToStaleTarget(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")
	delete(f.gw.live, b)
	f.relay.Disconnect(f.ctx, b)
	f.gw.reset()

	f.emit(t, a, protocol.EventOffer, protocol.DescriptionRequest{Target: b.String(), SDP: json.RawMessage(`{"type":"offer"}`)})
	f.emit(t, a, protocol.EventOffer, protocol.DescriptionRequest{Target: "garbage", SDP: json.RawMessage(`{"type":"offer"}`)})

	if len(f.gw.log) != 0 {
		t.Errorf("stale forward produced deliveries: %+v", f.gw.log)
	}
}

func TestRelayToggleSkipsSender(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b, c := f.gw.connect(), f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")
	f.join(t, c, room, "u3", "Carol")
	f.gw.reset()

	enabled := false
	f.emit(t, a, protocol.EventToggleVideo, protocol.ToggleRequest{Enabled: &enabled})

	if got := f.gw.received(a); len(got) != 0 {
		t.Fatalf("toggle echoed to sender: %+v", got)
	}
	for _, conn := range []domain.ConnID{b, c} {
		got := f.gw.received(conn)
		if len(got) != 1 || got[0].Event != protocol.EventUserVideoToggle {
			t.Fatalf("expected exactly one user-video-toggle, got %+v", got)
		}
		toggle := decode[protocol.MediaToggle](t, got[0])
		if toggle.UserID != "u1" || toggle.Enabled || toggle.VideoEnabled == nil || *toggle.VideoEnabled {
			t.Errorf("unexpected toggle %+v", toggle)
		}
	}

	snap, _ := f.rooms.Get(f.ctx, room)
	p, _ := snap.Participant(a)
	if p.VideoEnabled || !p.AudioEnabled {
		t.Errorf("registry flags not updated: %+v", p)
	}
}

func TestRelayChatIncludesSender(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")
	f.gw.reset()

	f.emit(t, a, protocol.EventChatMessage, protocol.ChatRequest{Message: "hi"})

	var ids []string
	for _, conn := range []domain.ConnID{a, b} {
		got := f.gw.received(conn)
		if len(got) != 1 || got[0].Event != protocol.EventChatMessage {
			t.Fatalf("expected one chat-message, got %+v", got)
		}
		chat := decode[protocol.ChatMessage](t, got[0])
		if chat.Message != "hi" || chat.Sender != "Alice" || chat.SenderID != "u1" || chat.ID == "" || chat.Timestamp.IsZero() {
			t.Errorf("unexpected chat %+v", chat)
		}
		ids = append(ids, chat.ID)
	}
	if ids[0] != ids[1] {
		t.Errorf("broadcast carried different ids: %v", ids)
	}

	f.gw.reset()
	f.emit(t, a, protocol.EventChatMessage, protocol.ChatRequest{Message: "again"})
	if first, second := f.gw.received(a), f.gw.received(b); len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected deliveries: %+v / %+v", first, second)
	}
}

func TestRelayDisconnectLifecycle(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")
	f.gw.reset()

	delete(f.gw.live, b)
	f.relay.Disconnect(f.ctx, b)

	got := f.gw.received(a)
	if len(got) != 1 || got[0].Event != protocol.EventUserLeft {
		t.Fatalf("expected user-left for A, got %+v", got)
	}
	left := decode[protocol.Presence](t, got[0])
	if left != (protocol.Presence{UserID: "u2", UserName: "Bob", SocketID: b.String()}) {
		t.Errorf("unexpected user-left %+v", left)
	}
	snap, err := f.rooms.Get(f.ctx, room)
	if err != nil || len(snap.Participants) != 1 {
		t.Fatalf("expected one participant left, got %+v err=%v", snap, err)
	}

	f.gw.reset()
	f.emit(t, a, protocol.EventChatMessage, protocol.ChatRequest{Message: "hi"})
	if got := f.gw.received(a); len(got) != 1 || got[0].Event != protocol.EventChatMessage {
		t.Fatalf("lone participant must receive own chat, got %+v", got)
	}

	f.relay.Disconnect(f.ctx, a)
	if _, err := f.rooms.Get(f.ctx, room); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("empty room survived: %v", err)
	}
	if f.sessions.Len() != 0 {
		t.Errorf("sessions leaked: %d", f.sessions.Len())
	}
}

func TestRelayDisconnectWithoutSessionIsNoop(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, stranger := f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.gw.reset()

	f.relay.Disconnect(f.ctx, stranger)
	f.relay.Disconnect(f.ctx, stranger)

	if len(f.gw.log) != 0 {
		t.Errorf("no-op disconnect emitted: %+v", f.gw.log)
	}
	snap, err := f.rooms.Get(f.ctx, room)
	if err != nil || len(snap.Participants) != 1 {
		t.Errorf("registry changed: %+v err=%v", snap, err)
	}
}

func TestRelayExplicitLeave(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")
	f.gw.reset()

	f.relay.HandleMessage(f.ctx, b, protocol.Message{Event: protocol.EventLeaveRoom})

	if got := f.gw.received(a); len(got) != 1 || got[0].Event != protocol.EventUserLeft {
		t.Fatalf("expected user-left, got %+v", got)
	}
	if _, ok, _ := f.sessions.Get(f.ctx, b); ok {
		t.Errorf("session survived leave")
	}
}

func TestRelaySecondJoinLeavesFirstRoom(t *testing.T) {
	f := newFixture()
	first, second := f.createRoom(t), f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()
	f.join(t, a, first, "u1", "Alice")
	f.join(t, b, first, "u2", "Bob")
	f.gw.reset()

	f.join(t, b, second, "u2", "Bob")

	if got := f.gw.received(a); len(got) != 1 || got[0].Event != protocol.EventUserLeft {
		t.Fatalf("first room not told about the move: %+v", got)
	}
	sess, ok, _ := f.sessions.Get(f.ctx, b)
	if !ok || sess.RoomID != second {
		t.Fatalf("session not moved: %+v", sess)
	}
	snap, _ := f.rooms.Get(f.ctx, first)
	if _, still := snap.Participant(b); still {
		t.Errorf("participant orphaned in first room")
	}

	f.gw.reset()
	f.join(t, b, second, "u2", "Bob")
	got := f.gw.received(b)
	if len(got) != 1 || got[0].Event != protocol.EventError {
		t.Fatalf("expected already-joined error, got %+v", got)
	}
	if p := decode[protocol.ErrorPayload](t, got[0]); p.Code != protocol.CodeAlreadyJoined {
		t.Errorf("unexpected code %q", p.Code)
	}
}

func TestRelayRoomUsersPrecedesLaterJoins(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")

	got := f.gw.received(a)
	if len(got) != 2 || got[0].Event != protocol.EventRoomUsers || got[1].Event != protocol.EventUserJoined {
		t.Fatalf("unexpected order for A: %+v", got)
	}
}

func TestRelayRejectsMalformedEvents(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	a, b := f.gw.connect(), f.gw.connect()
	f.join(t, a, room, "u1", "Alice")
	f.join(t, b, room, "u2", "Bob")
	f.gw.reset()

	f.relay.HandleMessage(f.ctx, a, protocol.Message{Event: "explode"})
	f.relay.HandleMessage(f.ctx, a, protocol.Message{Event: protocol.EventOffer, Data: json.RawMessage(`{"sdp":{}}`)})

	if got := f.gw.received(b); len(got) != 0 {
		t.Fatalf("malformed events were forwarded: %+v", got)
	}
	got := f.gw.received(a)
	if len(got) != 2 {
		t.Fatalf("expected two errors, got %+v", got)
	}
	for _, m := range got {
		if p := decode[protocol.ErrorPayload](t, m); m.Event != protocol.EventError || p.Code != protocol.CodeInvalidEvent {
			t.Errorf("unexpected response %s %+v", m.Event, p)
		}
	}
}

func TestRelayIgnoresRoomEventsWithoutSession(t *testing.T) {
	f := newFixture()
	a := f.gw.connect()
	enabled := true
	f.emit(t, a, protocol.EventToggleAudio, protocol.ToggleRequest{Enabled: &enabled})
	f.emit(t, a, protocol.EventChatMessage, protocol.ChatRequest{Message: "hello?"})
	if len(f.gw.log) != 0 {
		t.Errorf("unexpected deliveries: %+v", f.gw.log)
	}
}

func TestRelayCleanupInvariantAcrossSequences(t *testing.T) {
	f := newFixture()
	room := f.createRoom(t)
	conns := make([]domain.ConnID, 5)
	for i := range conns {
		conns[i] = f.gw.connect()
		f.join(t, conns[i], room, "u", "User")
	}
	for i, conn := range conns {
		f.relay.Disconnect(f.ctx, conn)
		_, err := f.rooms.Get(f.ctx, room)
		last := i == len(conns)-1
		if last && !errors.Is(err, domain.ErrRoomNotFound) {
			t.Fatalf("room survived final disconnect")
		}
		if !last && err != nil {
			t.Fatalf("room deleted early after %d disconnects: %v", i+1, err)
		}
	}
	if f.rooms.Len() != 0 || f.sessions.Len() != 0 {
		t.Errorf("state leaked: rooms=%d sessions=%d", f.rooms.Len(), f.sessions.Len())
	}
}
