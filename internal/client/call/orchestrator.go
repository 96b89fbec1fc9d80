package call

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type TileState string

const (
	TileConnecting TileState = "connecting"
	TileConnected  TileState = "connected"
)

// Remote is a snapshot of one remote participant's tile.
type Remote struct {
	SocketID     string
	UserID       string
	Name         string
	AudioEnabled bool
	VideoEnabled bool
	State        TileState
	Tracks       int

	// Degraded marks a tile whose link failed. It stays connecting until the
	// participant leaves or offers again.
	Degraded bool
}

type ChatEntry struct {
	ID       string
	Sender   string
	SenderID string
	Message  string
	Time     time.Time
}

type participant struct {
	socketID string
	userID   string
	name     string
	audio    bool
	video    bool
	link     *PeerLink
}

func (p *participant) snapshot() Remote {
	r := Remote{
		SocketID:     p.socketID,
		UserID:       p.userID,
		Name:         p.name,
		AudioEnabled: p.audio,
		VideoEnabled: p.video,
		State:        TileConnecting,
	}
	if p.link != nil {
		switch p.link.state {
		case LinkConnected:
			r.State = TileConnected
		case LinkFailed:
			r.Degraded = true
		}
		r.Tracks = len(p.link.tracks)
	}
	return r
}

// Orchestrator keeps one PeerLink per remote participant and reacts to relay
// events. Handle is called from the signaling loop; peer callbacks arrive on
// other goroutines and are serialized by mu.
type Orchestrator struct {
	factory  PeerFactory
	media    LocalMedia
	signaler Signaler
	observer Observer

	// sendMu keeps outbox batches in order; it is never taken under mu.
	sendMu sync.Mutex

	mu      sync.Mutex
	peers   map[string]*participant
	order   []string
	chat    []ChatEntry
	closed  bool
	dirty   bool
	unread  []ChatEntry
	notices []error
	outbox  []outbound
}

// outbound is a relay message queued under mu and emitted after it is
// released.
type outbound struct {
	event string
	data  any
}

func NewOrchestrator(factory PeerFactory, media LocalMedia, signaler Signaler, observer Observer) *Orchestrator {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Orchestrator{
		factory:  factory,
		media:    media,
		signaler: signaler,
		observer: observer,
		peers:    make(map[string]*participant),
	}
}

// Handle applies one relay event. Only an error event is returned; every
// per-peer failure is isolated to that peer.
func (o *Orchestrator) Handle(msg protocol.Message) error {
	o.mu.Lock()
	var err error
	if !o.closed {
		err = o.handle(msg)
	}
	o.mu.Unlock()
	o.publish()
	return err
}

func (o *Orchestrator) handle(msg protocol.Message) error {
	switch msg.Event {
	case protocol.EventRoomUsers:
		var users []protocol.ParticipantInfo
		if o.decode(msg, &users) {
			o.onRoomUsers(users)
		}

	case protocol.EventUserJoined:
		var p protocol.Presence
		if o.decode(msg, &p) {
			o.onUserJoined(p)
		}

	case protocol.EventOffer:
		var d protocol.RelayedDescription
		if o.decode(msg, &d) {
			o.onOffer(d)
		}

	case protocol.EventAnswer:
		var d protocol.RelayedDescription
		if o.decode(msg, &d) {
			o.onAnswer(d)
		}

	case protocol.EventICECandidate:
		var c protocol.RelayedCandidate
		if o.decode(msg, &c) {
			o.onCandidate(c)
		}

	case protocol.EventUserLeft:
		var p protocol.Presence
		if o.decode(msg, &p) {
			o.onUserLeft(p)
		}

	case protocol.EventUserAudioToggle, protocol.EventUserVideoToggle:
		var t protocol.MediaToggle
		if o.decode(msg, &t) {
			o.onToggle(msg.Event, t)
		}

	case protocol.EventChatMessage:
		var c protocol.ChatMessage
		if o.decode(msg, &c) {
			entry := ChatEntry{ID: c.ID, Sender: c.Sender, SenderID: c.SenderID, Message: c.Message, Time: c.Timestamp}
			o.chat = append(o.chat, entry)
			o.unread = append(o.unread, entry)
		}

	case protocol.EventError:
		var p protocol.ErrorPayload
		if !o.decode(msg, &p) {
			return nil
		}
		err := relayError(p)
		if p.Code == protocol.CodeInvalidEvent {
			log.Warn().Err(err).Msg("Relay rejected a message")
			o.notices = append(o.notices, err)
			return nil
		}
		return err

	default:
		log.Debug().Str("event", msg.Event).Msg("Ignoring unknown event")
	}
	return nil
}

func (o *Orchestrator) decode(msg protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed relay event")
		return false
	}
	return true
}

func (o *Orchestrator) onRoomUsers(users []protocol.ParticipantInfo) {
	for _, u := range users {
		p := o.ensure(u.SocketID, u.ID, u.Name)
		p.audio = u.AudioEnabled
		p.video = u.VideoEnabled
	}
	o.dirty = true
}

// A newcomer is always offered to by the members already present.
func (o *Orchestrator) onUserJoined(u protocol.Presence) {
	p := o.ensure(u.SocketID, u.UserID, u.UserName)
	if p.link != nil {
		p.link.dispose()
	}
	o.dirty = true

	link, err := o.openLink(u.SocketID, RoleInitiator)
	p.link = link
	if err != nil {
		o.abandon(link, "open", err)
		return
	}

	offer, err := link.pc.CreateOffer()
	if err != nil {
		o.abandon(link, "create offer", err)
		return
	}
	o.sendDescription(link, protocol.EventOffer, offer)
}

func (o *Orchestrator) onOffer(d protocol.RelayedDescription) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(d.SDP, &desc); err != nil {
		log.Warn().Err(err).Str("sender", d.Sender).Msg("Malformed offer")
		return
	}

	p := o.ensure(d.Sender, "", d.SenderName)
	o.dirty = true

	// A live link takes a renegotiation offer in place.
	link := p.link
	if link == nil || link.disposed {
		var err error
		link, err = o.openLink(d.Sender, RoleResponder)
		p.link = link
		if err != nil {
			o.abandon(link, "open", err)
			return
		}
	}

	if err := link.setRemote(desc); err != nil {
		o.abandon(link, "set remote offer", err)
		return
	}
	answer, err := link.pc.CreateAnswer()
	if err != nil {
		o.abandon(link, "create answer", err)
		return
	}
	o.sendDescription(link, protocol.EventAnswer, answer)
}

func (o *Orchestrator) onAnswer(d protocol.RelayedDescription) {
	p, ok := o.peers[d.Sender]
	if !ok || p.link == nil || p.link.disposed {
		log.Debug().Str("sender", d.Sender).Msg("Answer for unknown link")
		return
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(d.SDP, &desc); err != nil {
		o.abandon(p.link, "parse answer", err)
		return
	}
	if err := p.link.setRemote(desc); err != nil {
		o.abandon(p.link, "set remote answer", err)
		return
	}
	o.dirty = true
}

func (o *Orchestrator) onCandidate(c protocol.RelayedCandidate) {
	p, ok := o.peers[c.Sender]
	if !ok || p.link == nil || p.link.disposed {
		log.Debug().Str("sender", c.Sender).Msg("ICE candidate for unknown link")
		return
	}

	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(c.Candidate, &cand); err != nil {
		log.Warn().Err(err).Str("sender", c.Sender).Msg("Malformed ICE candidate")
		return
	}
	if err := p.link.addCandidate(cand); err != nil {
		log.Warn().Err(err).Str("sender", c.Sender).Msg("Failed to add ICE candidate")
	}
}

func (o *Orchestrator) onUserLeft(u protocol.Presence) {
	p, ok := o.peers[u.SocketID]
	if !ok {
		return
	}
	if p.link != nil {
		p.link.dispose()
	}
	delete(o.peers, u.SocketID)
	for i, id := range o.order {
		if id == u.SocketID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	o.dirty = true
}

func (o *Orchestrator) onToggle(event string, t protocol.MediaToggle) {
	enabled := t.Enabled
	if event == protocol.EventUserAudioToggle && t.AudioEnabled != nil {
		enabled = *t.AudioEnabled
	}
	if event == protocol.EventUserVideoToggle && t.VideoEnabled != nil {
		enabled = *t.VideoEnabled
	}

	for _, p := range o.peers {
		if p.userID != t.UserID {
			continue
		}
		if event == protocol.EventUserAudioToggle {
			p.audio = enabled
		} else {
			p.video = enabled
		}
		o.dirty = true
	}
}

// ensure returns the participant for socketID, creating it on first sight.
func (o *Orchestrator) ensure(socketID, userID, name string) *participant {
	p, ok := o.peers[socketID]
	if !ok {
		p = &participant{socketID: socketID, audio: true, video: true}
		o.peers[socketID] = p
		o.order = append(o.order, socketID)
	}
	if userID != "" {
		p.userID = userID
	}
	if name != "" {
		p.name = name
	}
	return p
}

func (o *Orchestrator) openLink(target string, role Role) (*PeerLink, error) {
	link := newPeerLink(target, role)
	pc, err := o.factory.NewPeer(o.media, PeerHandlers{
		OnICECandidate: func(c webrtc.ICECandidateInit) { o.localCandidate(link, c) },
		OnTrack:        func(t RemoteTrack) { o.remoteTrack(link, t) },
		OnStateChange:  func(s webrtc.PeerConnectionState) { o.stateChange(link, s) },
	})
	if err != nil {
		return link, err
	}
	link.pc = pc
	log.Debug().Str("target", target).Str("role", role.String()).Msg("Peer link opened")
	return link, nil
}

func (o *Orchestrator) abandon(link *PeerLink, op string, err error) {
	log.Warn().Err(err).Str("target", link.target).Str("op", op).Msg("Negotiation failed")
	link.fail()
	o.notices = append(o.notices, WrapError(op, ErrNegotiationFailed, err.Error()))
	o.dirty = true
}

// sendDescription sends our offer or answer and then releases the local
// candidates gathered while it was being created.
func (o *Orchestrator) sendDescription(link *PeerLink, event string, desc webrtc.SessionDescription) {
	raw, err := json.Marshal(desc)
	if err != nil {
		o.abandon(link, "encode "+event, err)
		return
	}
	o.outbox = append(o.outbox, outbound{event, protocol.DescriptionRequest{Target: link.target, SDP: raw}})

	link.described = true
	queued := link.outbound
	link.outbound = nil
	for _, c := range queued {
		o.emitCandidate(link.target, c)
	}
}

func (o *Orchestrator) emitCandidate(target string, c webrtc.ICECandidateInit) {
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	o.outbox = append(o.outbox, outbound{protocol.EventICECandidate, protocol.CandidateRequest{Target: target, Candidate: raw}})
}

func (o *Orchestrator) localCandidate(link *PeerLink, c webrtc.ICECandidateInit) {
	o.mu.Lock()
	if !o.closed && !link.disposed {
		if link.described {
			o.emitCandidate(link.target, c)
		} else {
			link.outbound = append(link.outbound, c)
		}
	}
	o.mu.Unlock()
	o.publish()
}

func (o *Orchestrator) remoteTrack(link *PeerLink, t RemoteTrack) {
	o.mu.Lock()
	if !o.closed && !link.disposed {
		link.tracks = append(link.tracks, t)
		o.dirty = true
	}
	o.mu.Unlock()
	o.publish()
}

func (o *Orchestrator) stateChange(link *PeerLink, s webrtc.PeerConnectionState) {
	o.mu.Lock()
	if !o.closed && !link.disposed {
		switch s {
		case webrtc.PeerConnectionStateConnected:
			link.state = LinkConnected
			o.dirty = true
		case webrtc.PeerConnectionStateFailed:
			o.abandon(link, "ice", ErrNegotiationFailed)
		}
	}
	o.mu.Unlock()
	o.publish()
}

// publish emits queued relay messages and delivers pending updates to the
// observer, both outside mu.
func (o *Orchestrator) publish() {
	o.mu.Lock()
	pending := len(o.outbox) > 0
	o.mu.Unlock()
	if pending {
		o.sendMu.Lock()
		o.mu.Lock()
		out := o.outbox
		o.outbox = nil
		o.mu.Unlock()
		for _, m := range out {
			if err := o.signaler.Emit(m.event, m.data); err != nil {
				log.Debug().Err(err).Str("event", m.event).Msg("Failed to send to relay")
			}
		}
		o.sendMu.Unlock()
	}

	o.mu.Lock()
	var remotes []Remote
	if o.dirty {
		remotes = o.remotesLocked()
		o.dirty = false
	}
	chat := o.unread
	notices := o.notices
	o.unread = nil
	o.notices = nil
	o.mu.Unlock()

	if remotes != nil {
		o.observer.RemotesChanged(remotes)
	}
	for _, c := range chat {
		o.observer.ChatReceived(c)
	}
	for _, n := range notices {
		o.observer.Notice(n)
	}
}

// Remotes returns the tiles in the order participants were first seen.
func (o *Orchestrator) Remotes() []Remote {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remotesLocked()
}

func (o *Orchestrator) remotesLocked() []Remote {
	out := make([]Remote, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.peers[id].snapshot())
	}
	return out
}

func (o *Orchestrator) Chat() []ChatEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ChatEntry(nil), o.chat...)
}

// Link returns the live link to socketID, if any.
func (o *Orchestrator) Link(socketID string) (*PeerLink, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.peers[socketID]
	if !ok || p.link == nil {
		return nil, false
	}
	return p.link, true
}

func (o *Orchestrator) SetAudioEnabled(enabled bool) error {
	return o.setEnabled(protocol.KindAudio, protocol.EventToggleAudio, enabled)
}

func (o *Orchestrator) SetVideoEnabled(enabled bool) error {
	return o.setEnabled(protocol.KindVideo, protocol.EventToggleVideo, enabled)
}

// ToggleAudio flips the microphone and returns the new state.
func (o *Orchestrator) ToggleAudio() (bool, error) {
	enabled := !o.media.Enabled(protocol.KindAudio)
	return enabled, o.SetAudioEnabled(enabled)
}

func (o *Orchestrator) ToggleVideo() (bool, error) {
	enabled := !o.media.Enabled(protocol.KindVideo)
	return enabled, o.SetVideoEnabled(enabled)
}

func (o *Orchestrator) setEnabled(kind, event string, enabled bool) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}

	o.media.SetEnabled(kind, enabled)
	if err := o.signaler.Emit(event, protocol.ToggleRequest{Enabled: &enabled}); err != nil {
		return NewError("toggle "+kind, err)
	}
	return nil
}

func (o *Orchestrator) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := o.signaler.Emit(protocol.EventChatMessage, protocol.ChatRequest{Message: text}); err != nil {
		return NewError("send chat", err)
	}
	return nil
}

// Close disposes every link. Later events and callbacks are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.outbox = nil
	for _, p := range o.peers {
		if p.link != nil {
			p.link.dispose()
		}
	}
	o.dirty = true
	o.mu.Unlock()
	o.publish()
}
