package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

type fakePeer struct {
	handlers PeerHandlers

	offers     int
	answers    int
	remote     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool

	failRemote error
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", p.offers)}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", p.answers)}, nil
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if p.failRemote != nil {
		return p.failRemote
	}
	p.remote = append(p.remote, desc)
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	if p.closed {
		return errors.New("closed")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) Close() error {
	p.closed = true
	return nil
}

type fakeFactory struct {
	peers []*fakePeer
	// failRemote is applied to the n-th peer created, counting from 1.
	failRemoteAt int
}

func (f *fakeFactory) NewPeer(media LocalMedia, h PeerHandlers) (PeerConnection, error) {
	p := &fakePeer{handlers: h}
	f.peers = append(f.peers, p)
	if len(f.peers) == f.failRemoteAt {
		p.failRemote = errors.New("bad sdp")
	}
	return p, nil
}

type fakeMedia struct {
	mu      sync.Mutex
	enabled map[string]bool
	closed  bool
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{enabled: map[string]bool{protocol.KindAudio: true, protocol.KindVideo: true}}
}

func (m *fakeMedia) SetEnabled(kind string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled[kind] = enabled
}

func (m *fakeMedia) Enabled(kind string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[kind]
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMedia) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeSource struct {
	media    *fakeMedia
	err      error
	acquired int
}

func (s *fakeSource) Acquire(ctx context.Context) (LocalMedia, error) {
	s.acquired++
	if s.err != nil {
		return nil, s.err
	}
	s.media = newFakeMedia()
	return s.media, nil
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []protocol.Message

	// When block is set, Emit reports on entered and waits for block to close.
	block   chan struct{}
	entered chan struct{}
}

func (s *fakeSignaler) Emit(event string, data any) error {
	msg, err := protocol.NewMessage(event, data)
	if err != nil {
		return err
	}
	if s.block != nil {
		s.entered <- struct{}{}
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSignaler) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent {
		out = append(out, m.Event)
	}
	return out
}

func (s *fakeSignaler) last(t *testing.T, event string) protocol.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Event == event {
			return s.sent[i]
		}
	}
	t.Fatalf("no %s sent (have %v)", event, s.sent)
	return protocol.Message{}
}

type recordingObserver struct {
	mu      sync.Mutex
	remotes [][]Remote
	chat    []ChatEntry
	notices []error
}

func (o *recordingObserver) RemotesChanged(r []Remote) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.remotes = append(o.remotes, r)
}

func (o *recordingObserver) ChatReceived(e ChatEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chat = append(o.chat, e)
}

func (o *recordingObserver) Notice(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, err)
}

func event(t *testing.T, name string, data any) protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(name, data)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func sdpJSON(t *testing.T, typ webrtc.SDPType, body string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(webrtc.SessionDescription{Type: typ, SDP: body})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func candidateJSON(t *testing.T, c string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(webrtc.ICECandidateInit{Candidate: c})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
