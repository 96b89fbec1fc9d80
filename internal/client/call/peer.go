package call

import (
	"context"

	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the subset of a WebRTC peer connection the orchestrator
// drives. CreateOffer and CreateAnswer also apply the result as the local
// description.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	Close() error
}

// PeerHandlers are installed before a connection starts gathering, so no
// local candidate is lost. They may run on any goroutine.
type PeerHandlers struct {
	OnICECandidate func(c webrtc.ICECandidateInit)
	OnTrack        func(t RemoteTrack)
	OnStateChange  func(s webrtc.PeerConnectionState)
}

// PeerFactory opens one connection per remote participant with the local
// media already attached.
type PeerFactory interface {
	NewPeer(media LocalMedia, h PeerHandlers) (PeerConnection, error)
}

type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     string
}

// LocalMedia is the captured microphone and camera. Toggling enablement
// never renegotiates.
type LocalMedia interface {
	SetEnabled(kind string, enabled bool)
	Enabled(kind string) bool
	Close() error
}

// MediaSource acquires local media once per call attempt.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// Signaler sends one event to the relay.
type Signaler interface {
	Emit(event string, data any) error
}

// Connection is a live relay connection. Incoming is closed when the
// transport ends and Err reports why.
type Connection interface {
	Signaler
	Incoming() <-chan protocol.Message
	Err() error
	Close() error
}

// Dialer opens a relay connection.
type Dialer func(ctx context.Context, url string) (Connection, error)

// Observer is the UI boundary. Calls are made without internal locks held.
type Observer interface {
	RemotesChanged(remotes []Remote)
	ChatReceived(entry ChatEntry)
	Notice(err error)
}

type NopObserver struct{}

func (NopObserver) RemotesChanged([]Remote) {}
func (NopObserver) ChatReceived(ChatEntry)  {}
func (NopObserver) Notice(error)            {}
