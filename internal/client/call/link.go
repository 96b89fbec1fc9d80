package call

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

type LinkState int

const (
	LinkNegotiating LinkState = iota
	LinkConnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkNegotiating:
		return "negotiating"
	case LinkConnected:
		return "connected"
	case LinkFailed:
		return "failed"
	default:
		return "closed"
	}
}

// PeerLink is the connection to one remote participant. Every field is
// guarded by the owning Orchestrator's mutex.
type PeerLink struct {
	target string
	role   Role
	state  LinkState
	pc     PeerConnection

	// Remote candidates wait here until the remote description is set.
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	// Local candidates wait here until our description has been sent.
	described bool
	outbound  []webrtc.ICECandidateInit

	tracks   []RemoteTrack
	disposed bool
}

func newPeerLink(target string, role Role) *PeerLink {
	return &PeerLink{target: target, role: role, state: LinkNegotiating}
}

func (l *PeerLink) Target() string   { return l.target }
func (l *PeerLink) Role() Role       { return l.role }
func (l *PeerLink) State() LinkState { return l.state }

// setRemote applies desc and drains the queued remote candidates in arrival
// order. A candidate that fails to apply is logged and skipped.
func (l *PeerLink) setRemote(desc webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	l.remoteSet = true

	queued := l.pending
	l.pending = nil
	for _, c := range queued {
		if err := l.pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("target", l.target).Msg("Dropping queued ICE candidate")
		}
	}
	return nil
}

func (l *PeerLink) addCandidate(c webrtc.ICECandidateInit) error {
	if l.disposed {
		return nil
	}
	if !l.remoteSet {
		l.pending = append(l.pending, c)
		return nil
	}
	return l.pc.AddICECandidate(c)
}

// dispose releases the connection. Safe to call on every removal path.
func (l *PeerLink) dispose() {
	if l.disposed {
		return
	}
	l.disposed = true
	l.state = LinkClosed
	l.pending = nil
	l.outbound = nil
	l.tracks = nil
	if l.pc != nil {
		if err := l.pc.Close(); err != nil {
			log.Debug().Err(err).Str("target", l.target).Msg("Error closing peer connection")
		}
	}
}

// fail abandons the link but keeps it visible as failed.
func (l *PeerLink) fail() {
	l.dispose()
	l.state = LinkFailed
}
