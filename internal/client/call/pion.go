package call

import (
	"errors"
	"io"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// TrackProvider is implemented by LocalMedia backed by pion tracks.
type TrackProvider interface {
	Tracks() []webrtc.TrackLocal
}

// PionFactory opens pion peer connections with the default codecs and
// interceptors and the configured ICE servers.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

var _ PeerFactory = (*PionFactory)(nil)

func NewPionFactory(stunServers []string) (*PionFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, NewError("register codecs", err)
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, NewError("register interceptors", err)
	}

	var iceServers []webrtc.ICEServer
	if len(stunServers) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: stunServers}}
	}

	return &PionFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i)),
		config: webrtc.Configuration{ICEServers: iceServers},
	}, nil
}

func (f *PionFactory) NewPeer(media LocalMedia, h PeerHandlers) (PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, NewError("create peer connection", err)
	}

	if tp, ok := media.(TrackProvider); ok {
		for _, t := range tp.Tracks() {
			sender, err := pc.AddTrack(t)
			if err != nil {
				pc.Close()
				return nil, NewError("add track", err)
			}
			go drainRTCP(sender)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || h.OnICECandidate == nil {
			return
		}
		// Off the ICE agent's goroutine so a busy orchestrator never stalls gathering.
		go h.OnICECandidate(c.ToJSON())
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("Received remote track")
		if h.OnTrack != nil {
			h.OnTrack(RemoteTrack{ID: track.ID(), StreamID: track.StreamID(), Kind: track.Kind().String()})
		}
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			requestKeyframe(pc, track)
		}
		consume(track)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug().Str("state", s.String()).Msg("Peer connection state changed")
		if h.OnStateChange != nil {
			h.OnStateChange(s)
		}
	})

	return &pionPeer{pc: pc}, nil
}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, NewError("create offer", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, NewError("set local description", err)
	}
	return *p.pc.LocalDescription(), nil
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, NewError("create answer", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, NewError("set local description", err)
	}
	return *p.pc.LocalDescription(), nil
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}

// drainRTCP reads incoming RTCP so interceptors such as NACK keep working.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// requestKeyframe asks the sender for a full frame so the first decodable
// picture arrives without waiting for the next natural keyframe.
func requestKeyframe(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	err := pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
	})
	if err != nil {
		log.Debug().Err(err).Msg("Failed to send PLI")
	}
}

// consume reads remote RTP until the track ends. Rendering is outside this
// package, so packets are discarded.
func consume(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	start := time.Now()
	var packets int
	for {
		if _, _, err := track.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("track_id", track.ID()).Msg("Remote track read ended")
			}
			log.Debug().Str("track_id", track.ID()).Int("packets", packets).Dur("duration", time.Since(start)).Msg("Remote track closed")
			return
		}
		packets++
	}
}
