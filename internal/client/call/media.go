package call

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const audioFrame = 20 * time.Millisecond

// StaticMedia is local media made of sample tracks that callers feed with
// WriteSample. Disabled kinds drop samples, which the remote sees as a
// muted track without renegotiation.
type StaticMedia struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	audioOn atomic.Bool
	videoOn atomic.Bool

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ LocalMedia    = (*StaticMedia)(nil)
	_ TrackProvider = (*StaticMedia)(nil)
)

func NewStaticMedia(streamID string) (*StaticMedia, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, NewError("create audio track", err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", streamID,
	)
	if err != nil {
		return nil, NewError("create video track", err)
	}

	m := &StaticMedia{audio: audio, video: video, stop: make(chan struct{})}
	m.audioOn.Store(true)
	m.videoOn.Store(true)
	return m, nil
}

func (m *StaticMedia) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{m.audio, m.video}
}

func (m *StaticMedia) SetEnabled(kind string, enabled bool) {
	switch kind {
	case protocol.KindAudio:
		m.audioOn.Store(enabled)
	case protocol.KindVideo:
		m.videoOn.Store(enabled)
	}
}

func (m *StaticMedia) Enabled(kind string) bool {
	switch kind {
	case protocol.KindAudio:
		return m.audioOn.Load()
	case protocol.KindVideo:
		return m.videoOn.Load()
	}
	return false
}

// WriteSample sends s on the track for kind unless that kind is disabled.
func (m *StaticMedia) WriteSample(kind string, s media.Sample) error {
	if !m.Enabled(kind) {
		return nil
	}
	switch kind {
	case protocol.KindAudio:
		return m.audio.WriteSample(s)
	case protocol.KindVideo:
		return m.video.WriteSample(s)
	}
	return errors.New("unknown media kind " + kind)
}

// StartSilence keeps the audio track alive with silent frames until Close.
func (m *StaticMedia) StartSilence() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(audioFrame)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.WriteSample(protocol.KindAudio, media.Sample{Data: opusSilence, Duration: audioFrame})
			}
		}
	}()
}

func (m *StaticMedia) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
	return nil
}

// StaticSource hands out StaticMedia. It stands in for device capture on
// hosts without a camera.
type StaticSource struct {
	StreamID string
	Silence  bool
}

func (s StaticSource) Acquire(ctx context.Context) (LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := s.StreamID
	if id == "" {
		id = "huddle"
	}
	m, err := NewStaticMedia(id)
	if err != nil {
		return nil, err
	}
	if s.Silence {
		m.StartSilence()
	}
	return m, nil
}
