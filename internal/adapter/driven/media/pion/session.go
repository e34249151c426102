package pion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const streamID = "yaphone"

var ErrNotPrepared = errors.New("media session not prepared")

type outgoing struct {
	track  *webrtc.TrackLocalStaticSample
	sender *webrtc.RTPSender
}

// Session is the media side of one call: a single peer connection
// carrying audio, video and optionally a screen share.
type Session struct {
	pc *webrtc.PeerConnection

	mu          sync.Mutex
	prepared    bool
	constraints domain.MediaConstraints
	out         map[domain.MediaKind]*outgoing
	sharing     bool
}

func newSession(pc *webrtc.PeerConnection) *Session {
	s := &Session{pc: pc, out: make(map[domain.MediaKind]*outgoing)}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().Str("kind", remote.Kind().String()).Str("codec", remote.Codec().MimeType).Msg("Received remote track")
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Str("state", state.String()).Msg("Media connection state changed")
	})
	return s
}

// Prepare adds a sending track for every enabled kind and a receive-only
// transceiver for the others.
func (s *Session) Prepare(c domain.MediaConstraints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prepared {
		return nil
	}

	if err := s.addKind(domain.MediaAudio, c.Audio, webrtc.MimeTypeOpus, webrtc.RTPCodecTypeAudio); err != nil {
		return err
	}
	if err := s.addKind(domain.MediaVideo, c.Video, webrtc.MimeTypeVP8, webrtc.RTPCodecTypeVideo); err != nil {
		return err
	}
	if c.Share {
		// The share sender stays empty until StartShare.
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "share", streamID)
		if err != nil {
			return err
		}
		tr, err := s.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			return err
		}
		s.out[domain.MediaScreen] = &outgoing{track: track, sender: tr.Sender()}
	}

	s.constraints = c
	s.prepared = true
	return nil
}

func (s *Session) addKind(kind domain.MediaKind, send bool, mime string, codec webrtc.RTPCodecType) error {
	if !send {
		_, err := s.pc.AddTransceiverFromKind(codec, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		return err
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, string(kind), streamID)
	if err != nil {
		return err
	}
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		return err
	}
	s.out[kind] = &outgoing{track: track, sender: sender}
	return nil
}

// LocalOffer creates an offer and waits for ICE gathering, or for ctx.
func (s *Session) LocalOffer(ctx context.Context) (string, error) {
	s.mu.Lock()
	prepared := s.prepared
	s.mu.Unlock()
	if !prepared {
		return "", ErrNotPrepared
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	done := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	select {
	case <-done:
	case <-ctx.Done():
		log.Debug().Msg("ICE gathering incomplete, sending partial offer")
	}
	return s.pc.LocalDescription().SDP, nil
}

func (s *Session) ApplyRemoteAnswer(sdp string) error {
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

// Mute detaches the kind's track from its sender, leaving the transceiver in place.
func (s *Session) Mute(kind domain.MediaKind, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.out[kind]
	if !ok {
		if muted {
			return nil
		}
		return fmt.Errorf("no %s track to unmute", kind)
	}
	if muted {
		return o.sender.ReplaceTrack(nil)
	}
	return o.sender.ReplaceTrack(o.track)
}

func (s *Session) CanShare() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.out[domain.MediaScreen]
	return ok
}

func (s *Session) StartShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.out[domain.MediaScreen]
	if !ok {
		return errors.New("session prepared without share")
	}
	if err := o.sender.ReplaceTrack(o.track); err != nil {
		return err
	}
	s.sharing = true
	return nil
}

func (s *Session) StopShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.out[domain.MediaScreen]
	if !ok || !s.sharing {
		return nil
	}
	if err := o.sender.ReplaceTrack(nil); err != nil {
		return err
	}
	s.sharing = false
	return nil
}

func (s *Session) ViewMetrics() domain.ViewMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.constraints.Video {
		return domain.ViewMetrics{}
	}
	return domain.ViewMetrics{Width: s.constraints.VideoWidth, Height: s.constraints.VideoHeight}
}

func (s *Session) Close() error {
	return s.pc.Close()
}
