package pion

import (
	"github.com/Wyydra/yaphone/internal/core/port"
	"github.com/pion/webrtc/v4"
)

// Engine builds one peer connection per call.
// implements port.MediaEngine
type Engine struct {
	api    *webrtc.API
	config webrtc.Configuration
}

func NewEngine(iceServers []string) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &Engine{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		config: cfg,
	}, nil
}

func (e *Engine) NewSession() (port.MediaSession, error) {
	pc, err := e.api.NewPeerConnection(e.config)
	if err != nil {
		return nil, err
	}
	return newSession(pc), nil
}
