package mercury

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/Wyydra/yaphone/internal/core/port"
)

var ErrMalformed = errors.New("malformed event")

// frame is the wire format of every inbound message.
type frame struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type ack struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

type eventHeader struct {
	EventType string `json:"eventType"`
}

// classify reads the discriminator of a frame's data.
func classify(f frame) (domain.Envelope, error) {
	if len(f.Data) == 0 {
		return domain.Envelope{}, fmt.Errorf("%w: no data", ErrMalformed)
	}
	var h eventHeader
	if err := json.Unmarshal(f.Data, &h); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	env := domain.Envelope{ID: f.ID, Payload: f.Data}
	switch t := h.EventType; {
	case strings.HasPrefix(t, "locus."):
		env.Type = domain.EventSession
	case strings.HasPrefix(t, "conversation."), t == "status.start_typing", t == "status.stop_typing", strings.HasPrefix(t, "appitem."):
		env.Type = domain.EventActivity
	case strings.HasPrefix(t, "encryption."):
		env.Type = domain.EventKMS
	default:
		return domain.Envelope{}, fmt.Errorf("%w: unknown event type %q", ErrMalformed, t)
	}
	return env, nil
}

// dispatch decodes env and hands it to h.
func dispatch(h port.EventHandler, env domain.Envelope) error {
	switch env.Type {
	case domain.EventSession:
		var ev domain.SessionEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if ev.Snapshot == nil {
			return fmt.Errorf("%w: %s without locus", ErrMalformed, ev.EventType)
		}
		h.HandleSessionEvent(ev)
	case domain.EventActivity:
		var ev domain.ActivityEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		ev.Data = env.Payload
		h.HandleActivityEvent(ev)
	case domain.EventKMS:
		var ev domain.KeyEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if len(ev.Messages) == 0 {
			return fmt.Errorf("%w: %s without kmsMessages", ErrMalformed, ev.EventType)
		}
		h.HandleKeyEvent(ev)
	}
	return nil
}
