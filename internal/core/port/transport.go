package port

import (
	"context"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

type EventTransport interface {
	// Connect is a no-op when already connected.
	Connect(ctx context.Context, url string) error
	Disconnect() error
	SetHandler(h EventHandler)
}

// EventHandler receives classified events from the transport. The Handle
// methods are called from the transport's read loop and must not block on
// the transport.
type EventHandler interface {
	HandleSessionEvent(ev domain.SessionEvent)
	HandleActivityEvent(ev domain.ActivityEvent)
	HandleKeyEvent(ev domain.KeyEvent)
	// Reregister renews the device registration and returns the new event URL.
	Reregister(ctx context.Context) (string, error)
	HandleReconnected()
}
