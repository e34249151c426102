package port

import (
	"context"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

type DeviceRegistry interface {
	// Register refreshes the registration at existingURL, or creates a new one when it is empty.
	Register(ctx context.Context, existingURL string, info domain.DeviceInfo) (*domain.Device, error)
	Deregister(ctx context.Context, deviceURL string) error
}

// DeviceStore keeps the device URL across restarts. Load returns "" when nothing is stored.
type DeviceStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, deviceURL string) error
	Clear(ctx context.Context) error
}
