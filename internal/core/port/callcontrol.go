package port

import (
	"context"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

// CallControl issues the call-affecting requests against the session service.
type CallControl interface {
	Create(ctx context.Context, target string, device *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error)
	Join(ctx context.Context, callURL string, device *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error)
	Leave(ctx context.Context, participantURL string, device *domain.Device) (*domain.Snapshot, error)
	Decline(ctx context.Context, callURL string, device *domain.Device) error
	Alert(ctx context.Context, participantURL string, device *domain.Device) error
	UpdateMedia(ctx context.Context, mediaURL string, device *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error)
	Fetch(ctx context.Context, callURL string) (*domain.Snapshot, error)
	FetchActiveSessions(ctx context.Context, device *domain.Device) ([]*domain.Snapshot, error)
	UpdateShareFloor(ctx context.Context, shareURL string, floor domain.FloorRequest) error
	SendDTMF(ctx context.Context, participantURL string, device *domain.Device, correlationID int, tones string) error
}
