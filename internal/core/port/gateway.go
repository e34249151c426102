package port

import (
	"context"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

// RealTimeGateway delivers notifications to the application layer.
type RealTimeGateway interface {
	Publish(ctx context.Context, n domain.Notification) error
}
