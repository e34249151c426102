package port

import (
	"context"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

type MediaEngine interface {
	NewSession() (MediaSession, error)
}

// MediaSession is the media side of one call. SDP strings are opaque to the caller.
type MediaSession interface {
	Prepare(c domain.MediaConstraints) error
	LocalOffer(ctx context.Context) (string, error)
	ApplyRemoteAnswer(sdp string) error
	Mute(kind domain.MediaKind, muted bool) error
	CanShare() bool
	StartShare() error
	StopShare() error
	ViewMetrics() domain.ViewMetrics
	Close() error
}
