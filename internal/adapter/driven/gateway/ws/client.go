package ws

import "github.com/Wyydra/yaphone/internal/core/domain"

type Client interface {
	ID() string
	Send(n domain.Notification) error
	Close() error
}
