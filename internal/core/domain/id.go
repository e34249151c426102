package domain

import (
	"github.com/google/uuid"
)

// CallID is the local handle of a Call. The server identifies a call by its URL.
type CallID uuid.UUID

func NewCallID() CallID {
	return CallID(uuid.New())
}

func ParseCallID(s string) (CallID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CallID{}, err
	}
	return CallID(id), nil
}

func (id CallID) String() string {
	return uuid.UUID(id).String()
}

// NewTrackingID returns the value sent in the trackingid header of every request.
func NewTrackingID() string {
	return "yaphone_" + uuid.NewString()
}
