package memory

import (
	"context"
	"sync"
)

// DeviceStore keeps the device URL for the lifetime of the process.
// implements port.DeviceStore
type DeviceStore struct {
	mu  sync.Mutex
	url string
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{}
}

func (s *DeviceStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *DeviceStore) Save(ctx context.Context, deviceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = deviceURL
	return nil
}

func (s *DeviceStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = ""
	return nil
}
