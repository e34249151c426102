package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const DefaultRegistryURL = "https://wdm-a.wbx2.com/wdm/api/v1/devices"

// Registry registers this client as a device.
// implements port.DeviceRegistry
type Registry struct {
	client      *Client
	registryURL string
	regionURL   string
}

// NewRegistry builds a Registry. regionURL may be empty to skip region discovery.
func NewRegistry(client *Client, registryURL, regionURL string) *Registry {
	if registryURL == "" {
		registryURL = DefaultRegistryURL
	}
	return &Registry{client: client, registryURL: registryURL, regionURL: regionURL}
}

type region struct {
	RegionCode  string `json:"regionCode"`
	CountryCode string `json:"countryCode"`
}

// Register refreshes existingURL when set. A refresh the server no longer
// knows about (404) falls back to creating a new device.
func (r *Registry) Register(ctx context.Context, existingURL string, info domain.DeviceInfo) (*domain.Device, error) {
	r.discoverRegion(ctx, &info)

	if existingURL != "" {
		var dev domain.Device
		err := r.client.do(ctx, http.MethodPut, existingURL, info, &dev)
		if err == nil {
			return &dev, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
		log.Info().Str("device_url", existingURL).Msg("Stored device unknown to the server, creating a new one")
	}

	var dev domain.Device
	if err := r.client.do(ctx, http.MethodPost, r.registryURL, info, &dev); err != nil {
		return nil, err
	}
	if dev.URL == "" {
		return nil, errors.New("registration response without device url")
	}
	return &dev, nil
}

func (r *Registry) Deregister(ctx context.Context, deviceURL string) error {
	err := r.client.do(ctx, http.MethodDelete, deviceURL, nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (r *Registry) discoverRegion(ctx context.Context, info *domain.DeviceInfo) {
	if r.regionURL == "" {
		return
	}
	var reg region
	if err := r.client.do(ctx, http.MethodGet, r.regionURL, nil, &reg); err != nil {
		log.Warn().Err(err).Msg("Region discovery failed")
		return
	}
	info.RegionCode = reg.RegionCode
	info.CountryCode = reg.CountryCode
}
