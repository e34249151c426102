package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

// Locus talks to the session service.
// implements port.CallControl
type Locus struct {
	client *Client
}

func NewLocus(client *Client) *Locus {
	return &Locus{client: client}
}

type localSDP struct {
	Type     string `json:"type"`
	MediaID  string `json:"mediaId,omitempty"`
	LocalSDP string `json:"localSdp"`
}

type localInfo struct {
	Invitee     *invitee   `json:"invitee,omitempty"`
	DeviceURL   string     `json:"deviceUrl"`
	LocalMedias []localSDP `json:"localMedias,omitempty"`
}

type invitee struct {
	Address string `json:"address"`
}

type deviceOnly struct {
	DeviceURL string `json:"deviceUrl"`
}

type locusResponse struct {
	Locus *domain.Snapshot `json:"locus"`
}

type lociResponse struct {
	Loci []*domain.Snapshot `json:"loci"`
}

func newLocalInfo(device *domain.Device, media domain.LocalMedia) (localInfo, error) {
	sdp, err := json.Marshal(domain.MediaInfo{
		Type:       "SDP",
		SDP:        media.SDP,
		AudioMuted: media.AudioMuted,
		VideoMuted: media.VideoMuted,
	})
	if err != nil {
		return localInfo{}, fmt.Errorf("marshal local sdp: %w", err)
	}
	return localInfo{
		DeviceURL:   device.URL,
		LocalMedias: []localSDP{{Type: "SDP", MediaID: media.MediaID, LocalSDP: string(sdp)}},
	}, nil
}

func joinURL(base string, elem ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(elem, "/")
}

func (l *Locus) Create(ctx context.Context, target string, device *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error) {
	base := device.ServiceURL("locus")
	if base == "" {
		return nil, fmt.Errorf("locus: %w", ErrNoServiceURL)
	}
	body, err := newLocalInfo(device, media)
	if err != nil {
		return nil, err
	}
	body.Invitee = &invitee{Address: target}

	var resp locusResponse
	if err := l.client.do(ctx, http.MethodPost, joinURL(base, "loci", "call"), body, &resp); err != nil {
		return nil, err
	}
	return resp.Locus, nil
}

func (l *Locus) Join(ctx context.Context, callURL string, device *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error) {
	body, err := newLocalInfo(device, media)
	if err != nil {
		return nil, err
	}
	var resp locusResponse
	if err := l.client.do(ctx, http.MethodPost, joinURL(callURL, "participant"), body, &resp); err != nil {
		return nil, err
	}
	return resp.Locus, nil
}

func (l *Locus) Leave(ctx context.Context, participantURL string, device *domain.Device) (*domain.Snapshot, error) {
	var resp locusResponse
	if err := l.client.do(ctx, http.MethodPut, joinURL(participantURL, "leave"), deviceOnly{device.URL}, &resp); err != nil {
		return nil, err
	}
	return resp.Locus, nil
}

func (l *Locus) Decline(ctx context.Context, callURL string, device *domain.Device) error {
	return l.client.do(ctx, http.MethodPut, joinURL(callURL, "participant", "decline"), deviceOnly{device.URL}, nil)
}

func (l *Locus) Alert(ctx context.Context, participantURL string, device *domain.Device) error {
	return l.client.do(ctx, http.MethodPut, joinURL(participantURL, "alert"), deviceOnly{device.URL}, nil)
}

func (l *Locus) UpdateMedia(ctx context.Context, mediaURL string, device *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error) {
	body, err := newLocalInfo(device, media)
	if err != nil {
		return nil, err
	}
	var resp locusResponse
	if err := l.client.do(ctx, http.MethodPut, mediaURL, body, &resp); err != nil {
		return nil, err
	}
	return resp.Locus, nil
}

func (l *Locus) Fetch(ctx context.Context, callURL string) (*domain.Snapshot, error) {
	var resp locusResponse
	if err := l.client.do(ctx, http.MethodGet, callURL, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locus, nil
}

// FetchActiveSessions lists every session the user currently takes part in.
func (l *Locus) FetchActiveSessions(ctx context.Context, device *domain.Device) ([]*domain.Snapshot, error) {
	base := device.ServiceURL("locus")
	if base == "" {
		return nil, fmt.Errorf("locus: %w", ErrNoServiceURL)
	}
	var resp lociResponse
	if err := l.client.do(ctx, http.MethodGet, joinURL(base, "loci"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Loci, nil
}

type floorBody struct {
	Floor floor `json:"floor"`
}

type floor struct {
	Disposition domain.FloorDisposition `json:"disposition"`
	Requester   floorParty              `json:"requester"`
	Beneficiary floorParty              `json:"beneficiary"`
}

type floorParty struct {
	URL     string        `json:"url"`
	Devices []floorDevice `json:"devices,omitempty"`
}

type floorDevice struct {
	URL string `json:"url"`
}

func (l *Locus) UpdateShareFloor(ctx context.Context, shareURL string, req domain.FloorRequest) error {
	body := floorBody{Floor: floor{
		Disposition: req.Disposition,
		Requester:   floorParty{URL: req.ParticipantURL},
		Beneficiary: floorParty{
			URL:     req.ParticipantURL,
			Devices: []floorDevice{{URL: req.DeviceURL}},
		},
	}}
	return l.client.do(ctx, http.MethodPut, shareURL, body, nil)
}

type dtmfBody struct {
	DeviceURL string `json:"deviceUrl"`
	DTMF      dtmf   `json:"dtmf"`
}

type dtmf struct {
	CorrelationID int    `json:"correlationId"`
	Tones         string `json:"tones"`
	Direction     string `json:"direction"`
}

func (l *Locus) SendDTMF(ctx context.Context, participantURL string, device *domain.Device, correlationID int, tones string) error {
	body := dtmfBody{
		DeviceURL: device.URL,
		DTMF:      dtmf{CorrelationID: correlationID, Tones: tones, Direction: "transmit"},
	}
	return l.client.do(ctx, http.MethodPost, joinURL(participantURL, "sendDtmf"), body, nil)
}
