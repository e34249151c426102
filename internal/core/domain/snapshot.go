package domain

import (
	"encoding/json"
	"strings"
)

type ParticipantState string

const (
	ParticipantIdle     ParticipantState = "idle"
	ParticipantNotified ParticipantState = "notified"
	ParticipantJoined   ParticipantState = "joined"
	ParticipantLeft     ParticipantState = "left"
	ParticipantDeclined ParticipantState = "declined"
)

// The server sends upper case states ("JOINED").
func (s *ParticipantState) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParticipantState(strings.ToLower(raw))
	return nil
}

const DeviceStateJoined = "JOINED"

// Snapshot is a full copy of a session (a "locus") as the server sent it.
// It is never patched: every update replaces it wholesale.
type Snapshot struct {
	URL          string        `json:"url"`
	Participants []Participant `json:"participants"`
	Self         *Participant  `json:"self"`
	Host         *Person       `json:"host,omitempty"`
	FullState    FullState     `json:"fullState"`
	Sequence     Sequence      `json:"sequence"`
	Replaces     []Replace     `json:"replaces,omitempty"`
	MediaShares  []MediaShare  `json:"mediaShares,omitempty"`
}

type FullState struct {
	Active     bool   `json:"active"`
	Count      int    `json:"count"`
	Locked     bool   `json:"locked"`
	LastActive string `json:"lastActive,omitempty"`
	State      string `json:"state"`
}

type Replace struct {
	LocusURL string `json:"locusUrl"`
}

type Participant struct {
	ID           string              `json:"id"`
	URL          string              `json:"url"`
	State        ParticipantState    `json:"state"`
	Type         string              `json:"type"`
	Person       *Person             `json:"person,omitempty"`
	Status       ParticipantStatus   `json:"status"`
	DeviceURL    string              `json:"deviceUrl,omitempty"`
	MediaBaseURL string              `json:"mediaBaseUrl,omitempty"`
	Guest        bool                `json:"guest,omitempty"`
	AlertType    AlertType           `json:"alertType"`
	Devices      []ParticipantDevice `json:"devices"`
	IsCreator    bool                `json:"isCreator,omitempty"`
	EnableDTMF   bool                `json:"enableDTMF,omitempty"`
}

type Person struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	SIPURL      string `json:"sipUrl,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	OrgID       string `json:"orgId,omitempty"`
}

type ParticipantStatus struct {
	AudioStatus string `json:"audioStatus,omitempty"`
	VideoStatus string `json:"videoStatus,omitempty"`
}

type AlertType struct {
	Action string `json:"action,omitempty"`
}

type ParticipantDevice struct {
	URL        string     `json:"url"`
	DeviceType string     `json:"deviceType,omitempty"`
	State      string     `json:"state"`
	CallLegID  string     `json:"callLegId,omitempty"`
	MediaLegs  []MediaLeg `json:"mediaConnections"`
}

// MediaLeg is one negotiated media connection of a device. LocalSDP and
// RemoteSDP carry a JSON encoded MediaInfo, opaque to everything but the
// media session.
type MediaLeg struct {
	MediaID   string `json:"mediaId"`
	Type      string `json:"type"`
	LocalSDP  string `json:"localSdp,omitempty"`
	RemoteSDP string `json:"remoteSdp,omitempty"`
}

// MediaInfo is the payload of MediaLeg.LocalSDP / RemoteSDP.
type MediaInfo struct {
	Type       string `json:"type"`
	SDP        string `json:"sdp"`
	AudioMuted bool   `json:"audioMuted"`
	VideoMuted bool   `json:"videoMuted"`
}

func (m MediaLeg) Remote() (MediaInfo, bool) {
	var info MediaInfo
	if m.RemoteSDP == "" || json.Unmarshal([]byte(m.RemoteSDP), &info) != nil {
		return MediaInfo{}, false
	}
	return info, info.SDP != ""
}

type MediaShare struct {
	Name  string      `json:"name"`
	URL   string      `json:"url"`
	Floor *ShareFloor `json:"floor,omitempty"`
}

type FloorDisposition string

const (
	FloorGranted  FloorDisposition = "GRANTED"
	FloorReleased FloorDisposition = "RELEASED"
)

type ShareFloor struct {
	Disposition FloorDisposition `json:"disposition"`
	Beneficiary *Participant     `json:"beneficiary,omitempty"`
	Requester   *Participant     `json:"requester,omitempty"`
	Granted     string           `json:"granted,omitempty"`
	Released    string           `json:"released,omitempty"`
}

// CallURL is the identity of the call: a replacing locus wins over the own URL.
func (s *Snapshot) CallURL() string {
	if s == nil {
		return ""
	}
	if len(s.Replaces) > 0 && s.Replaces[0].LocusURL != "" {
		return s.Replaces[0].LocusURL
	}
	return s.URL
}

// Valid reports whether the snapshot carries the fields every consumer relies on.
func (s *Snapshot) Valid() bool {
	return s != nil && s.CallURL() != "" && s.Self != nil
}
