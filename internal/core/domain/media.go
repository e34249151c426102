package domain

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaScreen MediaKind = "share"
)

// MediaConstraints selects what a call sends and receives.
type MediaConstraints struct {
	Audio       bool `json:"audio"`
	Video       bool `json:"video"`
	Share       bool `json:"share"`
	VideoWidth  int  `json:"videoWidth,omitempty"`
	VideoHeight int  `json:"videoHeight,omitempty"`
}

func DefaultConstraints() MediaConstraints {
	return MediaConstraints{Audio: true, Video: true, VideoWidth: 640, VideoHeight: 480}
}

// LocalMedia is what goes into the localMedias field of a call-control request.
type LocalMedia struct {
	MediaID    string `json:"mediaId,omitempty"`
	SDP        string `json:"sdp"`
	AudioMuted bool   `json:"audioMuted"`
	VideoMuted bool   `json:"videoMuted"`
}

type ViewMetrics struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FloorRequest asks the server to grant or release the share floor for a participant.
type FloorRequest struct {
	Disposition    FloorDisposition
	ParticipantURL string
	DeviceURL      string
}
