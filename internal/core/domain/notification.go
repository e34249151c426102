package domain

import "encoding/json"

type NotificationType string

const (
	NotifyIncoming     NotificationType = "incoming"
	NotifyRinging      NotificationType = "ringing"
	NotifyConnected    NotificationType = "connected"
	NotifyDisconnected NotificationType = "disconnected"
	NotifyMedia        NotificationType = "media"
	NotifyActivity     NotificationType = "activity"
	NotifyKMS          NotificationType = "kms"
)

// Notification is what the application layer gets told about.
type Notification struct {
	Type    NotificationType `json:"type"`
	CallID  string           `json:"callId,omitempty"`
	CallURL string           `json:"callUrl,omitempty"`
	State   Phase            `json:"state,omitempty"`
	Reason  Reason           `json:"reason,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

type MediaChange string

const (
	MediaChangeRemoteAudioMuted   MediaChange = "remoteAudioMuted"
	MediaChangeRemoteAudioUnmuted MediaChange = "remoteAudioUnmuted"
	MediaChangeRemoteVideoMuted   MediaChange = "remoteVideoMuted"
	MediaChangeRemoteVideoUnmuted MediaChange = "remoteVideoUnmuted"
	MediaChangeRemoteShareStarted MediaChange = "remoteShareStarted"
	MediaChangeRemoteShareStopped MediaChange = "remoteShareStopped"
	MediaChangeLocalShareStarted  MediaChange = "localShareStarted"
	MediaChangeLocalShareStopped  MediaChange = "localShareStopped"
)

// MediaChanges lists what differs between two consecutive snapshots of a call.
func MediaChanges(prev, next *Snapshot, deviceURL string) []MediaChange {
	if next == nil {
		return nil
	}
	var out []MediaChange
	flip := func(was, is bool, on, off MediaChange) {
		if was == is {
			return
		}
		if is {
			out = append(out, on)
		} else {
			out = append(out, off)
		}
	}
	flip(prev.RemoteAudioMuted(), next.RemoteAudioMuted(), MediaChangeRemoteAudioMuted, MediaChangeRemoteAudioUnmuted)
	flip(prev.RemoteVideoMuted(), next.RemoteVideoMuted(), MediaChangeRemoteVideoMuted, MediaChangeRemoteVideoUnmuted)
	flip(prev.IsRemoteSharing(), next.IsRemoteSharing(), MediaChangeRemoteShareStarted, MediaChangeRemoteShareStopped)
	flip(prev.IsLocalSharing(deviceURL), next.IsLocalSharing(deviceURL), MediaChangeLocalShareStarted, MediaChangeLocalShareStopped)
	return out
}
