package domain

// Queries over a Snapshot. All of them are pure: the answer depends only on
// the snapshot and the device URL passed in.

const (
	participantTypeUser = "USER"
	fullStateActive     = "ACTIVE"
	alertFull           = "FULL"
)

func (s *Snapshot) selfState() ParticipantState {
	if s == nil || s.Self == nil {
		return ""
	}
	return s.Self.State
}

func (s *Snapshot) HasJoined() bool {
	return s.selfState() == ParticipantJoined
}

func (s *Snapshot) HasLeft() bool {
	return s.selfState() == ParticipantLeft
}

// HasDeclined reports whether self declined from the device at deviceURL.
func (s *Snapshot) HasDeclined(deviceURL string) bool {
	return s.selfState() == ParticipantDeclined && s.Self.DeviceURL == deviceURL
}

// HasDeclinedOnOtherDevice reports whether self declined from any device but deviceURL.
func (s *Snapshot) HasDeclinedOnOtherDevice(deviceURL string) bool {
	return s.selfState() == ParticipantDeclined && s.Self.DeviceURL != deviceURL
}

func (s *Snapshot) HasJoinedOnThisDevice(deviceURL string) bool {
	if !s.HasJoined() {
		return false
	}
	for _, d := range s.Self.Devices {
		if d.URL == deviceURL && d.State == DeviceStateJoined {
			return true
		}
	}
	return false
}

func (s *Snapshot) HasJoinedOnOtherDevice(deviceURL string) bool {
	if !s.HasJoined() {
		return false
	}
	for _, d := range s.Self.Devices {
		if d.URL != deviceURL && d.State == DeviceStateJoined {
			return true
		}
	}
	return false
}

// Remote returns every participant but self.
func (s *Snapshot) Remote() []Participant {
	if s == nil {
		return nil
	}
	var selfID string
	if s.Self != nil {
		selfID = s.Self.ID
	}
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.ID != selfID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Snapshot) anyRemote(state ParticipantState) bool {
	for _, p := range s.Remote() {
		if p.State == state {
			return true
		}
	}
	return false
}

func (s *Snapshot) HasRemoteJoined() bool   { return s.anyRemote(ParticipantJoined) }
func (s *Snapshot) HasRemoteLeft() bool     { return s.anyRemote(ParticipantLeft) }
func (s *Snapshot) HasRemoteDeclined() bool { return s.anyRemote(ParticipantDeclined) }

// RemotesPending reports whether every remote participant is still idle or
// being notified, i.e. nobody answered yet.
func (s *Snapshot) RemotesPending() bool {
	for _, p := range s.Remote() {
		if p.State != ParticipantIdle && p.State != ParticipantNotified {
			return false
		}
	}
	return true
}

// IsIncoming reports whether the snapshot rings this user.
func (s *Snapshot) IsIncoming() bool {
	if !s.Valid() || s.FullState.State != fullStateActive || s.HasJoined() {
		return false
	}
	return s.Self.AlertType.Action == alertFull || s.Self.State == ParticipantNotified
}

// IsGroup is false for a call between exactly two users.
func (s *Snapshot) IsGroup() bool {
	if s == nil {
		return false
	}
	n := 0
	for _, p := range s.Participants {
		if p.Type == participantTypeUser {
			n++
		}
	}
	return n != 2
}

// ThisDevice returns self's entry for the device at deviceURL.
func (s *Snapshot) ThisDevice(deviceURL string) (ParticipantDevice, bool) {
	if s == nil || s.Self == nil {
		return ParticipantDevice{}, false
	}
	for _, d := range s.Self.Devices {
		if d.URL == deviceURL {
			return d, true
		}
	}
	return ParticipantDevice{}, false
}

// MediaLeg returns the first media connection of this device.
func (s *Snapshot) MediaLeg(deviceURL string) (MediaLeg, bool) {
	d, ok := s.ThisDevice(deviceURL)
	if !ok || len(d.MediaLegs) == 0 {
		return MediaLeg{}, false
	}
	return d.MediaLegs[0], true
}

func (s *Snapshot) SelfURL() string {
	if s == nil || s.Self == nil {
		return ""
	}
	return s.Self.URL
}

func (s *Snapshot) SelfMediaURL() string {
	if s == nil || s.Self == nil {
		return ""
	}
	return s.Self.MediaBaseURL
}

func mutedStatus(status string) bool {
	return status == "RECVONLY" || status == "INACTIVE"
}

// RemoteAudioMuted is true when every joined remote participant stopped sending audio.
func (s *Snapshot) RemoteAudioMuted() bool {
	return s.allJoinedRemote(func(p Participant) bool { return mutedStatus(p.Status.AudioStatus) })
}

func (s *Snapshot) RemoteVideoMuted() bool {
	return s.allJoinedRemote(func(p Participant) bool { return mutedStatus(p.Status.VideoStatus) })
}

func (s *Snapshot) allJoinedRemote(pred func(Participant) bool) bool {
	joined := 0
	for _, p := range s.Remote() {
		if p.State != ParticipantJoined {
			continue
		}
		joined++
		if !pred(p) {
			return false
		}
	}
	return joined > 0
}

// ShareFloor returns the content share entry, if the call has one.
func (s *Snapshot) ShareFloor() (MediaShare, bool) {
	if s == nil {
		return MediaShare{}, false
	}
	for _, m := range s.MediaShares {
		if m.Name == "content" {
			return m, true
		}
	}
	return MediaShare{}, false
}

// SharingParticipant returns the id of the participant holding a granted floor.
func (s *Snapshot) SharingParticipant() string {
	m, ok := s.ShareFloor()
	if !ok || m.Floor == nil || m.Floor.Disposition != FloorGranted || m.Floor.Beneficiary == nil {
		return ""
	}
	return m.Floor.Beneficiary.ID
}

// IsLocalSharing reports whether this device holds the share floor.
func (s *Snapshot) IsLocalSharing(deviceURL string) bool {
	m, ok := s.ShareFloor()
	if !ok || m.Floor == nil || m.Floor.Disposition != FloorGranted || m.Floor.Beneficiary == nil {
		return false
	}
	return s.Self != nil && m.Floor.Beneficiary.ID == s.Self.ID && m.Floor.Beneficiary.DeviceURL == deviceURL
}

func (s *Snapshot) IsRemoteSharing() bool {
	id := s.SharingParticipant()
	return id != "" && (s.Self == nil || id != s.Self.ID)
}
