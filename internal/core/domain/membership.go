package domain

// Membership is the public view of one participant of a call.
type Membership struct {
	ID          string           `json:"id"`
	State       ParticipantState `json:"state"`
	Self        bool             `json:"self"`
	Initiator   bool             `json:"initiator"`
	PersonID    string           `json:"personId,omitempty"`
	Name        string           `json:"name,omitempty"`
	Email       string           `json:"email,omitempty"`
	SIPURL      string           `json:"sipUrl,omitempty"`
	PhoneNumber string           `json:"phoneNumber,omitempty"`
}

// Memberships lists the call's USER participants in snapshot order.
func (s *Snapshot) Memberships() []Membership {
	if s == nil {
		return nil
	}
	out := make([]Membership, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.Type != participantTypeUser {
			continue
		}
		m := Membership{
			ID:        p.ID,
			State:     p.State,
			Self:      s.Self != nil && p.ID == s.Self.ID,
			Initiator: p.IsCreator,
		}
		if p.Person != nil {
			m.PersonID = p.Person.ID
			m.Name = p.Person.Name
			m.Email = p.Person.Email
			m.SIPURL = p.Person.SIPURL
			m.PhoneNumber = p.Person.PhoneNumber
		}
		out = append(out, m)
	}
	return out
}

// CanSendDTMF reports whether the session service accepts tones from this user.
func (s *Snapshot) CanSendDTMF() bool {
	return s != nil && s.Self != nil && s.Self.EnableDTMF
}
