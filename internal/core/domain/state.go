package domain

type Phase string

const (
	PhaseInitiated       Phase = "initiated"
	PhaseRingingIncoming Phase = "ringing_incoming"
	PhaseRingingOutgoing Phase = "ringing_outgoing"
	PhaseConnected       Phase = "connected"
	PhaseDisconnected    Phase = "disconnected"
)

type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonLocalLeft            Reason = "localLeft"
	ReasonLocalDeclined        Reason = "localDeclined"
	ReasonLocalCancelled       Reason = "localCancelled"
	ReasonRemoteLeft           Reason = "remoteLeft"
	ReasonRemoteDeclined       Reason = "remoteDeclined"
	ReasonRemoteCancelled      Reason = "remoteCancelled"
	ReasonOtherDeviceConnected Reason = "otherDeviceConnected"
	ReasonOtherDeviceDeclined  Reason = "otherDeviceDeclined"
	ReasonError                Reason = "error"
)

// CallState is the lifecycle position of a call. Reason is set only when
// Phase is PhaseDisconnected.
type CallState struct {
	Phase  Phase  `json:"phase"`
	Reason Reason `json:"reason,omitempty"`
}

func Disconnected(r Reason) CallState {
	return CallState{Phase: PhaseDisconnected, Reason: r}
}

func (s CallState) Terminal() bool {
	return s.Phase == PhaseDisconnected
}

// Active reports whether the call holds the device: dialing, ringing out or connected.
func (s CallState) Active() bool {
	switch s.Phase {
	case PhaseInitiated, PhaseRingingOutgoing, PhaseConnected:
		return true
	}
	return false
}

func (s CallState) String() string {
	if s.Reason != ReasonNone {
		return string(s.Phase) + "(" + string(s.Reason) + ")"
	}
	return string(s.Phase)
}

// SideEffect is work the owner of the call has to perform after a transition.
type SideEffect int

const (
	EffectNone SideEffect = iota
	// EffectLeave: the remote side ended the call, release this device on the server too.
	EffectLeave
)

// Transition applies one snapshot to the current state. ok is false when no
// rule matched, in which case next equals cur.
func Transition(cur CallState, snap *Snapshot, deviceURL string) (next CallState, effect SideEffect, ok bool) {
	if snap == nil {
		return cur, EffectNone, false
	}

	switch cur.Phase {
	case PhaseInitiated:
		switch {
		case snap.HasLeft():
			return Disconnected(ReasonLocalCancelled), EffectNone, true
		case snap.HasJoinedOnThisDevice(deviceURL) && snap.RemotesPending():
			return CallState{Phase: PhaseRingingOutgoing}, EffectNone, true
		}

	case PhaseRingingIncoming:
		if snap.HasRemoteJoined() {
			switch {
			case snap.HasJoinedOnThisDevice(deviceURL):
				return CallState{Phase: PhaseConnected}, EffectNone, true
			case snap.HasJoinedOnOtherDevice(deviceURL):
				return Disconnected(ReasonOtherDeviceConnected), EffectNone, true
			case snap.HasDeclined(deviceURL):
				return Disconnected(ReasonLocalDeclined), EffectNone, true
			case snap.HasDeclinedOnOtherDevice(deviceURL):
				return Disconnected(ReasonOtherDeviceDeclined), EffectNone, true
			}
		} else if snap.HasRemoteLeft() {
			return Disconnected(ReasonRemoteCancelled), EffectNone, true
		}

	case PhaseRingingOutgoing:
		switch {
		case snap.HasLeft():
			return Disconnected(ReasonLocalCancelled), EffectNone, true
		case snap.HasRemoteJoined():
			return CallState{Phase: PhaseConnected}, EffectNone, true
		case snap.HasRemoteDeclined():
			return Disconnected(ReasonRemoteDeclined), EffectLeave, true
		}

	case PhaseConnected:
		switch {
		case snap.HasLeft():
			return Disconnected(ReasonLocalLeft), EffectNone, true
		case !snap.HasRemoteJoined() && snap.HasRemoteLeft():
			return Disconnected(ReasonRemoteLeft), EffectLeave, true
		}
	}
	return cur, EffectNone, false
}
