package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/Wyydra/yaphone/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Call is one call known to the Phone. Its snapshot and state only change on
// the phone's queue; the mutex lets readers observe them from anywhere.
type Call struct {
	id        domain.CallID
	direction domain.Direction
	phone     *Phone

	mu         sync.RWMutex
	url        string
	snapshot   *domain.Snapshot
	state      domain.CallState
	audioMuted bool
	videoMuted bool
	sharing    bool

	// queue only
	session        port.MediaSession
	constraints    domain.MediaConstraints
	awaitingAnswer bool
	dtmfSeq        int
}

func newCall(p *Phone, dir domain.Direction, state domain.CallState) *Call {
	return &Call{
		id:        domain.NewCallID(),
		direction: dir,
		phone:     p,
		state:     state,
	}
}

func (c *Call) ID() domain.CallID           { return c.id }
func (c *Call) Direction() domain.Direction { return c.direction }

func (c *Call) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

func (c *Call) State() domain.CallState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Call) Snapshot() *domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// CallView is a read-only copy of a call for the application layer.
type CallView struct {
	ID               string              `json:"id"`
	URL              string              `json:"url"`
	Direction        domain.Direction    `json:"direction"`
	Group            bool                `json:"group"`
	State            domain.Phase        `json:"state"`
	Reason           domain.Reason       `json:"reason,omitempty"`
	AudioMuted       bool                `json:"audioMuted"`
	VideoMuted       bool                `json:"videoMuted"`
	Sharing          bool                `json:"sharing"`
	RemoteAudioMuted bool                `json:"remoteAudioMuted"`
	RemoteVideoMuted bool                `json:"remoteVideoMuted"`
	RemoteSharing    bool                `json:"remoteSharing"`
	Memberships      []domain.Membership `json:"memberships"`
}

func (c *Call) View() CallView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CallView{
		ID:               c.id.String(),
		URL:              c.url,
		Direction:        c.direction,
		Group:            c.snapshot.IsGroup(),
		State:            c.state.Phase,
		Reason:           c.state.Reason,
		AudioMuted:       c.audioMuted,
		VideoMuted:       c.videoMuted,
		Sharing:          c.sharing,
		RemoteAudioMuted: c.snapshot.RemoteAudioMuted(),
		RemoteVideoMuted: c.snapshot.RemoteVideoMuted(),
		RemoteSharing:    c.snapshot.IsRemoteSharing(),
		Memberships:      c.snapshot.Memberships(),
	}
}

func (c *Call) logger() *zerolog.Logger {
	l := log.With().Str("call_id", c.id.String()).Str("call_url", c.URL()).Logger()
	return &l
}

// Answer joins an incoming call from this device.
func (c *Call) Answer(ctx context.Context, constraints domain.MediaConstraints) error {
	return c.phone.queue.Do(ctx, func() error {
		return c.answerLocked(context.WithoutCancel(ctx), constraints)
	})
}

func (c *Call) answerLocked(ctx context.Context, constraints domain.MediaConstraints) error {
	if c.direction != domain.DirectionIncoming {
		return fmt.Errorf("%w: cannot answer an outgoing call", domain.ErrIllegalOperation)
	}
	if st := c.State(); st.Phase != domain.PhaseRingingIncoming {
		return fmt.Errorf("%w: cannot answer a call in state %s", domain.ErrIllegalStatus, st)
	}
	dev, err := c.phone.requireDeviceLocked()
	if err != nil {
		return err
	}
	if c.phone.hasActiveCallLocked(c) {
		return fmt.Errorf("%w: other active calls", domain.ErrIllegalOperation)
	}

	offer, err := c.prepareMediaLocked(ctx, constraints)
	if err != nil {
		return err
	}
	snap, err := c.phone.control.Join(ctx, c.URL(), dev, c.localMedia(offer, ""))
	if err != nil {
		c.closeMediaLocked()
		return fmt.Errorf("%w: join: %w", domain.ErrServiceFailed, err)
	}
	c.applyLocked(snap)
	return nil
}

// Reject declines an incoming call that is still ringing.
func (c *Call) Reject(ctx context.Context) error {
	return c.phone.queue.Do(ctx, func() error {
		return c.rejectLocked(context.WithoutCancel(ctx))
	})
}

func (c *Call) rejectLocked(ctx context.Context) error {
	if c.direction != domain.DirectionIncoming {
		return fmt.Errorf("%w: cannot reject an outgoing call", domain.ErrIllegalOperation)
	}
	if st := c.State(); st.Phase != domain.PhaseRingingIncoming {
		return fmt.Errorf("%w: cannot reject a call in state %s", domain.ErrIllegalStatus, st)
	}
	dev, err := c.phone.requireDeviceLocked()
	if err != nil {
		return err
	}
	if err := c.phone.control.Decline(ctx, c.URL(), dev); err != nil {
		return fmt.Errorf("%w: decline: %w", domain.ErrServiceFailed, err)
	}
	return nil
}

// Hangup leaves the call. A ringing incoming call is declined instead.
func (c *Call) Hangup(ctx context.Context) error {
	return c.phone.queue.Do(ctx, func() error {
		return c.hangupLocked(context.WithoutCancel(ctx))
	})
}

func (c *Call) hangupLocked(ctx context.Context) error {
	st := c.State()
	if st.Terminal() {
		return fmt.Errorf("%w: call already %s", domain.ErrIllegalStatus, st)
	}
	if st.Phase == domain.PhaseRingingIncoming {
		return c.rejectLocked(ctx)
	}
	dev, err := c.phone.requireDeviceLocked()
	if err != nil {
		return err
	}
	if c.isLocalSharing(dev.URL) {
		if err := c.releaseFloorLocked(ctx, dev); err != nil {
			c.logger().Warn().Err(err).Msg("Failed to release share floor before leaving")
		}
	}
	snap, err := c.phone.control.Leave(ctx, c.Snapshot().SelfURL(), dev)
	if err != nil {
		return fmt.Errorf("%w: leave: %w", domain.ErrServiceFailed, err)
	}
	c.applyLocked(snap)
	return nil
}

func (c *Call) SetSendingAudio(ctx context.Context, send bool) error {
	return c.setMuted(ctx, domain.MediaAudio, !send)
}

func (c *Call) SetSendingVideo(ctx context.Context, send bool) error {
	return c.setMuted(ctx, domain.MediaVideo, !send)
}

func (c *Call) setMuted(ctx context.Context, kind domain.MediaKind, muted bool) error {
	return c.phone.queue.Do(ctx, func() error {
		if err := c.requireConnected(); err != nil {
			return err
		}
		if c.session == nil {
			return fmt.Errorf("%w: no media session", domain.ErrIllegalStatus)
		}
		if err := c.session.Mute(kind, muted); err != nil {
			return fmt.Errorf("%w: mute %s: %w", domain.ErrServiceFailed, kind, err)
		}
		c.mu.Lock()
		if kind == domain.MediaAudio {
			c.audioMuted = muted
		} else {
			c.videoMuted = muted
		}
		c.mu.Unlock()
		return c.updateMediaLocked(context.WithoutCancel(ctx))
	})
}

// UpdateMedia renegotiates media with a fresh local offer.
func (c *Call) UpdateMedia(ctx context.Context) error {
	return c.phone.queue.Do(ctx, func() error {
		if err := c.requireConnected(); err != nil {
			return err
		}
		return c.updateMediaLocked(context.WithoutCancel(ctx))
	})
}

func (c *Call) updateMediaLocked(ctx context.Context) error {
	dev, err := c.phone.requireDeviceLocked()
	if err != nil {
		return err
	}
	if c.session == nil {
		return fmt.Errorf("%w: no media session", domain.ErrIllegalStatus)
	}
	snap := c.Snapshot()
	leg, ok := snap.MediaLeg(dev.URL)
	if !ok || snap.SelfMediaURL() == "" {
		return fmt.Errorf("%w: no media connection for this device", domain.ErrIllegalStatus)
	}
	offer, err := c.session.LocalOffer(ctx)
	if err != nil {
		return fmt.Errorf("%w: local offer: %w", domain.ErrServiceFailed, err)
	}
	c.awaitingAnswer = true
	next, err := c.phone.control.UpdateMedia(ctx, snap.SelfMediaURL(), dev, c.localMedia(offer, leg.MediaID))
	if err != nil {
		return fmt.Errorf("%w: update media: %w", domain.ErrServiceFailed, err)
	}
	c.applyLocked(next)
	return nil
}

func (c *Call) StartSharing(ctx context.Context) error {
	return c.phone.queue.Do(ctx, func() error {
		ctx := context.WithoutCancel(ctx)
		if err := c.requireConnected(); err != nil {
			return err
		}
		if c.session == nil || !c.session.CanShare() {
			return fmt.Errorf("%w: media session cannot share", domain.ErrIllegalStatus)
		}
		dev, err := c.phone.requireDeviceLocked()
		if err != nil {
			return err
		}
		if c.isLocalSharing(dev.URL) {
			return fmt.Errorf("%w: already sharing", domain.ErrIllegalStatus)
		}
		share, ok := c.Snapshot().ShareFloor()
		if !ok || share.URL == "" {
			return fmt.Errorf("%w: call has no share floor", domain.ErrIllegalStatus)
		}
		req := domain.FloorRequest{
			Disposition:    domain.FloorGranted,
			ParticipantURL: c.Snapshot().SelfURL(),
			DeviceURL:      dev.URL,
		}
		if err := c.phone.control.UpdateShareFloor(ctx, share.URL, req); err != nil {
			return fmt.Errorf("%w: grant floor: %w", domain.ErrServiceFailed, err)
		}
		if err := c.session.StartShare(); err != nil {
			req.Disposition = domain.FloorReleased
			if rerr := c.phone.control.UpdateShareFloor(ctx, share.URL, req); rerr != nil {
				c.logger().Warn().Err(rerr).Msg("Failed to release share floor after local share failed")
			}
			return fmt.Errorf("%w: start share: %w", domain.ErrServiceFailed, err)
		}
		c.mu.Lock()
		c.sharing = true
		c.mu.Unlock()
		return nil
	})
}

func (c *Call) StopSharing(ctx context.Context) error {
	return c.phone.queue.Do(ctx, func() error {
		if err := c.requireConnected(); err != nil {
			return err
		}
		dev, err := c.phone.requireDeviceLocked()
		if err != nil {
			return err
		}
		if !c.isLocalSharing(dev.URL) {
			return fmt.Errorf("%w: not sharing", domain.ErrIllegalStatus)
		}
		return c.releaseFloorLocked(context.WithoutCancel(ctx), dev)
	})
}

func (c *Call) releaseFloorLocked(ctx context.Context, dev *domain.Device) error {
	share, ok := c.Snapshot().ShareFloor()
	if !ok || share.URL == "" {
		return fmt.Errorf("%w: call has no share floor", domain.ErrIllegalStatus)
	}
	req := domain.FloorRequest{
		Disposition:    domain.FloorReleased,
		ParticipantURL: c.Snapshot().SelfURL(),
		DeviceURL:      dev.URL,
	}
	if err := c.phone.control.UpdateShareFloor(ctx, share.URL, req); err != nil {
		return fmt.Errorf("%w: release floor: %w", domain.ErrServiceFailed, err)
	}
	if c.session != nil {
		if err := c.session.StopShare(); err != nil {
			c.logger().Warn().Err(err).Msg("Failed to stop local share")
		}
	}
	c.mu.Lock()
	c.sharing = false
	c.mu.Unlock()
	return nil
}

const dtmfTones = "0123456789*#ABCDabcd"

// SendDTMF sends tones to the session service. Tones queue behind each other
// on the phone's queue, each batch under the next correlation id.
func (c *Call) SendDTMF(ctx context.Context, tones string) error {
	if tones == "" || strings.Trim(tones, dtmfTones) != "" {
		return fmt.Errorf("%w: invalid dtmf tones %q", domain.ErrIllegalOperation, tones)
	}
	return c.phone.queue.Do(ctx, func() error {
		if err := c.requireConnected(); err != nil {
			return err
		}
		snap := c.Snapshot()
		if !snap.CanSendDTMF() {
			return fmt.Errorf("%w: dtmf not enabled for this call", domain.ErrIllegalStatus)
		}
		dev, err := c.phone.requireDeviceLocked()
		if err != nil {
			return err
		}
		c.dtmfSeq++
		if err := c.phone.control.SendDTMF(context.WithoutCancel(ctx), snap.SelfURL(), dev, c.dtmfSeq, tones); err != nil {
			return fmt.Errorf("%w: send dtmf: %w", domain.ErrServiceFailed, err)
		}
		c.logger().Debug().Int("correlation_id", c.dtmfSeq).Msg("DTMF sent")
		return nil
	})
}

// ViewMetrics reports the size of the local video view. Without a media
// session it falls back to the requested constraints.
func (c *Call) ViewMetrics(ctx context.Context) (domain.ViewMetrics, error) {
	var m domain.ViewMetrics
	err := c.phone.queue.Do(ctx, func() error {
		if c.session == nil {
			m = domain.ViewMetrics{Width: c.constraints.VideoWidth, Height: c.constraints.VideoHeight}
			return nil
		}
		m = c.session.ViewMetrics()
		return nil
	})
	return m, err
}

func (c *Call) requireConnected() error {
	if st := c.State(); st.Phase != domain.PhaseConnected {
		return fmt.Errorf("%w: call is %s, not connected", domain.ErrIllegalStatus, st)
	}
	return nil
}

func (c *Call) isLocalSharing(deviceURL string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sharing || c.snapshot.IsLocalSharing(deviceURL)
}

func (c *Call) localMedia(offer, mediaID string) domain.LocalMedia {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.LocalMedia{
		MediaID:    mediaID,
		SDP:        offer,
		AudioMuted: c.audioMuted,
		VideoMuted: c.videoMuted,
	}
}

func (c *Call) prepareMediaLocked(ctx context.Context, constraints domain.MediaConstraints) (string, error) {
	session, err := c.phone.media.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: media session: %w", domain.ErrServiceFailed, err)
	}
	if err := session.Prepare(constraints); err != nil {
		session.Close()
		return "", fmt.Errorf("%w: prepare media: %w", domain.ErrServiceFailed, err)
	}
	offer, err := session.LocalOffer(ctx)
	if err != nil {
		session.Close()
		return "", fmt.Errorf("%w: local offer: %w", domain.ErrServiceFailed, err)
	}
	c.session = session
	c.constraints = constraints
	c.awaitingAnswer = true
	c.mu.Lock()
	c.audioMuted = !constraints.Audio
	c.videoMuted = !constraints.Video
	c.mu.Unlock()
	return offer, nil
}

func (c *Call) closeMediaLocked() {
	if c.session == nil {
		return
	}
	if err := c.session.Close(); err != nil {
		c.logger().Warn().Err(err).Msg("Failed to close media session")
	}
	c.session = nil
}

// applyLocked feeds one snapshot through ordering, media and the state machine.
func (c *Call) applyLocked(snap *domain.Snapshot) {
	c.apply(snap, true)
}

func (c *Call) apply(snap *domain.Snapshot, refetch bool) {
	l := c.logger()
	if !snap.Valid() {
		l.Warn().Msg("Dropping invalid snapshot")
		return
	}
	if c.State().Terminal() {
		l.Debug().Msg("Snapshot for ended call ignored")
		return
	}

	prev := c.Snapshot()
	var held domain.Sequence
	if prev != nil {
		held = prev.Sequence
	}
	switch domain.ShouldOverwrite(held, snap.Sequence) {
	case domain.OverwriteReject:
		l.Debug().Uints64("entries", snap.Sequence.Entries).Msg("Stale or duplicate snapshot dropped")
		return
	case domain.OverwriteDesync:
		if !refetch {
			l.Warn().Msg("Snapshot still out of sync after fetch, dropped")
			return
		}
		l.Info().Msg("Snapshot sequence diverged, fetching call")
		fresh, err := c.phone.control.Fetch(context.Background(), snap.CallURL())
		if err != nil {
			l.Error().Err(err).Msg("Failed to fetch call after desync")
			return
		}
		c.apply(fresh, false)
		return
	}

	c.mu.Lock()
	c.snapshot = snap
	if c.url == "" {
		c.url = snap.CallURL()
	}
	c.mu.Unlock()

	deviceURL := c.phone.deviceURLLocked()
	c.applyRemoteMediaLocked(snap, deviceURL)
	c.syncShareLocked(snap, deviceURL)

	if changes := domain.MediaChanges(prev, snap, deviceURL); len(changes) > 0 && prev != nil {
		payload, err := json.Marshal(map[string]any{"changes": changes})
		if err != nil {
			l.Error().Err(err).Msg("Failed to encode media changes")
		} else {
			c.phone.publish(domain.Notification{
				Type:    domain.NotifyMedia,
				CallID:  c.id.String(),
				CallURL: c.URL(),
				Payload: payload,
			})
		}
	}

	cur := c.State()
	next, effect, ok := domain.Transition(cur, snap, deviceURL)
	if !ok {
		l.Debug().Str("state", cur.String()).Msg("Snapshot matched no transition")
		return
	}
	c.setStateLocked(next)

	if next.Terminal() && effect == domain.EffectLeave {
		if dev := c.phone.device; dev != nil {
			if _, err := c.phone.control.Leave(context.Background(), snap.SelfURL(), dev); err != nil {
				l.Warn().Err(err).Msg("Failed to leave after remote ended the call")
			}
		}
	}
}

func (c *Call) applyRemoteMediaLocked(snap *domain.Snapshot, deviceURL string) {
	if c.session == nil || !c.awaitingAnswer {
		return
	}
	leg, ok := snap.MediaLeg(deviceURL)
	if !ok {
		return
	}
	info, ok := leg.Remote()
	if !ok {
		return
	}
	if err := c.session.ApplyRemoteAnswer(info.SDP); err != nil {
		c.logger().Error().Err(err).Msg("Failed to apply remote answer")
		return
	}
	c.awaitingAnswer = false
}

// syncShareLocked drops the local share once a snapshot reports the floor
// held by someone else or released. A snapshot without floor details
// leaves it alone.
func (c *Call) syncShareLocked(snap *domain.Snapshot, deviceURL string) {
	c.mu.RLock()
	sharing := c.sharing
	c.mu.RUnlock()
	if !sharing {
		return
	}
	share, ok := snap.ShareFloor()
	if !ok || share.Floor == nil || snap.IsLocalSharing(deviceURL) {
		return
	}
	if c.session != nil {
		if err := c.session.StopShare(); err != nil {
			c.logger().Warn().Err(err).Msg("Failed to stop local share")
		}
	}
	c.mu.Lock()
	c.sharing = false
	c.mu.Unlock()
	c.logger().Info().Str("floor", string(share.Floor.Disposition)).Msg("Share floor lost")
}

// setStateLocked records a transition, notifies about it and, when terminal,
// removes the call from the phone.
func (c *Call) setStateLocked(next domain.CallState) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev == next {
		return
	}
	c.logger().Info().Str("from", prev.String()).Str("to", next.String()).Msg("Call state changed")

	n := domain.Notification{
		CallID:  c.id.String(),
		CallURL: c.URL(),
		State:   next.Phase,
		Reason:  next.Reason,
	}
	switch next.Phase {
	case domain.PhaseRingingOutgoing:
		n.Type = domain.NotifyRinging
	case domain.PhaseConnected:
		n.Type = domain.NotifyConnected
	case domain.PhaseDisconnected:
		n.Type = domain.NotifyDisconnected
	default:
		return
	}
	c.phone.publish(n)

	if next.Terminal() {
		c.mu.Lock()
		c.sharing = false
		c.mu.Unlock()
		c.closeMediaLocked()
		c.phone.removeLocked(c)
	}
}

// endLocked forces the call to Disconnected without a snapshot.
func (c *Call) endLocked(reason domain.Reason) {
	if c.State().Terminal() {
		return
	}
	c.setStateLocked(domain.Disconnected(reason))
}
