package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/Wyydra/yaphone/internal/core/port"
	"github.com/rs/zerolog/log"
)

type PhoneConfig struct {
	DeviceInfo  domain.DeviceInfo
	Constraints domain.MediaConstraints
	QueueSize   int
}

// Phone owns the device registration and every call. All of its state is
// mutated on a single queue; methods suffixed Locked must run on it.
type Phone struct {
	registry  port.DeviceRegistry
	store     port.DeviceStore
	control   port.CallControl
	transport port.EventTransport
	media     port.MediaEngine
	gateway   port.RealTimeGateway
	cfg       PhoneConfig

	queue *Queue

	device *domain.Device
	calls  map[string]*Call
	byID   map[domain.CallID]*Call
}

func NewPhone(
	registry port.DeviceRegistry,
	store port.DeviceStore,
	control port.CallControl,
	transport port.EventTransport,
	media port.MediaEngine,
	gateway port.RealTimeGateway,
	cfg PhoneConfig,
) *Phone {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Constraints == (domain.MediaConstraints{}) {
		cfg.Constraints = domain.DefaultConstraints()
	}
	p := &Phone{
		registry:  registry,
		store:     store,
		control:   control,
		transport: transport,
		media:     media,
		gateway:   gateway,
		cfg:       cfg,
		queue:     NewQueue(cfg.QueueSize),
		calls:     make(map[string]*Call),
		byID:      make(map[domain.CallID]*Call),
	}
	transport.SetHandler(p)
	return p
}

func (p *Phone) Run() {
	p.queue.Run()
}

func (p *Phone) Stop() {
	p.queue.Stop()
}

// DefaultConstraints is what Dial and Answer callers use when they have no preference.
func (p *Phone) DefaultConstraints() domain.MediaConstraints {
	return p.cfg.Constraints
}

// Register registers the device (resuming a stored registration when there
// is one), connects the event transport and picks up calls already in progress.
func (p *Phone) Register(ctx context.Context) (*domain.Device, error) {
	var dev *domain.Device
	err := p.queue.Do(ctx, func() error {
		ctx := context.WithoutCancel(ctx)
		d, err := p.registerLocked(ctx)
		if err != nil {
			return err
		}
		if err := p.transport.Connect(ctx, d.WebSocketURL); err != nil {
			return fmt.Errorf("%w: connect events: %w", domain.ErrServiceFailed, err)
		}
		dev = d
		p.resyncLocked(ctx)
		return nil
	})
	return dev, err
}

func (p *Phone) registerLocked(ctx context.Context) (*domain.Device, error) {
	existing := ""
	if p.device != nil {
		existing = p.device.URL
	} else if stored, err := p.store.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load stored device")
	} else {
		existing = stored
	}

	dev, err := p.registry.Register(ctx, existing, p.cfg.DeviceInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: register device: %w", domain.ErrServiceFailed, err)
	}
	if err := p.store.Save(ctx, dev.URL); err != nil {
		log.Warn().Err(err).Str("device_url", dev.URL).Msg("Failed to store device")
	}
	p.device = dev
	log.Info().Str("device_url", dev.URL).Bool("resumed", existing == dev.URL).Msg("Device registered")
	return dev, nil
}

// Deregister removes the device at the server, then ends every call and
// disconnects the transport.
func (p *Phone) Deregister(ctx context.Context) error {
	return p.queue.Do(ctx, func() error {
		ctx := context.WithoutCancel(ctx)
		dev, err := p.requireDeviceLocked()
		if err != nil {
			return err
		}
		// A failed deregistration leaves the device, its calls and the
		// event stream as they were.
		if err := p.registry.Deregister(ctx, dev.URL); err != nil {
			return fmt.Errorf("%w: deregister device: %w", domain.ErrServiceFailed, err)
		}
		for _, c := range p.byID {
			c.endLocked(domain.ReasonError)
		}
		if err := p.transport.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("Failed to disconnect events")
		}
		if err := p.store.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clear stored device")
		}
		p.device = nil
		log.Info().Str("device_url", dev.URL).Msg("Device deregistered")
		return nil
	})
}

func (p *Phone) Device(ctx context.Context) (*domain.Device, error) {
	var dev *domain.Device
	err := p.queue.Do(ctx, func() error {
		d, err := p.requireDeviceLocked()
		dev = d
		return err
	})
	return dev, err
}

// Dial starts an outgoing call. It fails with ErrIllegalOperation when
// another call is active.
func (p *Phone) Dial(ctx context.Context, target string, constraints domain.MediaConstraints) (*Call, error) {
	var call *Call
	err := p.queue.Do(ctx, func() error {
		c, err := p.dialLocked(context.WithoutCancel(ctx), target, constraints)
		call = c
		return err
	})
	return call, err
}

func (p *Phone) dialLocked(ctx context.Context, target string, constraints domain.MediaConstraints) (*Call, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: empty dial target", domain.ErrIllegalOperation)
	}
	dev, err := p.requireDeviceLocked()
	if err != nil {
		return nil, err
	}
	if p.hasActiveCallLocked(nil) {
		return nil, fmt.Errorf("%w: other active calls", domain.ErrIllegalOperation)
	}

	c := newCall(p, domain.DirectionOutgoing, domain.CallState{Phase: domain.PhaseInitiated})
	offer, err := c.prepareMediaLocked(ctx, constraints)
	if err != nil {
		return nil, err
	}
	snap, err := p.control.Create(ctx, target, dev, c.localMedia(offer, ""))
	if err != nil {
		c.closeMediaLocked()
		return nil, fmt.Errorf("%w: create call: %w", domain.ErrServiceFailed, err)
	}
	if !snap.Valid() {
		c.closeMediaLocked()
		return nil, fmt.Errorf("%w: create call: response without session", domain.ErrServiceFailed)
	}

	c.url = snap.CallURL()
	p.addLocked(c)
	log.Info().Str("call_id", c.id.String()).Str("call_url", c.url).Str("target", target).Msg("Outgoing call created")
	c.applyLocked(snap)
	return c, nil
}

func (p *Phone) Calls(ctx context.Context) ([]*Call, error) {
	var out []*Call
	err := p.queue.Do(ctx, func() error {
		out = make([]*Call, 0, len(p.byID))
		for _, c := range p.byID {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func (p *Phone) Call(ctx context.Context, id domain.CallID) (*Call, error) {
	var call *Call
	err := p.queue.Do(ctx, func() error {
		c, ok := p.byID[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrCallNotFound, id)
		}
		call = c
		return nil
	})
	return call, err
}

func (p *Phone) HandleSessionEvent(ev domain.SessionEvent) {
	p.queue.Go(func() { p.routeLocked(ev.Snapshot) })
}

func (p *Phone) HandleActivityEvent(ev domain.ActivityEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode activity event")
		return
	}
	p.publish(domain.Notification{Type: domain.NotifyActivity, Payload: payload})
}

func (p *Phone) HandleKeyEvent(ev domain.KeyEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode key event")
		return
	}
	p.publish(domain.Notification{Type: domain.NotifyKMS, Payload: payload})
}

// Reregister renews the registration after the transport lost its connection
// and returns the event URL to reconnect to.
func (p *Phone) Reregister(ctx context.Context) (string, error) {
	var url string
	err := p.queue.Do(ctx, func() error {
		if p.device == nil {
			return domain.ErrUnregistered
		}
		dev, err := p.registerLocked(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		url = dev.WebSocketURL
		return nil
	})
	return url, err
}

func (p *Phone) HandleReconnected() {
	p.queue.Go(func() {
		if p.device == nil {
			return
		}
		p.resyncLocked(context.Background())
	})
}

// routeLocked hands a pushed snapshot to its call, or creates the call when
// the snapshot rings this device for the first time.
func (p *Phone) routeLocked(snap *domain.Snapshot) {
	if !snap.Valid() {
		log.Warn().Msg("Dropping session event without a usable snapshot")
		return
	}
	if c := p.lookupLocked(snap); c != nil {
		c.applyLocked(snap)
		return
	}

	l := log.With().Str("call_url", snap.CallURL()).Logger()
	if p.device == nil {
		l.Warn().Msg("Session event while unregistered, dropped")
		return
	}
	if !snap.IsIncoming() {
		l.Debug().Msg("Session event for unknown call, not ringing here")
		return
	}

	c := newCall(p, domain.DirectionIncoming, domain.CallState{Phase: domain.PhaseRingingIncoming})
	c.url = snap.CallURL()
	c.snapshot = snap
	p.addLocked(c)
	l.Info().Str("call_id", c.id.String()).Msg("Incoming call")
	p.publish(domain.Notification{
		Type:    domain.NotifyIncoming,
		CallID:  c.id.String(),
		CallURL: c.url,
		State:   domain.PhaseRingingIncoming,
	})

	if err := p.control.Alert(context.Background(), snap.SelfURL(), p.device); err != nil {
		l.Warn().Err(err).Msg("Failed to alert incoming call")
	}
}

func (p *Phone) lookupLocked(snap *domain.Snapshot) *Call {
	if c, ok := p.calls[snap.CallURL()]; ok {
		return c
	}
	if c, ok := p.calls[snap.URL]; ok {
		return c
	}
	return nil
}

// resyncLocked feeds every session the server reports as active, then ends
// local calls the server no longer knows.
func (p *Phone) resyncLocked(ctx context.Context) {
	snaps, err := p.control.FetchActiveSessions(ctx, p.device)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch active sessions")
		return
	}

	seen := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		if !s.Valid() {
			continue
		}
		seen[s.CallURL()] = true
		seen[s.URL] = true
		p.routeLocked(s)
	}
	for url, c := range p.calls {
		if seen[url] {
			continue
		}
		reason := domain.ReasonRemoteLeft
		if c.State().Phase == domain.PhaseRingingIncoming {
			reason = domain.ReasonRemoteCancelled
		}
		log.Info().Str("call_url", url).Str("reason", string(reason)).Msg("Call gone from server")
		c.endLocked(reason)
	}
	log.Debug().Int("server", len(snaps)).Int("local", len(p.calls)).Msg("Calls resynced")
}

func (p *Phone) addLocked(c *Call) {
	p.calls[c.url] = c
	p.byID[c.id] = c
}

// removeLocked is safe to call more than once for the same call.
func (p *Phone) removeLocked(c *Call) {
	if _, ok := p.byID[c.id]; !ok {
		return
	}
	delete(p.byID, c.id)
	for url, other := range p.calls {
		if other == c {
			delete(p.calls, url)
		}
	}
}

// hasActiveCallLocked reports whether a call other than except holds the device.
func (p *Phone) hasActiveCallLocked(except *Call) bool {
	for _, c := range p.byID {
		if c != except && c.State().Active() {
			return true
		}
	}
	return false
}

func (p *Phone) requireDeviceLocked() (*domain.Device, error) {
	if p.device == nil {
		return nil, domain.ErrUnregistered
	}
	return p.device, nil
}

func (p *Phone) deviceURLLocked() string {
	if p.device == nil {
		return ""
	}
	return p.device.URL
}

func (p *Phone) publish(n domain.Notification) {
	if err := p.gateway.Publish(context.Background(), n); err != nil {
		log.Error().Err(err).Str("type", string(n.Type)).Msg("Failed to publish notification")
	}
}
