package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/Wyydra/yaphone/internal/core/port"
)

const (
	testDeviceURL  = "https://wdm.example.com/devices/this"
	otherDeviceURL = "https://wdm.example.com/devices/other"
	testLocusURL   = "https://locus.example.com/loci/1"
	testShareURL   = testLocusURL + "/mediashares/content"
	testSelfURL    = testLocusURL + "/participant/self"
	testMediaURL   = testSelfURL + "/media"
)

var errNetwork = errors.New("connection reset")

type fakeRegistry struct {
	mu           sync.Mutex
	registered   []string
	deregistered []string
	err          error
	deregErr     error
}

func (r *fakeRegistry) Register(_ context.Context, existingURL string, _ domain.DeviceInfo) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.registered = append(r.registered, existingURL)
	return &domain.Device{
		URL:          testDeviceURL,
		WebSocketURL: fmt.Sprintf("wss://mercury.example.com/v1/%d", len(r.registered)),
		Services:     map[string]string{"locusServiceUrl": "https://locus.example.com"},
	}, nil
}

func (r *fakeRegistry) Deregister(_ context.Context, deviceURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deregErr != nil {
		return r.deregErr
	}
	r.deregistered = append(r.deregistered, deviceURL)
	return nil
}

type fakeStore struct {
	mu  sync.Mutex
	url string
}

func (s *fakeStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *fakeStore) Save(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = ""
	return nil
}

type fakeTransport struct {
	mu           sync.Mutex
	handler      port.EventHandler
	connected    []string
	disconnected int
}

func (t *fakeTransport) Connect(_ context.Context, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = append(t.connected, url)
	return nil
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected++
	return nil
}

func (t *fakeTransport) SetHandler(h port.EventHandler) {
	t.handler = h
}

type fakeControl struct {
	mu sync.Mutex

	createSnap *domain.Snapshot
	createErr  error
	joinSnap   *domain.Snapshot
	leaveSnap  *domain.Snapshot
	mediaSnap  *domain.Snapshot
	fetchSnap  *domain.Snapshot
	active     []*domain.Snapshot
	activeErr  error

	creates  []string
	joins    []string
	leaves   []string
	declines []string
	alerts   []string
	fetches  []string
	updates  []domain.LocalMedia
	floors   []domain.FloorRequest
	offers   []domain.LocalMedia
	dtmf     []string
	dtmfIDs  []int
	dtmfErr  error
}

func (c *fakeControl) Create(_ context.Context, target string, _ *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates = append(c.creates, target)
	c.offers = append(c.offers, media)
	return c.createSnap, c.createErr
}

func (c *fakeControl) Join(_ context.Context, callURL string, _ *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins = append(c.joins, callURL)
	c.offers = append(c.offers, media)
	return c.joinSnap, nil
}

func (c *fakeControl) Leave(_ context.Context, participantURL string, _ *domain.Device) (*domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves = append(c.leaves, participantURL)
	return c.leaveSnap, nil
}

func (c *fakeControl) Decline(_ context.Context, callURL string, _ *domain.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declines = append(c.declines, callURL)
	return nil
}

func (c *fakeControl) Alert(_ context.Context, participantURL string, _ *domain.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, participantURL)
	return nil
}

func (c *fakeControl) UpdateMedia(_ context.Context, _ string, _ *domain.Device, media domain.LocalMedia) (*domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, media)
	return c.mediaSnap, nil
}

func (c *fakeControl) Fetch(_ context.Context, callURL string) (*domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches = append(c.fetches, callURL)
	return c.fetchSnap, nil
}

func (c *fakeControl) FetchActiveSessions(context.Context, *domain.Device) ([]*domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.activeErr
}

func (c *fakeControl) UpdateShareFloor(_ context.Context, _ string, floor domain.FloorRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floors = append(c.floors, floor)
	return nil
}

func (c *fakeControl) SendDTMF(_ context.Context, _ string, _ *domain.Device, correlationID int, tones string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dtmfErr != nil {
		return c.dtmfErr
	}
	c.dtmf = append(c.dtmf, tones)
	c.dtmfIDs = append(c.dtmfIDs, correlationID)
	return nil
}

type fakeMedia struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (m *fakeMedia) NewSession() (port.MediaSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &fakeSession{canShare: true}
	m.sessions = append(m.sessions, s)
	return s, nil
}

func (m *fakeMedia) last() *fakeSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return nil
	}
	return m.sessions[len(m.sessions)-1]
}

type fakeSession struct {
	offers   int
	answers  []string
	muted    map[domain.MediaKind]bool
	canShare bool
	sharing  bool
	closed   bool
	startErr error
}

func (s *fakeSession) Prepare(domain.MediaConstraints) error { return nil }

func (s *fakeSession) LocalOffer(context.Context) (string, error) {
	s.offers++
	return fmt.Sprintf("offer-%d", s.offers), nil
}

func (s *fakeSession) ApplyRemoteAnswer(sdp string) error {
	s.answers = append(s.answers, sdp)
	return nil
}

func (s *fakeSession) Mute(kind domain.MediaKind, muted bool) error {
	if s.muted == nil {
		s.muted = make(map[domain.MediaKind]bool)
	}
	s.muted[kind] = muted
	return nil
}

func (s *fakeSession) StartShare() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.sharing = true
	return nil
}

func (s *fakeSession) CanShare() bool                  { return s.canShare }
func (s *fakeSession) StopShare() error                { s.sharing = false; return nil }
func (s *fakeSession) ViewMetrics() domain.ViewMetrics { return domain.ViewMetrics{Width: 640, Height: 480} }
func (s *fakeSession) Close() error                    { s.closed = true; return nil }

type fakeGateway struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (g *fakeGateway) Publish(_ context.Context, n domain.Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, n)
	return nil
}

func (g *fakeGateway) types() []domain.NotificationType {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.NotificationType, 0, len(g.sent))
	for _, n := range g.sent {
		out = append(out, n.Type)
	}
	return out
}

type harness struct {
	phone     *Phone
	registry  *fakeRegistry
	store     *fakeStore
	control   *fakeControl
	transport *fakeTransport
	media     *fakeMedia
	gateway   *fakeGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		registry:  &fakeRegistry{},
		store:     &fakeStore{},
		control:   &fakeControl{},
		transport: &fakeTransport{},
		media:     &fakeMedia{},
		gateway:   &fakeGateway{},
	}
	h.phone = NewPhone(h.registry, h.store, h.control, h.transport, h.media, h.gateway, PhoneConfig{
		DeviceInfo:  domain.NewDeviceInfo("test"),
		Constraints: domain.DefaultConstraints(),
	})
	go h.phone.Run()
	t.Cleanup(h.phone.Stop)
	return h
}

func (h *harness) register(t *testing.T) {
	t.Helper()
	if _, err := h.phone.Register(context.Background()); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func (h *harness) push(snap *domain.Snapshot) {
	h.transport.handler.HandleSessionEvent(domain.SessionEvent{EventType: "locus.difference", Snapshot: snap})
}

// flush waits for everything queued so far.
func (h *harness) flush(t *testing.T) []*Call {
	t.Helper()
	calls, err := h.phone.Calls(context.Background())
	if err != nil {
		t.Fatalf("Calls: %v", err)
	}
	return calls
}

type locusOpt func(*domain.Snapshot)

// locus builds a two party session: self plus "alice".
func locus(seq []uint64, self, remote domain.ParticipantState, opts ...locusOpt) *domain.Snapshot {
	me := domain.Participant{
		ID:           "self",
		URL:          testSelfURL,
		Type:         "USER",
		State:        self,
		MediaBaseURL: testMediaURL,
		DeviceURL:    testDeviceURL,
	}
	if self == domain.ParticipantJoined {
		me.Devices = []domain.ParticipantDevice{{
			URL:   testDeviceURL,
			State: domain.DeviceStateJoined,
			MediaLegs: []domain.MediaLeg{{
				MediaID:   "media-1",
				Type:      "SDP",
				RemoteSDP: `{"type":"SDP","sdp":"answer-sdp"}`,
			}},
		}}
	}
	s := &domain.Snapshot{
		URL:          testLocusURL,
		Self:         &me,
		Participants: []domain.Participant{me, {ID: "alice", Type: "USER", State: remote}},
		FullState:    domain.FullState{Active: true, State: "ACTIVE"},
		Sequence:     domain.Sequence{Entries: seq},
		MediaShares:  []domain.MediaShare{{Name: "content", URL: testShareURL}},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func declinedOn(deviceURL string) locusOpt {
	return func(s *domain.Snapshot) {
		s.Self.DeviceURL = deviceURL
		s.Participants[0] = *s.Self
	}
}

func remoteStatus(audio, video string) locusOpt {
	return func(s *domain.Snapshot) {
		s.Participants[1].Status = domain.ParticipantStatus{AudioStatus: audio, VideoStatus: video}
	}
}

// floorGrantedTo hands the share floor to participant id on deviceURL.
func floorGrantedTo(id, deviceURL string) locusOpt {
	return func(s *domain.Snapshot) {
		s.MediaShares[0].Floor = &domain.ShareFloor{
			Disposition: domain.FloorGranted,
			Beneficiary: &domain.Participant{ID: id, DeviceURL: deviceURL},
		}
	}
}

// withDTMF enables tone sending for self.
func withDTMF() locusOpt {
	return func(s *domain.Snapshot) {
		s.Self.EnableDTMF = true
		s.Participants[0] = *s.Self
	}
}

func seqOf(entries ...uint64) []uint64 { return entries }
