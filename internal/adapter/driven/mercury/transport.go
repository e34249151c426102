package mercury

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/Wyydra/yaphone/internal/core/port"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait   = 10 * time.Second
	readTimeout = 90 * time.Second

	// CloseReplaced: another connection of the same device took over.
	CloseReplaced = 4000

	recentFrames = 256
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Config struct {
	Token      string
	BackoffMin time.Duration
	BackoffMax time.Duration
	Dialer     *websocket.Dialer
}

// Transport keeps one websocket to the event bus and reconnects it when it drops.
// implements port.EventTransport
type Transport struct {
	token   string
	dialer  *websocket.Dialer
	backoff *Backoff
	recent  *recentIDs

	connectMu sync.Mutex
	writeMu   sync.Mutex

	mu      sync.Mutex
	handler port.EventHandler
	conn    *websocket.Conn
	url     string
	state   State
	closing bool
	life    context.Context
	stop    context.CancelFunc
}

func NewTransport(cfg Config) *Transport {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
		}
	}
	return &Transport{
		token:   cfg.Token,
		dialer:  dialer,
		backoff: NewBackoff(cfg.BackoffMin, cfg.BackoffMax),
		recent:  newRecentIDs(recentFrames),
	}
}

func (t *Transport) SetHandler(h port.EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) Connect(ctx context.Context, url string) error {
	t.connectMu.Lock()
	defer t.connectMu.Unlock()

	t.mu.Lock()
	if t.state == StateConnected {
		t.mu.Unlock()
		return nil
	}
	t.state = StateConnecting
	t.closing = false
	if t.life == nil || t.life.Err() != nil {
		t.life, t.stop = context.WithCancel(context.Background())
	}
	life := t.life
	t.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)
	conn, _, err := t.dialer.DialContext(ctx, url, header)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = StateDisconnected
		log.Warn().Err(err).Str("url", url).Msg("Event connection failed")
		return err
	}
	if life.Err() != nil {
		// Disconnect won the race.
		t.state = StateDisconnected
		conn.Close()
		return context.Canceled
	}
	t.conn = conn
	t.url = url
	t.state = StateConnected
	t.backoff.Reset()
	log.Info().Str("url", url).Msg("Event connection established")

	go t.readLoop(conn)
	return nil
}

// Disconnect closes the connection and stops any pending reconnect.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	t.closing = true
	if t.stop != nil {
		t.stop()
	}
	conn := t.conn
	t.conn = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	t.writeMu.Unlock()
	log.Info().Msg("Event connection closed")
	return conn.Close()
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		t.writeMu.Lock()
		defer t.writeMu.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		t.handleFrame(conn, data)
	}
}

func (t *Transport) handleFrame(conn *websocket.Conn, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Msg("Dropping undecodable frame")
		return
	}
	l := log.With().Str("message_id", f.ID).Logger()

	if f.ID != "" {
		t.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteJSON(ack{Type: "ack", MessageID: f.ID})
		t.writeMu.Unlock()
		if err != nil {
			l.Warn().Err(err).Msg("Failed to ack frame")
		}
		if t.recent.Seen(f.ID) {
			l.Debug().Msg("Duplicate frame dropped")
			return
		}
	}

	env, err := classify(f)
	if err != nil {
		l.Warn().Err(err).Msg("Dropping frame")
		return
	}

	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h == nil {
		l.Warn().Str("type", string(env.Type)).Msg("No event handler, frame dropped")
		return
	}
	if err := dispatch(h, env); err != nil {
		l.Warn().Err(err).Str("type", string(env.Type)).Msg("Dropping frame")
	}
}

func (t *Transport) handleClose(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		// Replaced or closed by Disconnect.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = StateDisconnected
	intentional := t.closing
	life := t.life
	url := t.url
	t.mu.Unlock()

	if intentional {
		return
	}

	code := websocket.CloseAbnormalClosure
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}
	l := log.With().Int("code", code).Logger()

	switch code {
	case CloseReplaced:
		l.Warn().Msg("Event connection replaced by another, not reconnecting")
		return
	case websocket.CloseNormalClosure, websocket.CloseGoingAway:
		l.Info().Err(err).Msg("Event connection closed by server, reconnecting")
		t.reconnect(life, url, false)
	default:
		l.Warn().Err(err).Msg("Event connection lost, re-registering")
		t.reconnect(life, url, true)
	}
}

// reconnect retries until connected or Disconnect is called.
func (t *Transport) reconnect(life context.Context, url string, reregister bool) {
	for {
		t.mu.Lock()
		delay := t.backoff.Next()
		h := t.handler
		t.mu.Unlock()

		log.Info().Dur("delay", delay).Bool("reregister", reregister).Msg("Reconnecting events")
		select {
		case <-life.Done():
			return
		case <-time.After(delay):
		}

		target := url
		if reregister && h != nil {
			next, err := h.Reregister(life)
			if errors.Is(err, domain.ErrUnregistered) {
				log.Info().Msg("Device gone, giving up reconnect")
				return
			}
			if err != nil {
				log.Error().Err(err).Msg("Re-registration failed")
				continue
			}
			target = next
		}

		if err := t.Connect(life, target); err != nil {
			if life.Err() != nil {
				return
			}
			continue
		}
		if h != nil {
			h.HandleReconnected()
		}
		return
	}
}
