package mercury

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		data    string
		want    domain.EventType
		wantErr bool
	}{
		{`{"eventType":"locus.difference"}`, domain.EventSession, false},
		{`{"eventType":"locus.participant_joined"}`, domain.EventSession, false},
		{`{"eventType":"conversation.activity"}`, domain.EventActivity, false},
		{`{"eventType":"status.start_typing"}`, domain.EventActivity, false},
		{`{"eventType":"encryption.kms_message"}`, domain.EventKMS, false},
		{`{"eventType":"janus.user_session"}`, "", true},
		{`[1,2]`, "", true},
		{``, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			env, err := classify(frame{ID: "m1", Data: json.RawMessage(tt.data)})
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("classify() err = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("classify(): %v", err)
			}
			if env.Type != tt.want || env.ID != "m1" {
				t.Errorf("classify() = %+v, want type %v", env, tt.want)
			}
		})
	}
}

type recorder struct {
	sessions     chan domain.SessionEvent
	activities   chan domain.ActivityEvent
	keys         chan domain.KeyEvent
	reregistered chan struct{}
	reconnected  chan struct{}
	url          string
	err          error
}

func newRecorder() *recorder {
	return &recorder{
		sessions:     make(chan domain.SessionEvent, 8),
		activities:   make(chan domain.ActivityEvent, 8),
		keys:         make(chan domain.KeyEvent, 8),
		reregistered: make(chan struct{}, 8),
		reconnected:  make(chan struct{}, 8),
	}
}

func (r *recorder) HandleSessionEvent(ev domain.SessionEvent)   { r.sessions <- ev }
func (r *recorder) HandleActivityEvent(ev domain.ActivityEvent) { r.activities <- ev }
func (r *recorder) HandleKeyEvent(ev domain.KeyEvent)           { r.keys <- ev }
func (r *recorder) HandleReconnected()                          { r.reconnected <- struct{}{} }

func (r *recorder) Reregister(context.Context) (string, error) {
	r.reregistered <- struct{}{}
	return r.url, r.err
}

func TestDispatchDropsMalformed(t *testing.T) {
	r := newRecorder()
	cases := []domain.Envelope{
		{Type: domain.EventSession, Payload: json.RawMessage(`{"eventType":"locus.difference"}`)},
		{Type: domain.EventKMS, Payload: json.RawMessage(`{"eventType":"encryption.kms_message"}`)},
		{Type: domain.EventActivity, Payload: json.RawMessage(`{"eventType":1}`)},
	}
	for _, env := range cases {
		if err := dispatch(r, env); !errors.Is(err, ErrMalformed) {
			t.Errorf("dispatch(%s) = %v, want ErrMalformed", env.Payload, err)
		}
	}
	if len(r.sessions)+len(r.keys)+len(r.activities) != 0 {
		t.Error("malformed payload reached the handler")
	}
}

func TestDispatchSession(t *testing.T) {
	r := newRecorder()
	env := domain.Envelope{
		Type:    domain.EventSession,
		Payload: json.RawMessage(`{"eventType":"locus.difference","locus":{"url":"https://locus.example.com/loci/1","self":{"id":"me","state":"JOINED"}}}`),
	}
	if err := dispatch(r, env); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ev := <-r.sessions
	if ev.Snapshot.CallURL() != "https://locus.example.com/loci/1" || ev.Snapshot.Self.State != domain.ParticipantJoined {
		t.Errorf("snapshot = %+v", ev.Snapshot)
	}
}
