package service

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/Wyydra/yaphone/internal/core/domain"
)

func ringingIncoming(t *testing.T, h *harness) *Call {
	t.Helper()
	h.register(t)
	h.push(locus(seqOf(1), domain.ParticipantNotified, domain.ParticipantJoined))
	calls := h.flush(t)
	if len(calls) != 1 {
		t.Fatalf("%d calls, want 1", len(calls))
	}
	return calls[0]
}

func TestAnswer(t *testing.T) {
	h := newHarness(t)
	c := ringingIncoming(t, h)

	h.control.joinSnap = locus(seqOf(1, 2), domain.ParticipantJoined, domain.ParticipantJoined)
	if err := c.Answer(ctx, domain.DefaultConstraints()); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if st := c.State(); st.Phase != domain.PhaseConnected {
		t.Errorf("state = %v, want connected", st)
	}
	if !slices.Equal(h.control.joins, []string{testLocusURL}) {
		t.Errorf("joins = %v", h.control.joins)
	}
	if got := h.media.last().answers; !slices.Equal(got, []string{"answer-sdp"}) {
		t.Errorf("remote answers = %v", got)
	}

	if err := c.Answer(ctx, domain.DefaultConstraints()); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("second Answer() = %v, want ErrIllegalStatus", err)
	}
}

func TestOutgoingCallCannotBeAnswered(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)

	if err := c.Answer(ctx, domain.DefaultConstraints()); !errors.Is(err, domain.ErrIllegalOperation) {
		t.Errorf("Answer() = %v, want ErrIllegalOperation", err)
	}
	if err := c.Reject(ctx); !errors.Is(err, domain.ErrIllegalOperation) {
		t.Errorf("Reject() = %v, want ErrIllegalOperation", err)
	}
}

func TestRejectWaitsForServer(t *testing.T) {
	h := newHarness(t)
	c := ringingIncoming(t, h)

	if err := c.Reject(ctx); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if !slices.Equal(h.control.declines, []string{testLocusURL}) {
		t.Errorf("declines = %v", h.control.declines)
	}
	if st := c.State(); st.Phase != domain.PhaseRingingIncoming {
		t.Errorf("state changed before the server confirmed: %v", st)
	}

	h.push(locus(seqOf(1, 2), domain.ParticipantDeclined, domain.ParticipantJoined))
	h.flush(t)
	if st := c.State(); st != domain.Disconnected(domain.ReasonLocalDeclined) {
		t.Errorf("state = %v, want disconnected(localDeclined)", st)
	}
}

func TestHangupRingingIncomingDeclines(t *testing.T) {
	h := newHarness(t)
	c := ringingIncoming(t, h)

	if err := c.Hangup(ctx); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if len(h.control.declines) != 1 || len(h.control.leaves) != 0 {
		t.Errorf("declines = %v, leaves = %v", h.control.declines, h.control.leaves)
	}
}

func TestHangupEndedCall(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)
	h.control.leaveSnap = locus(seqOf(1, 2, 3), domain.ParticipantLeft, domain.ParticipantJoined)
	if err := c.Hangup(ctx); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if err := c.Hangup(ctx); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("second Hangup() = %v, want ErrIllegalStatus", err)
	}
}

func TestMuteRenegotiates(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)
	session := h.media.last()

	h.control.mediaSnap = locus(seqOf(1, 2, 3), domain.ParticipantJoined, domain.ParticipantJoined)
	if err := c.SetSendingAudio(ctx, false); err != nil {
		t.Fatalf("SetSendingAudio: %v", err)
	}
	if !session.muted[domain.MediaAudio] {
		t.Error("audio not muted on the media session")
	}
	if len(h.control.updates) != 1 {
		t.Fatalf("%d media updates, want 1", len(h.control.updates))
	}
	upd := h.control.updates[0]
	if !upd.AudioMuted || upd.VideoMuted || upd.MediaID != "media-1" || upd.SDP != "offer-2" {
		t.Errorf("update = %+v", upd)
	}
	if len(session.answers) != 2 {
		t.Errorf("answer after renegotiation not applied: %v", session.answers)
	}
	if !c.View().AudioMuted {
		t.Error("view does not reflect mute")
	}
}

func TestMuteRequiresConnected(t *testing.T) {
	h := newHarness(t)
	c := ringingIncoming(t, h)
	if err := c.SetSendingVideo(ctx, false); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("SetSendingVideo() = %v, want ErrIllegalStatus", err)
	}
	if err := c.UpdateMedia(ctx); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("UpdateMedia() = %v, want ErrIllegalStatus", err)
	}
}

func TestSharing(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)
	session := h.media.last()

	if err := c.StopSharing(ctx); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("StopSharing() before start = %v, want ErrIllegalStatus", err)
	}
	if err := c.StartSharing(ctx); err != nil {
		t.Fatalf("StartSharing: %v", err)
	}
	if len(h.control.floors) != 1 || h.control.floors[0].Disposition != domain.FloorGranted {
		t.Fatalf("floors = %+v", h.control.floors)
	}
	if h.control.floors[0].DeviceURL != testDeviceURL || h.control.floors[0].ParticipantURL != testSelfURL {
		t.Errorf("floor request = %+v", h.control.floors[0])
	}
	if !session.sharing || !c.View().Sharing {
		t.Error("share not started")
	}
	if err := c.StartSharing(ctx); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("second StartSharing() = %v, want ErrIllegalStatus", err)
	}

	h.control.leaveSnap = locus(seqOf(1, 2, 3), domain.ParticipantLeft, domain.ParticipantJoined)
	if err := c.Hangup(ctx); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if len(h.control.floors) != 2 || h.control.floors[1].Disposition != domain.FloorReleased {
		t.Errorf("floor not released before leaving: %+v", h.control.floors)
	}
	if session.sharing {
		t.Error("local share still running")
	}
}

func TestSharingEndsWhenFloorMoves(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)
	session := h.media.last()
	if err := c.StartSharing(ctx); err != nil {
		t.Fatalf("StartSharing: %v", err)
	}

	h.push(locus(seqOf(1, 2, 3), domain.ParticipantJoined, domain.ParticipantJoined, floorGrantedTo("self", testDeviceURL)))
	h.flush(t)
	if !c.View().Sharing || !session.sharing {
		t.Fatal("share dropped while this device holds the floor")
	}

	h.push(locus(seqOf(1, 2, 3, 4), domain.ParticipantJoined, domain.ParticipantJoined, floorGrantedTo("alice", "")))
	h.flush(t)
	if c.View().Sharing || session.sharing {
		t.Error("share still running after the floor moved to alice")
	}
	if !c.View().RemoteSharing {
		t.Error("RemoteSharing = false, alice holds the floor")
	}
	if err := c.StopSharing(ctx); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("StopSharing() = %v, want ErrIllegalStatus", err)
	}
	if len(h.control.floors) != 1 {
		t.Errorf("floors = %+v, want only the grant", h.control.floors)
	}
	if err := c.StartSharing(ctx); err != nil {
		t.Errorf("StartSharing() after losing the floor = %v", err)
	}
}

func TestSharingReleasesFloorWhenLocalShareFails(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)
	h.media.last().startErr = errors.New("no capture source")

	if err := c.StartSharing(ctx); !errors.Is(err, domain.ErrServiceFailed) {
		t.Fatalf("StartSharing() = %v, want ErrServiceFailed", err)
	}
	want := []domain.FloorDisposition{domain.FloorGranted, domain.FloorReleased}
	var got []domain.FloorDisposition
	for _, f := range h.control.floors {
		got = append(got, f.Disposition)
	}
	if !slices.Equal(got, want) {
		t.Errorf("floor requests = %v, want %v", got, want)
	}
	if c.View().Sharing {
		t.Error("Sharing = true after failed start")
	}
}

func TestSendDTMF(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)

	if err := c.SendDTMF(ctx, "12"); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("SendDTMF() without dtmf enabled = %v, want ErrIllegalStatus", err)
	}

	h.push(locus(seqOf(1, 2, 3), domain.ParticipantJoined, domain.ParticipantJoined, withDTMF()))
	h.flush(t)
	for _, tones := range []string{"12", "*#A"} {
		if err := c.SendDTMF(ctx, tones); err != nil {
			t.Fatalf("SendDTMF(%q): %v", tones, err)
		}
	}
	if !slices.Equal(h.control.dtmf, []string{"12", "*#A"}) || !slices.Equal(h.control.dtmfIDs, []int{1, 2}) {
		t.Errorf("sent %v with ids %v", h.control.dtmf, h.control.dtmfIDs)
	}

	for _, tones := range []string{"", "12x", "9 9"} {
		if err := c.SendDTMF(ctx, tones); !errors.Is(err, domain.ErrIllegalOperation) {
			t.Errorf("SendDTMF(%q) = %v, want ErrIllegalOperation", tones, err)
		}
	}

	h.control.dtmfErr = errNetwork
	if err := c.SendDTMF(ctx, "3"); !errors.Is(err, domain.ErrServiceFailed) {
		t.Errorf("SendDTMF() on network error = %v, want ErrServiceFailed", err)
	}
}

func TestSendDTMFRequiresConnected(t *testing.T) {
	h := newHarness(t)
	c := ringingIncoming(t, h)
	if err := c.SendDTMF(ctx, "1"); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("SendDTMF() while ringing = %v, want ErrIllegalStatus", err)
	}
}

func TestViewMetrics(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)
	m, err := c.ViewMetrics(ctx)
	if err != nil {
		t.Fatalf("ViewMetrics: %v", err)
	}
	if m.Width != 640 || m.Height != 480 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestViewMemberships(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)

	got := c.View().Memberships
	if len(got) != 2 {
		t.Fatalf("memberships = %+v", got)
	}
	if got[0].ID != "self" || !got[0].Self || got[0].State != domain.ParticipantJoined {
		t.Errorf("self membership = %+v", got[0])
	}
	if got[1].ID != "alice" || got[1].Self || got[1].State != domain.ParticipantJoined {
		t.Errorf("alice membership = %+v", got[1])
	}
}

func TestSharingRequiresCapableSession(t *testing.T) {
	h := newHarness(t)
	c := connectedCall(t, h)
	h.media.last().canShare = false
	if err := c.StartSharing(ctx); !errors.Is(err, domain.ErrIllegalStatus) {
		t.Errorf("StartSharing() = %v, want ErrIllegalStatus", err)
	}
	if len(h.control.floors) != 0 {
		t.Error("floor requested without share support")
	}
}

func TestRemoteMediaChangeNotification(t *testing.T) {
	h := newHarness(t)
	connectedCall(t, h)

	h.push(locus(seqOf(1, 2, 3), domain.ParticipantJoined, domain.ParticipantJoined, remoteStatus("INACTIVE", "SENDRECV")))
	h.flush(t)

	var media []domain.Notification
	for _, n := range h.gateway.sent {
		if n.Type == domain.NotifyMedia {
			media = append(media, n)
		}
	}
	if len(media) != 1 {
		t.Fatalf("%d media notifications, want 1", len(media))
	}
	if !strings.Contains(string(media[0].Payload), string(domain.MediaChangeRemoteAudioMuted)) {
		t.Errorf("payload = %s", media[0].Payload)
	}
}
