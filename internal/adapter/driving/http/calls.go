package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/Wyydra/yaphone/internal/core/service"
	"github.com/go-chi/chi/v5"
)

type dialRequest struct {
	Target      string                   `json:"target"`
	Constraints *domain.MediaConstraints `json:"media,omitempty"`
}

type muteRequest struct {
	Muted *bool `json:"muted"`
}

type dtmfRequest struct {
	Tones string `json:"tones"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	dev, err := h.Phone.Register(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

func (h *Handler) Deregister(w http.ResponseWriter, r *http.Request) {
	if err := h.Phone.Deregister(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Dial(w http.ResponseWriter, r *http.Request) {
	var req dialRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Target == "" {
		writeError(w, errors.Join(errBadRequest, errors.New("target is required")))
		return
	}
	c := h.Phone.DefaultConstraints()
	if req.Constraints != nil {
		c = *req.Constraints
	}
	call, err := h.Phone.Dial(r.Context(), req.Target, c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, call.View())
}

func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := h.Phone.Calls(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]service.CallView, 0, len(calls))
	for _, c := range calls {
		views = append(views, c.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) call(w http.ResponseWriter, r *http.Request) (*service.Call, bool) {
	id, err := domain.ParseCallID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Join(errBadRequest, err))
		return nil, false
	}
	c, err := h.Phone.Call(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return c, true
}

// callAction runs op on the addressed call and replies with its view.
func (h *Handler) callAction(w http.ResponseWriter, r *http.Request, op func(*service.Call) error) {
	c, ok := h.call(w, r)
	if !ok {
		return
	}
	if err := op(c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, func(*service.Call) error { return nil })
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	c := h.Phone.DefaultConstraints()
	var req struct {
		Constraints *domain.MediaConstraints `json:"media,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Constraints != nil {
		c = *req.Constraints
	}
	h.callAction(w, r, func(call *service.Call) error { return call.Answer(r.Context(), c) })
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, func(c *service.Call) error { return c.Reject(r.Context()) })
}

func (h *Handler) Hangup(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, func(c *service.Call) error { return c.Hangup(r.Context()) })
}

func (h *Handler) SetAudio(w http.ResponseWriter, r *http.Request) {
	h.setMuted(w, r, (*service.Call).SetSendingAudio)
}

func (h *Handler) SetVideo(w http.ResponseWriter, r *http.Request) {
	h.setMuted(w, r, (*service.Call).SetSendingVideo)
}

func (h *Handler) setMuted(w http.ResponseWriter, r *http.Request, set func(*service.Call, context.Context, bool) error) {
	var req muteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Muted == nil {
		writeError(w, errors.Join(errBadRequest, errors.New("muted is required")))
		return
	}
	h.callAction(w, r, func(c *service.Call) error { return set(c, r.Context(), !*req.Muted) })
}

func (h *Handler) StartShare(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, func(c *service.Call) error { return c.StartSharing(r.Context()) })
}

func (h *Handler) StopShare(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, func(c *service.Call) error { return c.StopSharing(r.Context()) })
}

func (h *Handler) SendDTMF(w http.ResponseWriter, r *http.Request) {
	var req dtmfRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Tones == "" {
		writeError(w, errors.Join(errBadRequest, errors.New("tones is required")))
		return
	}
	h.callAction(w, r, func(c *service.Call) error { return c.SendDTMF(r.Context(), req.Tones) })
}

func (h *Handler) ViewMetrics(w http.ResponseWriter, r *http.Request) {
	c, ok := h.call(w, r)
	if !ok {
		return
	}
	m, err := c.ViewMetrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
