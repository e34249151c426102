package http

import (
	"net/http"

	"github.com/Wyydra/yaphone/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/yaphone/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	Phone *service.Phone
	Hub   *ws.Hub
}

func NewHandler(phone *service.Phone, hub *ws.Hub) *Handler {
	return &Handler{
		Phone: phone,
		Hub:   hub,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/device", h.Register)
	r.Delete("/device", h.Deregister)

	r.Route("/calls", func(r chi.Router) {
		r.Post("/", h.Dial)
		r.Get("/", h.ListCalls)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCall)
			r.Post("/answer", h.Answer)
			r.Post("/reject", h.Reject)
			r.Post("/hangup", h.Hangup)
			r.Put("/audio", h.SetAudio)
			r.Put("/video", h.SetVideo)
			r.Post("/share", h.StartShare)
			r.Delete("/share", h.StopShare)
			r.Post("/dtmf", h.SendDTMF)
			r.Get("/metrics", h.ViewMetrics)
		})
	})

	r.Get("/ws", h.ServeWS)

	return r
}
