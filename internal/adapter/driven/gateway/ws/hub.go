package ws

import (
	"context"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const broadcastBuffer = 64

// Hub fans notifications out to every connected client.
// implements port.RealTimeGateway
type Hub struct {
	clients    map[Client]bool
	broadcast  chan domain.Notification
	register   chan Client
	unregister chan Client
	quit       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		broadcast:  make(chan domain.Notification, broadcastBuffer),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),
	}
}

// Publish never blocks the caller: with a full buffer the notification is dropped.
func (h *Hub) Publish(ctx context.Context, n domain.Notification) error {
	select {
	case h.broadcast <- n:
	default:
		log.Warn().Str("type", string(n.Type)).Msg("Broadcast channel full, dropping notification")
	}
	return nil
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Info().Str("client_id", client.ID()).Msg("Client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				log.Info().Str("client_id", client.ID()).Msg("Client unregistered")
			}

		case n := <-h.broadcast:
			for client := range h.clients {
				if err := client.Send(n); err != nil {
					log.Error().Err(err).Str("client_id", client.ID()).Msg("Error sending notification")
					client.Close()
					delete(h.clients, client)
				}
			}
		}
	}
}

func (h *Hub) Register(c Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}
