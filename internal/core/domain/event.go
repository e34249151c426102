package domain

import "encoding/json"

type EventType string

const (
	EventSession  EventType = "session"
	EventActivity EventType = "activity"
	EventKMS      EventType = "kms"
)

// Envelope is one inbound frame of the event bus after classification.
type Envelope struct {
	ID      string          `json:"id"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionEvent carries a pushed snapshot of a call.
type SessionEvent struct {
	EventType string    `json:"eventType"`
	Snapshot  *Snapshot `json:"locus"`
}

// ActivityEvent is a conversation or typing event. Only routing fields are decoded.
type ActivityEvent struct {
	EventType      string          `json:"eventType"`
	ConversationID string          `json:"conversationId,omitempty"`
	ActorID        string          `json:"actorId,omitempty"`
	Data           json.RawMessage `json:"data"`
}

// KeyEvent carries key-management messages; they stay opaque here.
type KeyEvent struct {
	EventType string   `json:"eventType"`
	Messages  []string `json:"kmsMessages"`
}
