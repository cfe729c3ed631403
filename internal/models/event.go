package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a transient notification travelling through the event bus.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Kind        string         `json:"kind"`
	Payload     map[string]any `json:"payload"`
	PublishedAt time.Time      `json:"published_at"`
}

// NewEvent stamps a kind/payload pair with an id and the publish time.
func NewEvent(kind string, payload map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	}
}
