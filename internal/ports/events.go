package ports

import (
	"context"
	"time"
)

// MatchEvent is a lifecycle notification published after a match changes.
type MatchEvent struct {
	Kind    string    `json:"kind"`
	MatchID string    `json:"matchId"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// EventPublisher fans match events out to observers.
// Delivery is best effort; a failed publish never affects the match.
type EventPublisher interface {
	Publish(ctx context.Context, event MatchEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, MatchEvent) error { return nil }
