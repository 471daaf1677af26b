// Package redis publishes match lifecycle events to a Redis pub/sub channel
// so dashboards and other services can follow staked matches live.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"unostake/internal/ports"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "unostake.matches"

// publisher is the slice of *goredis.Client the adapter needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Publisher implements ports.EventPublisher over Redis PUBLISH.
type Publisher struct {
	client  publisher
	channel string
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher wraps an existing client.
func NewPublisher(client publisher, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Dial connects to addr and verifies the server answers PING.
func Dial(ctx context.Context, addr, channel string) (*Publisher, func() error, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewPublisher(rdb, channel), rdb.Close, nil
}

// Publish encodes event as JSON and publishes it on the configured channel.
func (p *Publisher) Publish(ctx context.Context, event ports.MatchEvent) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("redis publisher not configured")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Kind, err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s on %s: %w", event.Kind, p.channel, err)
	}
	return nil
}
