// Package events carries mutation notifications to two sinks: a durable
// events table written inside the mutation's transaction, and a Redis
// channel published after commit. The channel is fire-and-forget.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Message is one notification envelope. Payload holds the refreshed
// entity under its kind key plus "person", and for task events "task"
// and "routine".
type Message struct {
	Kind    string
	Action  string
	Payload map[string]any
}

// Envelope flattens the message to the wire form: kind and action next
// to the payload keys.
func (m Message) Envelope() map[string]any {
	out := map[string]any{
		"kind":   m.Kind,
		"action": m.Action,
	}
	for k, v := range m.Payload {
		out[k] = v
	}
	return out
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Envelope())
}

// Publisher delivers messages to subscribers.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// RedisPublisher publishes envelopes to a single channel.
type RedisPublisher struct {
	Client  *redis.Client
	Channel string
}

func NewRedisPublisher(addr, channel string) *RedisPublisher {
	return &RedisPublisher{
		Client:  redis.NewClient(&redis.Options{Addr: addr}),
		Channel: channel,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, m Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.Client.Publish(ctx, p.Channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s.%s: %w", m.Kind, m.Action, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.Client.Close()
}
