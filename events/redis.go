package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultChannelPrefix is prepended to the event name to form the Redis
// channel, e.g. "authcore.user.login".
const DefaultChannelPrefix = "authcore."

// Envelope is the JSON message published for each event.
type Envelope struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

// RedisBus publishes events as JSON on Redis pub/sub channels.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBus(client redis.UniversalClient, prefix string) *RedisBus {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisBus{client: client, prefix: prefix}
}

// Channel returns the channel an event name is published on.
func (b *RedisBus) Channel(name string) string {
	return b.prefix + name
}

func (b *RedisBus) Publish(ctx context.Context, name string, payload map[string]any) error {
	msg, err := json.Marshal(Envelope{Name: name, Payload: payload})
	if err != nil {
		return oops.Code("EVENT_ENCODE_FAILED").With("event", name).Wrap(err)
	}
	if err := b.client.Publish(ctx, b.Channel(name), msg).Err(); err != nil {
		return oops.Code("EVENT_PUBLISH_FAILED").
			With("event", name).
			With("channel", b.Channel(name)).
			Wrap(err)
	}
	return nil
}

// Subscribe listens on every channel under the prefix. Close the returned
// PubSub to stop.
func (b *RedisBus) Subscribe(ctx context.Context) *redis.PubSub {
	return b.client.PSubscribe(ctx, b.prefix+"*")
}

// Decode parses a message received from Subscribe.
func Decode(msg *redis.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		return Envelope{}, oops.Code("EVENT_DECODE_FAILED").With("channel", msg.Channel).Wrap(err)
	}
	return env, nil
}
