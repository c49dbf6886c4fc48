package hub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultChannel = "hauntq:events"

// RedisRelay shares hub events between service instances over Redis pub/sub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *logrus.Logger
}

func NewRedisRelay(client *redis.Client, channel string, h *Hub, logger *logrus.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisRelay{client: client, channel: channel, hub: h, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Run delivers relayed envelopes to local clients until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.WithField("error", err.Error()).Warn("discard malformed relay message")
				continue
			}
			r.hub.Broadcast([]byte(msg.Payload), env.Type)
		}
	}
}
