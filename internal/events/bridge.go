package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Bridge mirrors published events across server instances through a Redis
// pub/sub channel. Publish sends to Redis only; the Run loop receives every
// message on the channel, including this instance's own, and delivers it
// into the local broker. Delivery stays best-effort and non-durable.
type Bridge[T any] struct {
	client  *redis.Client
	channel string
	local   *Broker[T]
	logger  *slog.Logger
}

func NewBridge[T any](client *redis.Client, channel string, local *Broker[T], logger *slog.Logger) *Bridge[T] {
	logger.Debug("Initializing event bridge", "channel", channel)

	return &Bridge[T]{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
	}
}

// Publish sends ev to the Redis channel. Local subscribers receive it when
// the Run loop echoes it back.
func (b *Bridge[T]) Publish(ctx context.Context, ev T) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	return nil
}

// Run consumes the Redis channel and republishes into the local broker
// until ctx is cancelled or the local broker shuts down. It is meant to run
// in its own goroutine for the life of the process. Transient Redis
// connection drops are handled inside go-redis, which reconnects and keeps
// the message channel open; the channel only closes when the subscription
// itself is torn down.
func (b *Bridge[T]) Run(ctx context.Context) {
	logger := b.logger.With("operation", "run", "channel", b.channel)

	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			logger.Error("Failed to close redis subscription", "error", err)
		}
	}()

	logger.Info("Event bridge consuming")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Event bridge stopping", "reason", ctx.Err())
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				logger.Warn("Redis subscription channel closed")
				return
			}

			if stop := b.deliverLocal(ctx, msg.Payload); stop {
				return
			}
		}
	}
}

// deliverLocal decodes one bridged payload and hands it to the local
// broker. It reports whether the consume loop should stop: only local
// broker shutdown is terminal, a bad payload or a full subscriber queue
// never takes the bridge down.
func (b *Bridge[T]) deliverLocal(ctx context.Context, payload string) bool {
	var ev T
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Error("Failed to unmarshal event payload", "error", err)
		return false
	}

	if err := b.local.Publish(ctx, ev); err != nil {
		if errors.Is(err, ErrBrokerClosed) {
			b.logger.Info("Event bridge stopping, local broker closed")
			return true
		}
		b.logger.Warn("Failed to deliver bridged event", "error", err)
		return false
	}
	return false
}
