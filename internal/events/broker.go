// Package events provides the in-process broadcast channel that fans newly
// created planets out to live subscription streams, plus an optional Redis
// bridge that mirrors events across server instances.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrBrokerClosed is returned by Publish after Close.
var ErrBrokerClosed = errors.New("broker is closed")

// Broker is a process-wide, multi-consumer broadcast channel. It is
// constructed once at startup, handed to publishers and the subscription
// transport, and torn down at shutdown. Delivery is best-effort: a
// subscriber whose buffer is full silently misses events rather than
// stalling the publisher.
type Broker[T any] struct {
	buffer int
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// Subscription is one subscriber's live event stream. It is independent of
// every other subscription and carries no replay: only events published
// after Subscribe are observable.
type Subscription[T any] struct {
	broker *Broker[T]
	ch     chan T
	once   sync.Once
}

func NewBroker[T any](buffer int, logger *slog.Logger) *Broker[T] {
	if buffer < 1 {
		buffer = 1
	}

	logger.Debug("Initializing event broker", "subscriber_buffer", buffer)

	return &Broker[T]{
		buffer: buffer,
		logger: logger,
		subs:   make(map[*Subscription[T]]struct{}),
	}
}

// Subscribe registers a new subscriber. The caller owns the subscription
// and must Close it when its connection ends. Subscribing to a closed
// broker yields an already-terminated stream.
func (b *Broker[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		broker: b,
		ch:     make(chan T, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subs[sub] = struct{}{}
	b.logger.Debug("Subscriber registered", "subscribers", len(b.subs))
	return sub
}

// Publish delivers ev to every current subscriber without blocking. A
// subscriber that cannot keep up loses this event; everyone else still
// receives it.
func (b *Broker[T]) Publish(ctx context.Context, ev T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("Subscriber buffer full, dropping event", "buffer", b.buffer)
		}
	}
	return nil
}

// Close terminates every subscriber stream. Publish calls after Close fail
// with ErrBrokerClosed.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for sub := range b.subs {
		sub.markClosed()
		close(sub.ch)
	}
	b.subs = nil

	b.logger.Debug("Event broker closed")
}

// Events returns the subscriber's stream. The channel is closed when the
// subscription or the broker is closed.
func (s *Subscription[T]) Events() <-chan T {
	return s.ch
}

// Close unsubscribes and closes the stream. Safe to call more than once
// and safe to race with broker shutdown.
func (s *Subscription[T]) Close() {
	b := s.broker

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		// Broker shutdown already closed the channel.
		return
	}

	s.once.Do(func() {
		delete(b.subs, s)
		close(s.ch)
	})
}

// markClosed marks the subscription's channel as already closed by the
// broker so a later Subscription.Close does not close it twice. Caller
// holds the broker mutex.
func (s *Subscription[T]) markClosed() {
	s.once.Do(func() {})
}
