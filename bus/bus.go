// Package bus delivers notification lines to players by identity. A player
// subscribed on this instance gets a direct in-memory delivery; everyone else
// is reached through a redis pub/sub channel per player, so a session hosted
// here can notify a participant connected to any instance in the fleet.
package bus

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Publisher is the outbound port consumed by sessions, trades and the
// orchestrator. Ordering between two publishes to the same player is
// preserved; ordering across players is not.
type Publisher interface {
	Publish(ctx context.Context, playerID, line string) error
}

const subscriberBuffer = 64

// Subscription is one player's local delivery stream.
type Subscription struct {
	// C receives notification lines in publish order.
	C    <-chan string
	ch   chan string
	done chan struct{}
	stop func()
}

// Done is closed when the subscription is torn down.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() { s.stop() }

// Bus implements Publisher over a local registry plus redis pub/sub fan-out.
type Bus struct {
	client    *redis.Client
	namespace string
	log       zerolog.Logger

	mu    sync.RWMutex
	local map[string]*Subscription
}

var _ Publisher = (*Bus)(nil)

func New(client *redis.Client, namespace string, log zerolog.Logger) *Bus {
	return &Bus{
		client:    client,
		namespace: namespace,
		log:       log.With().Str("component", "bus").Logger(),
		local:     map[string]*Subscription{},
	}
}

func (b *Bus) channel(playerID string) string {
	return b.namespace + ":player:" + playerID
}

// Subscribe registers the player on this instance and starts the fan-in from
// the player's redis channel. A second Subscribe for the same player replaces
// the first.
func (b *Bus) Subscribe(ctx context.Context, playerID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(playerID))
	// Force the SUBSCRIBE round trip so fan-out messages cannot be lost
	// between registration and the first poll.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, eris.Wrap(err, "failed to subscribe to player channel")
	}

	ch := make(chan string, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, done: make(chan struct{})}
	var once sync.Once
	sub.stop = func() {
		once.Do(func() {
			b.mu.Lock()
			if b.local[playerID] == sub {
				delete(b.local, playerID)
			}
			b.mu.Unlock()
			close(sub.done)
			if err := pubsub.Close(); err != nil {
				b.log.Warn().Err(err).Str("player", playerID).Msg("pubsub close failed")
			}
		})
	}

	b.mu.Lock()
	if prev, ok := b.local[playerID]; ok {
		b.mu.Unlock()
		prev.Close()
		b.mu.Lock()
	}
	b.local[playerID] = sub
	b.mu.Unlock()

	go func() {
		for msg := range pubsub.Channel() {
			b.send(playerID, sub, msg.Payload)
		}
	}()
	return sub, nil
}

// Publish delivers a line to one player. Local subscribers get the fast
// path; otherwise the line is fanned out over redis for whichever instance
// holds the player's connection.
func (b *Bus) Publish(ctx context.Context, playerID, line string) error {
	b.mu.RLock()
	sub, ok := b.local[playerID]
	b.mu.RUnlock()
	if ok {
		b.send(playerID, sub, line)
		return nil
	}
	if err := b.client.Publish(ctx, b.channel(playerID), line).Err(); err != nil {
		return eris.Wrap(err, "failed to publish to player channel")
	}
	return nil
}

// send never blocks the publisher: a consumer that stopped draining loses
// lines rather than stalling sessions.
func (b *Bus) send(playerID string, sub *Subscription, line string) {
	select {
	case <-sub.done:
	case sub.ch <- line:
	default:
		b.log.Warn().Str("player", playerID).Msg("dropping line for slow subscriber")
	}
}

// Close tears down every local subscription.
func (b *Bus) Close() {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.local))
	for _, sub := range b.local {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		sub.Close()
	}
}
