package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Handler func(Event)

// Publisher is the write side of the notifier.
type Publisher interface {
	Publish(ctx context.Context, channel string, e Event) error
}

// Relay forwards locally published events to other server instances.
type Relay interface {
	Forward(ctx context.Context, channel string, e Event) error
}

type subscriber struct {
	name    EventName
	handler Handler
}

// Broker is an in-process pub/sub keyed by channel. Delivery is best-effort
// and synchronous; handlers must be quick and idempotent.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]subscriber
	nextID uint64
	relay  Relay
	logger *zap.Logger
}

func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[uint64]subscriber),
		logger: logger,
	}
}

func (b *Broker) SetRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Subscription is owned by the caller and must be closed. Close is idempotent.
type Subscription struct {
	broker  *Broker
	channel string
	id      uint64
	once    sync.Once
}

func (s *Subscription) Channel() string {
	return s.channel
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s.channel, s.id)
	})
}

// Subscribe registers handler for events named name on channel. An empty
// name receives every event on the channel.
func (b *Broker) Subscribe(channel string, name EventName, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[uint64]subscriber)
	}
	b.subs[channel][id] = subscriber{name: name, handler: handler}

	return &Subscription{broker: b, channel: channel, id: id}
}

func (b *Broker) remove(channel string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[channel], id)
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
}

// SubscriberCount reports live subscriptions on channel.
func (b *Broker) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Publish delivers locally and, when a relay is set, forwards to peers.
func (b *Broker) Publish(ctx context.Context, channel string, e Event) error {
	if e.Version == 0 {
		e.Version = SchemaVersion
	}
	b.Deliver(channel, e)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay != nil {
		return relay.Forward(ctx, channel, e)
	}
	return nil
}

// Deliver hands e to local subscribers only.
func (b *Broker) Deliver(channel string, e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[channel]))
	for _, sub := range b.subs[channel] {
		if sub.name == "" || sub.name == e.Name {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(channel, e, h)
	}
}

func (b *Broker) invoke(channel string, e Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("realtime handler panicked",
				zap.String("channel", channel),
				zap.String("event", string(e.Name)),
				zap.Any("panic", r))
		}
	}()
	h(e)
}
