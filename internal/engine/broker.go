package engine

import (
	"sync"

	"github.com/seantiz/esgqa/internal/model"
)

// subscriberBufferSize is the channel buffer for each subscriber.
// Updates are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Subscriber is one push connection's inbox of job updates. Its channel is
// never closed by the Broker; the owner stops reading when its connection ends.
type Subscriber struct {
	id string
	ch chan model.JobUpdate
}

// NewSubscriber creates a subscriber with a fresh connection ID.
func NewSubscriber() *Subscriber {
	return &Subscriber{
		id: model.NewConnID(),
		ch: make(chan model.JobUpdate, subscriberBufferSize),
	}
}

// ID returns the connection ID.
func (s *Subscriber) ID() string {
	return s.id
}

// Updates returns the channel on which job updates are delivered.
func (s *Subscriber) Updates() <-chan model.JobUpdate {
	return s.ch
}

// Broker fans job updates out to one subscriber per user identity.
// It is safe for concurrent use.
type Broker struct {
	mu   sync.Mutex
	subs map[string]*Subscriber
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]*Subscriber)}
}

// Subscribe registers sub for identity, replacing any previous subscriber
// for that identity. The replaced subscriber simply stops receiving.
func (b *Broker) Subscribe(identity string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[identity] = sub
	wsSubscribers.Set(float64(len(b.subs)))
}

// Unsubscribe removes the registration for identity only if it still points
// at sub. A stale connection closing must not drop a newer one.
func (b *Broker) Unsubscribe(identity string, sub *Subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.subs[identity]
	if !ok || cur != sub {
		return false
	}
	delete(b.subs, identity)
	wsSubscribers.Set(float64(len(b.subs)))
	return true
}

// Publish sends u to every registered subscriber. Updates are dropped for
// subscribers whose buffers are full.
func (b *Broker) Publish(u model.JobUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- u:
		default:
			// Drop update for slow subscribers to avoid blocking transitions.
		}
	}
}

// Len returns the number of registered identities.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
