// Package pubsub implements a generic publish-subscribe interface.
package pubsub

import (
	"sync"

	"github.com/eapache/channels"
)

// OnSubscribeHook is the on-subscribe callback hook prototype.
type OnSubscribeHook func(channels.Channel)

// ClosableSubscription is a subscription that can be closed.
type ClosableSubscription interface {
	// Close unsubscribes from the broker.
	Close()
}

// Subscription is a Broker subscription instance.
type Subscription struct {
	ch     channels.Channel
	broker *Broker
}

// Untyped returns the subscription's untyped output channel.
func (s *Subscription) Untyped() <-chan interface{} {
	return s.ch.Out()
}

// Unwrap ties the read end of the subscription to a typed channel,
// which will be closed when the subscription is closed.
func (s *Subscription) Unwrap(ch interface{}) {
	channels.Unwrap(s.ch, ch)
}

// Close unsubscribes from the Broker.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

// Broker is a pub/sub broker instance.
type Broker struct {
	sync.Mutex

	subscribers     map[*Subscription]bool
	lastBroadcasted interface{}

	onSubscribeHook    OnSubscribeHook
	pubLastOnSubscribe bool
}

// Subscribe subscribes to the Broker with an infinitely buffered channel.
func (b *Broker) Subscribe() *Subscription {
	return b.SubscribeBuffered(int64(channels.Infinity))
}

// SubscribeBuffered subscribes to the Broker. If buffer is negative the
// subscription channel is unbounded, otherwise it is a ring buffer of
// the given capacity that overwrites the oldest entries when full.
func (b *Broker) SubscribeBuffered(buffer int64) *Subscription {
	var ch channels.Channel
	if buffer < 0 {
		ch = channels.NewInfiniteChannel()
	} else {
		ch = channels.NewRingChannel(channels.BufferCap(buffer))
	}
	sub := &Subscription{
		ch:     ch,
		broker: b,
	}

	b.Lock()
	defer b.Unlock()

	if b.onSubscribeHook != nil {
		b.onSubscribeHook(sub.ch)
	}
	if b.pubLastOnSubscribe && b.lastBroadcasted != nil {
		sub.ch.In() <- b.lastBroadcasted
	}
	b.subscribers[sub] = true

	return sub
}

// SubscribeEx subscribes to the Broker and invokes the provided hook
// with the subscription's inner channel.
func (b *Broker) SubscribeEx(buffer int64, onSubscribeHook OnSubscribeHook) *Subscription {
	sub := b.SubscribeBuffered(buffer)
	onSubscribeHook(sub.ch)
	return sub
}

// Broadcast broadcasts a message to all subscribers.
func (b *Broker) Broadcast(v interface{}) {
	b.Lock()
	defer b.Unlock()

	b.lastBroadcasted = v
	for sub := range b.subscribers {
		sub.ch.In() <- v
	}
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.Lock()
	defer b.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		sub.ch.Close()
	}
}

// NewBroker creates a new Broker. If pubLastOnSubscribe is set, the
// last broadcasted value (if any) is immediately delivered to each new
// subscriber.
func NewBroker(pubLastOnSubscribe bool) *Broker {
	return &Broker{
		subscribers:        make(map[*Subscription]bool),
		pubLastOnSubscribe: pubLastOnSubscribe,
	}
}

// NewBrokerEx creates a new Broker with an on-subscribe hook that is
// invoked with each new subscription's inner channel.
func NewBrokerEx(onSubscribeHook OnSubscribeHook) *Broker {
	b := NewBroker(false)
	b.onSubscribeHook = onSubscribeHook
	return b
}
