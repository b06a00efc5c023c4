package events

import (
	"sort"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 100

// Broker is an in-memory implementation of [Publisher] and [Source].
//
// Broker keeps the latest change per module so new subscribers can be
// brought up to date, and fans every change out to subscribers over buffered
// channels. Sends are non-blocking; if a subscriber's buffer is full, the
// change is dropped for that subscriber.
type Broker struct {
	mu     sync.RWMutex
	seq    uint64
	latest map[string]Change

	subscribers map[chan Change]struct{}
	subMu       sync.RWMutex
}

// NewBroker creates a ready-to-use [Broker].
func NewBroker() *Broker {
	return &Broker{
		latest:      make(map[string]Change),
		subscribers: make(map[chan Change]struct{}),
	}
}

// Publish assigns the next sequence number to change, records it as the
// module's latest change, notifies all subscribers and returns the
// sequenced change.
func (b *Broker) Publish(change Change) Change {
	b.mu.Lock()
	b.seq++
	change.Seq = b.seq
	b.latest[change.Module] = change
	b.mu.Unlock()

	b.notifySubscribers(change)
	return change
}

// Latest returns the most recent change of every module, ordered by Seq.
//
// The returned slice is a copy; modifications do not affect the broker.
func (b *Broker) Latest() []Change {
	b.mu.RLock()
	out := make([]Change, 0, len(b.latest))
	for _, c := range b.latest {
		out = append(out, c)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Subscribe creates a new subscription.
//
// The returned channel has a buffer of 100 changes. Caller must call
// [Broker.Unsubscribe] when done to prevent resource leaks.
func (b *Broker) Subscribe() <-chan Change {
	ch := make(chan Change, subscriberBuffer)

	b.subMu.Lock()
	b.subscribers[ch] = struct{}{}
	b.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (b *Broker) Unsubscribe(ch <-chan Change) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	for subCh := range b.subscribers {
		if subCh == ch {
			delete(b.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends change to every subscriber without blocking.
func (b *Broker) notifySubscribers(change Change) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- change:
		default:
			// subscriber is slow, drop the change
		}
	}
}
