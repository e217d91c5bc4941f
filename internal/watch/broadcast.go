package watch

import (
	"sync"
	"sync/atomic"

	"github.com/2389-research/cc-log-viewer/pkg/models"
	"go.uber.org/zap"
)

// Broadcaster fans published events out to every live subscription. Each
// subscriber owns a bounded buffer; when one falls behind, its oldest pending
// events are dropped so a slow viewer never blocks the publisher or its
// siblings. Publishing with no subscribers is a no-op.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	capacity int
	logger   *zap.Logger
}

// Subscription is one consumer's handle onto the broadcaster. Events arrive on
// Events() from the moment of subscription; there is no replay of history.
type Subscription struct {
	b       *Broadcaster
	ch      chan models.WatchEvent
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// NewBroadcaster creates a broadcaster whose subscribers each buffer up to
// capacity pending events.
func NewBroadcaster(capacity int, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
		logger:   logger,
	}
}

// Subscribe registers a new consumer. The subscription receives every event
// published after this call until Close.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		b:    b,
		ch:   make(chan models.WatchEvent, b.capacity),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers a copy of ev to every current subscriber and returns the
// number of subscribers reached. It never blocks: a subscriber whose buffer is
// full loses its oldest undelivered event instead.
func (b *Broadcaster) Publish(ev models.WatchEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		// Buffer full: evict the oldest pending event, then retry once. If a
		// concurrent publisher refilled the slot, the new event is dropped
		// instead; either way exactly one event is lost for this subscriber.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
		sub.dropped.Add(1)
	}

	return len(b.subs)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Events is the subscriber's delivery channel. Consumers should select on it
// together with Done, since the channel itself is never closed.
func (s *Subscription) Events() <-chan models.WatchEvent {
	return s.ch
}

// Done is closed when the subscription has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped reports how many events this subscriber has lost to backpressure.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
		close(s.done)

		if n := s.dropped.Load(); n > 0 {
			s.b.logger.Debug("Subscription closed after dropping events",
				zap.Int64("dropped", n))
		}
	})
}
