package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSubscriberQueueCapacity = 256
	defaultHistoryCapacity         = 1000
)

// SubscribeOptions configures a single subscription.
type SubscribeOptions struct {
	// Mode selects synchronous or asynchronous dispatch. Zero value is Sync.
	Mode Mode
	// QueueCapacity bounds this subscriber's pending-event queue. Zero
	// selects the bus default.
	QueueCapacity int
}

// Bus is the in-process publish/subscribe broker (spec §4.1). It owns a
// bounded history ring and, per event type, a set of subscribers each with
// its own bounded queue and dispatch loop.
type Bus struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[EventType]map[string]*subscriber
	closed      bool

	history *ring
	seq     uint64
}

// New constructs a Bus. historyCapacity <= 0 selects the default of 1000.
func New(logger *slog.Logger, historyCapacity int) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if historyCapacity <= 0 {
		historyCapacity = defaultHistoryCapacity
	}
	return &Bus{
		logger:      logger,
		subscribers: make(map[EventType]map[string]*subscriber),
		history:     newRing(historyCapacity),
	}
}

// Subscribe registers handler to receive events of eventType. The returned
// subscription ID can be passed to Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, handler Handler, opts SubscribeOptions) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", fmt.Errorf("bus: closed")
	}

	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = defaultSubscriberQueueCapacity
	}

	id := uuid.New().String()
	sub := newSubscriber(id, eventType, handler, opts.Mode, capacity, b.logger)

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[string]*subscriber)
	}
	b.subscribers[eventType][id] = sub
	sub.start()
	return id, nil
}

// Unsubscribe removes a subscription, draining its in-flight queue first.
func (b *Bus) Unsubscribe(eventType EventType, id string) {
	b.mu.Lock()
	subs, ok := b.subscribers[eventType]
	if !ok {
		b.mu.Unlock()
		return
	}
	sub, ok := subs[id]
	if ok {
		delete(subs, id)
	}
	b.mu.Unlock()

	if ok {
		sub.close()
		sub.wg.Wait()
	}
}

// Publish delivers e to every subscriber of e.EventType and records it in
// history. Publish never blocks on handler execution — it only blocks long
// enough to enqueue onto each subscriber's bounded queue.
func (b *Bus) Publish(e *Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus: closed")
	}
	e.seq = atomic.AddUint64(&b.seq, 1)
	subs := make([]*subscriber, 0, len(b.subscribers[e.EventType]))
	for _, s := range b.subscribers[e.EventType] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	b.history.add(e)

	for _, s := range subs {
		if dropped := s.enqueue(e); dropped {
			b.noticeOverflow(s, e.EventType)
		}
	}
	return nil
}

// noticeOverflow publishes a bus.overflow event, at most once per
// subscriber per minute (spec §4.1 "Back-pressure").
func (b *Bus) noticeOverflow(s *subscriber, eventType EventType) {
	if !s.shouldNoticeOverflow(now()) {
		return
	}
	overflow := NewEvent(BusOverflow, "bus", "", map[string]any{
		"subscriber_id": s.id,
		"event_type":    string(eventType),
	})
	if err := b.Publish(overflow); err != nil {
		return
	}
	b.logger.Warn("bus: subscriber queue overflow, dropping oldest event", "subscriber", s.id, "event_type", eventType)
}

// History returns events published after afterSeq (0 for "from the
// beginning"), oldest first, capped at limit (0 for unbounded up to the
// ring's retained capacity).
func (b *Bus) History(afterSeq uint64, limit int) []*Event {
	return b.history.since(afterSeq, limit)
}

// Close stops accepting new subscriptions and publications, then waits for
// every subscriber's queue to drain and in-flight async handlers to finish,
// up to ctx's deadline (spec §4.5 "bus-drain deadline").
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	all := make([]*subscriber, 0)
	for _, subs := range b.subscribers {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}

	var undrained int
	for _, s := range all {
		s.close()
		if !s.drain(deadline) {
			undrained++
		}
		s.wg.Wait()
	}
	if undrained > 0 {
		b.logger.Warn("bus: close deadline exceeded", "undrained_subscribers", undrained)
		return fmt.Errorf("bus: %d subscriber(s) did not drain before deadline", undrained)
	}
	return nil
}
