package bus

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return New(slog.Default(), 0)
}

func TestPublishDeliversToSyncSubscriber(t *testing.T) {
	b := newTestBus()
	received := make(chan *Event, 1)
	_, err := b.Subscribe(FileCreated, func(e *Event) error {
		received <- e
		return nil
	}, SubscribeOptions{Mode: Sync})
	require.NoError(t, err)

	e := NewEvent(FileCreated, "ingest", "corr-1", nil)
	require.NoError(t, b.Publish(e))

	select {
	case got := <-received:
		require.Equal(t, e.EventID, got.EventID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestPerSubscriberFIFOOrdering(t *testing.T) {
	b := newTestBus()
	var mu sync.Mutex
	var order []int

	_, err := b.Subscribe(ActionGenerated, func(e *Event) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, e.Payload["i"].(int))
		return nil
	}, SubscribeOptions{Mode: Sync})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, b.Publish(NewEvent(ActionGenerated, "test", "", map[string]any{"i": i})))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 50
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	b := newTestBus()
	block := make(chan struct{})
	var delivered int32
	var mu sync.Mutex
	var seen []int

	_, err := b.Subscribe(PlanCreated, func(e *Event) error {
		<-block
		mu.Lock()
		seen = append(seen, e.Payload["i"].(int))
		mu.Unlock()
		return nil
	}, SubscribeOptions{Mode: Sync, QueueCapacity: 2})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(NewEvent(PlanCreated, "test", "", map[string]any{"i": i})))
	}
	close(block)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		delivered = int32(len(seen))
		return delivered > 0
	}, time.Second, time.Millisecond)

	overflow := b.History(0, 0)
	var overflowCount int
	for _, e := range overflow {
		if e.EventType == BusOverflow {
			overflowCount++
		}
	}
	require.Greater(t, overflowCount, 0)
}

func TestSyncHandlerPanicIsolated(t *testing.T) {
	b := newTestBus()
	var mu sync.Mutex
	var otherDelivered bool

	_, err := b.Subscribe(ApprovalRequired, func(e *Event) error {
		panic("boom")
	}, SubscribeOptions{Mode: Sync})
	require.NoError(t, err)

	_, err = b.Subscribe(ApprovalRequired, func(e *Event) error {
		mu.Lock()
		otherDelivered = true
		mu.Unlock()
		return nil
	}, SubscribeOptions{Mode: Sync})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent(ApprovalRequired, "test", "", nil)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return otherDelivered
	}, time.Second, time.Millisecond)
}

func TestCloseDrainsBeforeDeadline(t *testing.T) {
	b := newTestBus()
	var mu sync.Mutex
	handled := 0

	_, err := b.Subscribe(ServiceStarted, func(e *Event) error {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}, SubscribeOptions{Mode: Sync})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(NewEvent(ServiceStarted, "test", "", nil)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, handled)

	require.Error(t, b.Publish(NewEvent(ServiceStarted, "test", "", nil)))
}

func TestHistorySinceSeq(t *testing.T) {
	b := newTestBus()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(NewEvent(HealthCheck, "test", "", map[string]any{"i": i})))
	}
	all := b.History(0, 0)
	require.Len(t, all, 5)

	tail := b.History(all[2].Seq(), 0)
	require.Len(t, tail, 2)
}
