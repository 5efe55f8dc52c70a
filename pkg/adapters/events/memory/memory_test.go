package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) handle(_ context.Context, e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		out = append(out, e.ID)
	}
	return out
}

func TestPublishInOrder(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Close()

	c := &collector{}
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicSteps, c.handle))

	want := []string{"1", "2", "3", "4", "5"}
	for _, id := range want {
		require.NoError(t, bus.Publish(context.Background(), domain.TopicSteps, domain.Event{ID: id}))
	}

	assert.Eventually(t, func() bool { return len(c.ids()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, c.ids())
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Close()

	steps := &collector{}
	deployments := &collector{}
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicSteps, steps.handle))
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicDeployments, deployments.handle))

	require.NoError(t, bus.Publish(context.Background(), domain.TopicDeployments, domain.Event{ID: "d"}))

	assert.Eventually(t, func() bool { return len(deployments.ids()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, steps.ids())
}

func TestHandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Close()

	var mu sync.Mutex
	calls := 0
	require.NoError(t, bus.Subscribe(context.Background(), "t", func(context.Context, domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("boom")
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), "t", domain.Event{}))
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 3
	}, time.Second, 5*time.Millisecond)
}

func TestCancelledSubscriptionIsRemoved(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	require.NoError(t, bus.Subscribe(ctx, "t", c.handle))
	cancel()

	assert.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["t"]) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "t", domain.Event{ID: "late"}))
	assert.Empty(t, c.ids())
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Close()

	c := &collector{}
	require.NoError(t, bus.Subscribe(context.Background(), "t", c.handle))
	require.NoError(t, bus.Unsubscribe(context.Background(), "t"))
	require.NoError(t, bus.Publish(context.Background(), "t", domain.Event{ID: "x"}))
	assert.Empty(t, c.ids())
}

func TestClosedBus(t *testing.T) {
	bus := NewEventBus(nil)
	require.NoError(t, bus.Subscribe(context.Background(), "t", (&collector{}).handle))
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), "t", domain.Event{}), ErrClosed)
	assert.ErrorIs(t, bus.Subscribe(context.Background(), "t", (&collector{}).handle), ErrClosed)
}

func TestConsumersShareEvents(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Close()

	first, second, observer := &collector{}, &collector{}, &collector{}
	require.NoError(t, bus.Consume(context.Background(), domain.TopicRequests, first.handle))
	require.NoError(t, bus.Consume(context.Background(), domain.TopicRequests, second.handle))
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicRequests, observer.handle))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(context.Background(), domain.TopicRequests, domain.Event{ID: fmt.Sprint(i)}))
	}

	assert.Eventually(t, func() bool {
		return len(first.ids())+len(second.ids()) == 20 && len(observer.ids()) == 20
	}, time.Second, 5*time.Millisecond)

	seen := map[string]bool{}
	for _, id := range append(first.ids(), second.ids()...) {
		assert.False(t, seen[id], "event %s consumed twice", id)
		seen[id] = true
	}
}

func TestConsumeWithoutConsumersDoesNotQueue(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Close()

	for i := 0; i < queueSize*2; i++ {
		require.NoError(t, bus.Publish(context.Background(), domain.TopicRequests, domain.Event{}))
	}
}

func TestClosedBusUnblocksConsumerPublish(t *testing.T) {
	bus := NewEventBus(nil)
	release := make(chan struct{})
	require.NoError(t, bus.Consume(context.Background(), "q", func(ctx context.Context, _ domain.Event) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	errs := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < queueSize+2 && err == nil; i++ {
			err = bus.Publish(context.Background(), "q", domain.Event{})
		}
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	closed := make(chan error, 1)
	go func() { closed <- bus.Close() }()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("publish still blocked after close")
	}
	close(release)
	require.NoError(t, <-closed)
}
