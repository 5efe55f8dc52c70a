package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("event bus closed")

const queueSize = 64

// EventBus implements ports.EventBus with in-process handlers. Every
// subscription receives events in publish order. Consumers of a topic share
// one queue; events published before the first consumer are not queued.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	consumers   map[string][]*subscription
	queues      map[string]chan domain.Event
	closed      bool
	done        chan struct{}
	wg          sync.WaitGroup
	logger      *zap.Logger
}

type subscription struct {
	handler ports.EventHandler
	events  chan domain.Event
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewEventBus creates a new in-memory event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[string][]*subscription),
		consumers:   make(map[string][]*subscription),
		queues:      make(map[string]chan domain.Event),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Publish queues an event for every subscriber of a topic and once for its
// consumers. It blocks while a queue is full.
func (e *EventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	subs := append([]*subscription(nil), e.subscribers[topic]...)
	queue := e.queues[topic]
	e.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.events <- event:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if queue != nil {
		select {
		case queue <- event:
		case <-e.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers handler on topic until ctx is cancelled.
func (e *EventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	sub := &subscription{
		handler: handler,
		events:  make(chan domain.Event, queueSize),
		done:    make(chan struct{}),
	}
	e.subscribers[topic] = append(e.subscribers[topic], sub)

	e.wg.Add(1)
	go e.deliver(ctx, topic, sub)
	return nil
}

// Consume registers handler on the shared queue of topic until ctx is
// cancelled.
func (e *EventBus) Consume(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	queue, ok := e.queues[topic]
	if !ok {
		queue = make(chan domain.Event, queueSize)
		e.queues[topic] = queue
	}
	sub := &subscription{
		handler: handler,
		events:  queue,
		done:    make(chan struct{}),
	}
	e.consumers[topic] = append(e.consumers[topic], sub)

	e.wg.Add(1)
	go e.deliver(ctx, topic, sub)
	return nil
}

func (e *EventBus) deliver(ctx context.Context, topic string, sub *subscription) {
	defer e.wg.Done()
	for {
		select {
		case <-sub.done:
			return
		case <-ctx.Done():
			e.remove(topic, sub)
			return
		case event := <-sub.events:
			if err := sub.handler(ctx, event); err != nil {
				e.logger.Warn("event handler failed",
					zap.String("topic", topic),
					zap.String("event_id", event.ID),
					zap.Error(err))
			}
		}
	}
}

// Unsubscribe removes all subscriptions and consumers from a topic and
// drops its queue.
func (e *EventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	subs := append(e.subscribers[topic], e.consumers[topic]...)
	delete(e.subscribers, topic)
	delete(e.consumers, topic)
	delete(e.queues, topic)
	e.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

// Close stops every subscription and waits for running handlers.
func (e *EventBus) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.done)
	var subs []*subscription
	for _, list := range e.subscribers {
		subs = append(subs, list...)
	}
	for _, list := range e.consumers {
		subs = append(subs, list...)
	}
	e.subscribers = make(map[string][]*subscription)
	e.consumers = make(map[string][]*subscription)
	e.queues = make(map[string]chan domain.Event)
	e.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	e.wg.Wait()
	return nil
}

func (e *EventBus) remove(topic string, sub *subscription) {
	sub.stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, set := range []map[string][]*subscription{e.subscribers, e.consumers} {
		subs := set[topic]
		for i, s := range subs {
			if s == sub {
				set[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(set[topic]) == 0 {
			delete(set, topic)
		}
	}
}
