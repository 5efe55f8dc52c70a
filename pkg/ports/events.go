package ports

import (
	"context"

	"github.com/powers-protocol/powers/pkg/domain"
)

// EventHandler processes one event delivered by the bus.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes and delivers deployment events by topic.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe registers handler until ctx is cancelled. Every subscription
	// sees every event published on topic after it subscribed.
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	// Consume registers handler as one of the competing consumers of topic:
	// each event goes to exactly one of them.
	Consume(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
