package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamsEventBus implements EventBus using Redis Streams
type StreamsEventBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string
	block         time.Duration

	mu      sync.Mutex
	readers map[string][]context.CancelFunc
	wg      sync.WaitGroup
}

// NewStreamsEventBus creates a new Redis Streams event bus. Consumers read
// through consumerGroup and split a topic's events between them;
// subscribers read the stream directly and each see every event.
func NewStreamsEventBus(client *redis.Client, consumerGroup, consumerName string, logger *zap.Logger) (*StreamsEventBus, error) {
	if consumerGroup == "" || consumerName == "" {
		return nil, fmt.Errorf("consumer group and consumer name are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamsEventBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		block:         time.Second,
		readers:       make(map[string][]context.CancelFunc),
	}, nil
}

// Publish publishes an event to the appropriate stream topic
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	streamKey := getStreamKey(topic)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("topic", topic),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe delivers every event appended to the topic's stream after the
// call. Nothing is acknowledged and handler errors are only logged.
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)

	lastID := "0-0"
	latest, err := e.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil {
		return fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(latest) > 0 {
		lastID = latest[0].ID
	}

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("from", lastID))

	e.start(ctx, topic, func(readCtx context.Context) {
		e.readTail(readCtx, streamKey, lastID, handler)
	})
	return nil
}

// Consume reads the topic through the consumer group. Each event is handed
// to one consumer and acknowledged once handler succeeds.
func (e *StreamsEventBus) Consume(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)

	err := e.client.XGroupCreateMkStream(ctx, streamKey, e.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	e.logger.Info("consuming event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("consumer_group", e.consumerGroup),
		zap.String("consumer", e.consumerName))

	e.start(ctx, topic, func(readCtx context.Context) {
		e.readGroup(readCtx, streamKey, handler)
	})
	return nil
}

func (e *StreamsEventBus) start(ctx context.Context, topic string, read func(context.Context)) {
	readCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.readers[topic] = append(e.readers[topic], cancel)
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		read(readCtx)
	}()
}

// readTail follows a stream from lastID without a consumer group.
func (e *StreamsEventBus) readTail(ctx context.Context, streamKey, lastID string, handler ports.EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Count:   10,
			Block:   e.block,
		}).Result()
		if err != nil {
			if !e.backoff(ctx, streamKey, err) {
				return
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				event, ok := e.decode(streamKey, message)
				if !ok {
					continue
				}
				if err := handler(ctx, event); err != nil {
					e.logger.Warn("subscriber handler error",
						zap.String("stream", streamKey),
						zap.String("message_id", message.ID),
						zap.Error(err))
				}
			}
		}
	}
}

// readGroup reads new messages for this consumer from the group.
func (e *StreamsEventBus) readGroup(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    e.consumerGroup,
			Consumer: e.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    10,
			Block:    e.block,
		}).Result()
		if err != nil {
			if !e.backoff(ctx, streamKey, err) {
				return
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				e.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

// backoff handles a read error and reports whether the reader should go on.
func (e *StreamsEventBus) backoff(ctx context.Context, streamKey string, err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	e.logger.Error("failed to read from stream",
		zap.String("stream", streamKey),
		zap.Error(err))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Second):
		return true
	}
}

// processMessage processes a single message from the stream. Messages whose
// handler fails stay pending.
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	event, ok := e.decode(streamKey, message)
	if !ok {
		e.ack(ctx, streamKey, message.ID)
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	e.ack(ctx, streamKey, message.ID)
}

func (e *StreamsEventBus) decode(streamKey string, message redis.XMessage) (domain.Event, bool) {
	var event domain.Event
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		return event, false
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return event, false
	}
	return event, true
}

func (e *StreamsEventBus) ack(ctx context.Context, streamKey, id string) {
	if err := e.client.XAck(ctx, streamKey, e.consumerGroup, id).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", id),
			zap.Error(err))
	}
}

// Unsubscribe stops the readers of a topic. The consumer group stays on the
// server so pending messages survive.
func (e *StreamsEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	cancels := e.readers[topic]
	delete(e.readers, topic)
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// Close stops every reader and waits for them. The Redis client is closed
// by its owner.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	readers := e.readers
	e.readers = make(map[string][]context.CancelFunc)
	e.mu.Unlock()

	for _, cancels := range readers {
		for _, cancel := range cancels {
			cancel()
		}
	}
	e.wg.Wait()
	return nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return fmt.Sprintf("powers:events:%s", topic)
}
