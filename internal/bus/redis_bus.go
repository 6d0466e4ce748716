package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ownerTopicPrefix = "rt:owner:"

func ownerTopic(ownerID int64) string {
	return ownerTopicPrefix + strconv.FormatInt(ownerID, 10)
}

func ownerFromTopic(topic string) (int64, bool) {
	raw, ok := strings.CutPrefix(topic, ownerTopicPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RedisBus publishes each event once per target owner on that owner's topic,
// so an instance only receives traffic for owners it actually hosts.
type RedisBus struct {
	client *goredis.Client
	logger *zap.Logger
}

func NewRedisBus(client *goredis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	if b.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if len(event.TargetOwnerIDs) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var firstErr error
	for _, ownerID := range event.TargetOwnerIDs {
		if ownerID <= 0 {
			continue
		}
		if err := b.client.Publish(ctx, ownerTopic(ownerID), payload).Err(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publish event to owner %d: %w", ownerID, err)
			}
		}
	}

	return firstErr
}

func (b *RedisBus) Subscribe(ctx context.Context) (Subscription, error) {
	if b.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	// Subscribe with no channels; owners are added as they connect.
	pubsub := b.client.Subscribe(ctx)

	sub := &redisSubscription{
		pubsub: pubsub,
		logger: b.logger,
		out:    make(chan Delivery, 256),
		done:   make(chan struct{}),
	}
	go sub.pump()

	return sub, nil
}

type redisSubscription struct {
	pubsub *goredis.PubSub
	logger *zap.Logger
	out    chan Delivery
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *redisSubscription) Add(ctx context.Context, ownerID int64) error {
	if ownerID <= 0 {
		return fmt.Errorf("invalid owner id")
	}
	return s.pubsub.Subscribe(ctx, ownerTopic(ownerID))
}

func (s *redisSubscription) Remove(ctx context.Context, ownerID int64) error {
	if ownerID <= 0 {
		return fmt.Errorf("invalid owner id")
	}
	return s.pubsub.Unsubscribe(ctx, ownerTopic(ownerID))
}

func (s *redisSubscription) C() <-chan Delivery {
	return s.out
}

func (s *redisSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	return s.pubsub.Close()
}

func (s *redisSubscription) pump() {
	defer close(s.out)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			ownerID, ok := ownerFromTopic(msg.Channel)
			if !ok {
				s.logger.Warn("event on unexpected topic", zap.String("topic", msg.Channel))
				continue
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("drop malformed event", zap.String("topic", msg.Channel), zap.Error(err))
				continue
			}

			select {
			case s.out <- Delivery{OwnerID: ownerID, Event: event}:
			case <-s.done:
				return
			default:
				// Slow consumer: drop rather than stall every owner on
				// this subscription. The client resyncs from Postgres.
				s.logger.Warn("drop event for slow consumer", zap.Int64("owner_id", ownerID))
			}
		}
	}
}
