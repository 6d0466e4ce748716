package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}

func waitDelivery(t *testing.T, ch <-chan Delivery) Delivery {
	t.Helper()

	select {
	case d, ok := <-ch:
		if !ok {
			t.Fatalf("subscription channel closed")
		}
		return d
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
	return Delivery{}
}

func TestRedisBusDeliversToSubscribedOwner(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	b := NewRedisBus(client, zap.NewNop())
	ctx := context.Background()

	sub, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Close() }()

	if err := sub.Add(ctx, 7); err != nil {
		t.Fatalf("add owner: %v", err)
	}

	event := Event{
		Type:           enums.EventTypeNewMessage,
		MatchID:        11,
		MessageID:      101,
		SenderOwnerID:  3,
		Content:        "hello",
		At:             time.Now().UTC(),
		TargetOwnerIDs: []int64{7},
	}
	if err := b.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	d := waitDelivery(t, sub.C())
	if d.OwnerID != 7 {
		t.Fatalf("unexpected delivery owner: %d", d.OwnerID)
	}
	if d.Event.Type != enums.EventTypeNewMessage || d.Event.MessageID != 101 || d.Event.MatchID != 11 {
		t.Fatalf("unexpected event payload: %+v", d.Event)
	}
}

func TestRedisBusFansOutPerTarget(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	b := NewRedisBus(client, zap.NewNop())
	ctx := context.Background()

	sub, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Close() }()

	if err := sub.Add(ctx, 1); err != nil {
		t.Fatalf("add owner 1: %v", err)
	}
	if err := sub.Add(ctx, 2); err != nil {
		t.Fatalf("add owner 2: %v", err)
	}

	event := Event{
		Type:           enums.EventTypeNewMatch,
		MatchID:        5,
		At:             time.Now().UTC(),
		TargetOwnerIDs: []int64{1, 2},
	}
	if err := b.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	seen := map[int64]bool{}
	for i := 0; i < 2; i++ {
		d := waitDelivery(t, sub.C())
		if d.Event.Type != enums.EventTypeNewMatch || d.Event.MatchID != 5 {
			t.Fatalf("unexpected event payload: %+v", d.Event)
		}
		seen[d.OwnerID] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected deliveries for both owners, got %v", seen)
	}
}

func TestRedisBusStopsAfterRemove(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	b := NewRedisBus(client, zap.NewNop())
	ctx := context.Background()

	sub, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Close() }()

	if err := sub.Add(ctx, 9); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	if err := sub.Remove(ctx, 9); err != nil {
		t.Fatalf("remove owner: %v", err)
	}

	event := Event{
		Type:           enums.EventTypePresence,
		OwnerID:        3,
		Online:         true,
		At:             time.Now().UTC(),
		TargetOwnerIDs: []int64{9},
	}
	if err := b.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case d := <-sub.C():
		t.Fatalf("unexpected delivery after unsubscribe: %+v", d)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisBusPublishNoTargetsIsNoop(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	b := NewRedisBus(client, zap.NewNop())

	if err := b.Publish(context.Background(), Event{Type: enums.EventTypeTyping}); err != nil {
		t.Fatalf("publish without targets: %v", err)
	}
}
