// Package bus carries realtime events between API instances. Durable writes
// never depend on the bus: publishers treat delivery as best effort and a
// subscriber that missed an event recovers state from Postgres on reconnect.
package bus

import (
	"context"
	"time"

	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
)

// Event is the wire envelope for every realtime notification. Only the
// fields relevant to the event type are populated.
type Event struct {
	Type           enums.EventType `json:"type"`
	MatchID        int64           `json:"match_id,omitempty"`
	MessageID      int64           `json:"message_id,omitempty"`
	SenderOwnerID  int64           `json:"sender_owner_id,omitempty"`
	OwnerID        int64           `json:"owner_id,omitempty"`
	EntityIDs      []int64         `json:"entity_ids,omitempty"`
	Content        string          `json:"content,omitempty"`
	Unread         int             `json:"unread,omitempty"`
	Online         bool            `json:"online,omitempty"`
	Typing         bool            `json:"typing,omitempty"`
	At             time.Time       `json:"at"`
	TargetOwnerIDs []int64         `json:"-"`
}

// Delivery is one event received for one subscribed owner.
type Delivery struct {
	OwnerID int64
	Event   Event
}

type Bus interface {
	// Publish fans the event out to every owner in TargetOwnerIDs.
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a dynamic set of owner topics. Add and Remove adjust the
// set while C keeps delivering; Close releases the underlying channel.
type Subscription interface {
	Add(ctx context.Context, ownerID int64) error
	Remove(ctx context.Context, ownerID int64) error
	C() <-chan Delivery
	Close() error
}
