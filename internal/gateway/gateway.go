// Package gateway holds the per-instance websocket fan-out. Every instance
// subscribes to the bus topics of the owners it currently hosts and relays
// their events to local connections; nothing here is durable.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/bus"
	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
)

var ErrValidation = errors.New("validation error")

const (
	subscribeMaxAttempts = 5
	subscribeRetryWait   = time.Second
)

// Conn is one attached client. Send must not block: it reports false when
// the connection cannot keep up and the gateway drops it.
type Conn interface {
	Send(payload []byte) bool
	Close()
}

// PeerDirectory resolves who should hear about an owner's presence and
// typing signals.
type PeerDirectory interface {
	PeerOwnerIDs(ctx context.Context, ownerID int64) ([]int64, error)
	PeerOwnerForMatch(ctx context.Context, matchID, ownerID int64) (int64, error)
}

type Gateway struct {
	bus       bus.Bus
	sub       bus.Subscription
	peers     PeerDirectory
	logger    *zap.Logger
	now       func() time.Time
	retryWait time.Duration

	mu    sync.RWMutex
	conns map[int64]map[Conn]struct{}
}

type Dependencies struct {
	Bus    bus.Bus
	Peers  PeerDirectory
	Logger *zap.Logger
}

func New(deps Dependencies) *Gateway {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		bus:       deps.Bus,
		peers:     deps.Peers,
		logger:    logger,
		now:       time.Now,
		retryWait: subscribeRetryWait,
		conns:     map[int64]map[Conn]struct{}{},
	}
}

// Run subscribes to the bus and relays deliveries to local connections until
// the context ends. A dropped subscription is re-established so clients that
// connect afterwards still receive remote events.
func (g *Gateway) Run(ctx context.Context) error {
	if g.bus == nil {
		return errors.New("bus is not configured")
	}

	for {
		sub, err := g.subscribe(ctx)
		if err != nil {
			return err
		}

		g.mu.Lock()
		g.sub = sub
		owners := make([]int64, 0, len(g.conns))
		for ownerID := range g.conns {
			owners = append(owners, ownerID)
		}
		g.mu.Unlock()

		// A fresh subscription starts empty; re-attach the owners already
		// connected to this instance.
		for _, ownerID := range owners {
			if err := sub.Add(ctx, ownerID); err != nil {
				g.logger.Warn("resubscribe owner topic failed", zap.Int64("owner_id", ownerID), zap.Error(err))
			}
		}

		streamEnded := g.pump(ctx, sub)
		if err := sub.Close(); err != nil {
			g.logger.Warn("close bus subscription", zap.Error(err))
		}
		if !streamEnded {
			return ctx.Err()
		}
		g.logger.Warn("bus subscription ended, resubscribing")
	}
}

// subscribe retries a failed bus subscription a bounded number of times
// before giving up.
func (g *Gateway) subscribe(ctx context.Context) (bus.Subscription, error) {
	var lastErr error
	for attempt := 1; attempt <= subscribeMaxAttempts; attempt++ {
		sub, err := g.bus.Subscribe(ctx)
		if err == nil {
			return sub, nil
		}
		lastErr = err
		g.logger.Warn("bus subscribe failed", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.retryWait):
		}
	}
	return nil, lastErr
}

// pump relays deliveries until the context ends (false) or the subscription
// stream closes underneath it (true).
func (g *Gateway) pump(ctx context.Context, sub bus.Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case delivery, ok := <-sub.C():
			if !ok {
				return true
			}
			g.dispatch(delivery)
		}
	}
}

// Register attaches a connection for an owner. The first connection starts
// the owner's bus topic and announces presence to the owner's match peers.
func (g *Gateway) Register(ctx context.Context, ownerID int64, conn Conn) error {
	if ownerID <= 0 || conn == nil {
		return ErrValidation
	}

	g.mu.Lock()
	set, existed := g.conns[ownerID]
	if !existed {
		set = map[Conn]struct{}{}
		g.conns[ownerID] = set
	}
	set[conn] = struct{}{}
	sub := g.sub
	g.mu.Unlock()

	if !existed && sub != nil {
		if err := sub.Add(ctx, ownerID); err != nil {
			g.logger.Warn("subscribe owner topic failed", zap.Int64("owner_id", ownerID), zap.Error(err))
		}
	}
	if !existed {
		g.publishPresence(ctx, ownerID, true)
	}

	return nil
}

// Unregister detaches a connection. When the owner's last connection goes,
// the topic is dropped and peers hear the owner went offline.
func (g *Gateway) Unregister(ctx context.Context, ownerID int64, conn Conn) {
	if ownerID <= 0 || conn == nil {
		return
	}

	g.mu.Lock()
	set, ok := g.conns[ownerID]
	if ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(g.conns, ownerID)
		} else {
			ok = false
		}
	}
	sub := g.sub
	g.mu.Unlock()

	conn.Close()

	if ok && sub != nil {
		if err := sub.Remove(ctx, ownerID); err != nil {
			g.logger.Warn("unsubscribe owner topic failed", zap.Int64("owner_id", ownerID), zap.Error(err))
		}
	}
	if ok {
		g.publishPresence(ctx, ownerID, false)
	}
}

// Typing relays a transient typing signal to the other participant of the
// match. It is never persisted.
func (g *Gateway) Typing(ctx context.Context, ownerID, matchID int64, typing bool) error {
	if ownerID <= 0 || matchID <= 0 {
		return ErrValidation
	}
	if g.bus == nil || g.peers == nil {
		return errors.New("gateway dependencies are not configured")
	}

	peerOwnerID, err := g.peers.PeerOwnerForMatch(ctx, matchID, ownerID)
	if err != nil {
		return err
	}

	return g.bus.Publish(ctx, bus.Event{
		Type:           enums.EventTypeTyping,
		MatchID:        matchID,
		OwnerID:        ownerID,
		Typing:         typing,
		At:             g.now().UTC(),
		TargetOwnerIDs: []int64{peerOwnerID},
	})
}

// Online reports whether the owner has at least one connection on this
// instance.
func (g *Gateway) Online(ownerID int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns[ownerID]) > 0
}

func (g *Gateway) dispatch(delivery bus.Delivery) {
	payload, err := json.Marshal(delivery.Event)
	if err != nil {
		g.logger.Warn("marshal outbound event", zap.Error(err))
		return
	}

	g.mu.RLock()
	set := g.conns[delivery.OwnerID]
	targets := make([]Conn, 0, len(set))
	for conn := range set {
		targets = append(targets, conn)
	}
	g.mu.RUnlock()

	for _, conn := range targets {
		if !conn.Send(payload) {
			g.logger.Warn("drop stalled connection", zap.Int64("owner_id", delivery.OwnerID))
			g.Unregister(context.Background(), delivery.OwnerID, conn)
		}
	}
}

// publishPresence is best effort, exactly like the other realtime signals.
func (g *Gateway) publishPresence(ctx context.Context, ownerID int64, online bool) {
	if g.bus == nil || g.peers == nil {
		return
	}

	peerIDs, err := g.peers.PeerOwnerIDs(ctx, ownerID)
	if err != nil {
		g.logger.Warn("resolve presence peers failed", zap.Int64("owner_id", ownerID), zap.Error(err))
		return
	}
	if len(peerIDs) == 0 {
		return
	}

	err = g.bus.Publish(ctx, bus.Event{
		Type:           enums.EventTypePresence,
		OwnerID:        ownerID,
		Online:         online,
		At:             g.now().UTC(),
		TargetOwnerIDs: peerIDs,
	})
	if err != nil {
		g.logger.Warn("publish presence failed", zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}
