// Package swipes turns one-sided directional decisions into canonical-pair
// match rows. Two concurrent first swipes for the same pair always converge
// on a single row: the insert is guarded by a unique key and the loser of
// the race retries against the winner's row under a row lock.
package swipes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/bus"
	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
	"github.com/pacheco20222/DogMatch-backend/internal/domain/pair"
	"github.com/pacheco20222/DogMatch-backend/internal/domain/rules"
	pgrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/postgres"
)

const maxAttempts = 3

var (
	ErrValidation        = errors.New("validation error")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrSameOwner         = errors.New("entities share an owner")
	ErrProfileNotFound   = errors.New("profile not found")
	// ErrConflict means the bounded retry loop kept losing races. Callers
	// surface it as a retryable condition, the durable state stays coherent.
	ErrConflict = errors.New("swipe conflict, retry")
)

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

type ProfileStore interface {
	GetTx(ctx context.Context, tx pgx.Tx, profileID int64) (pgrepo.ProfileRecord, error)
}

type MatchStore interface {
	GetByPairForUpdate(ctx context.Context, tx pgx.Tx, lowID, highID int64) (pgrepo.MatchRecord, error)
	CreatePending(ctx context.Context, tx pgx.Tx, m pgrepo.NewMatch) (pgrepo.MatchRecord, error)
	UpdateActions(ctx context.Context, tx pgx.Tx, matchID int64, lowAction, highAction enums.ActionState, status enums.MatchStatus, matchedAt *time.Time, now time.Time) error
}

type RateLimiter interface {
	AllowSwipe(ctx context.Context, ownerID int64) (int64, bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, event bus.Event) error
}

type Config struct {
	// PendingTTL bounds how long a one-sided swipe waits for an answer
	// before the sweeper expires it. Zero disables expiry.
	PendingTTL time.Duration
}

type SwipeResult struct {
	Match        pgrepo.MatchRecord
	MatchCreated bool
	Changed      bool
}

type Service struct {
	pool         *pgxpool.Pool
	profileStore ProfileStore
	matchStore   MatchStore
	rateLimiter  RateLimiter
	publisher    Publisher
	logger       *zap.Logger
	cfg          Config
	now          func() time.Time
	runTx        func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool         *pgxpool.Pool
	ProfileStore ProfileStore
	MatchStore   MatchStore
	RateLimiter  RateLimiter
	Publisher    Publisher
	Logger       *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		pool:         deps.Pool,
		profileStore: deps.ProfileStore,
		matchStore:   deps.MatchStore,
		rateLimiter:  deps.RateLimiter,
		publisher:    deps.Publisher,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
	s.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, s.pool, fn)
	}

	return s
}

// Swipe records actorID's decision about targetID and returns the resulting
// pair state. Repeating the same decision is a no-op; changing a decision is
// allowed only while the peer side is still pending and the pair is not in a
// terminal status.
func (s *Service) Swipe(ctx context.Context, actorOwnerID, actorID, targetID int64, action string) (SwipeResult, error) {
	if actorOwnerID <= 0 {
		return SwipeResult{}, ErrValidation
	}

	swipeAction, ok := enums.ParseSwipeAction(action)
	if !ok {
		return SwipeResult{}, ErrUnsupportedAction
	}

	lowID, highID, err := pair.Canonicalize(actorID, targetID)
	if err != nil {
		if errors.Is(err, pair.ErrSelfPair) || errors.Is(err, pair.ErrInvalidID) {
			return SwipeResult{}, ErrValidation
		}
		return SwipeResult{}, err
	}

	if s.rateLimiter != nil {
		retryAfter, allowed, err := s.rateLimiter.AllowSwipe(ctx, actorOwnerID)
		if err != nil {
			return SwipeResult{}, fmt.Errorf("apply swipe rate limiter: %w", err)
		}
		if !allowed {
			return SwipeResult{}, TooFastError{RetryAfterSec: retryAfter}
		}
	}

	if s.matchStore == nil || s.profileStore == nil {
		return SwipeResult{}, fmt.Errorf("swipe dependencies are not configured")
	}

	now := s.now().UTC()

	var result SwipeResult
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, lastErr = s.swipeOnce(ctx, actorID, lowID, highID, swipeAction, now)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, pgrepo.ErrPairExists) && !pgrepo.IsSerializationFailure(lastErr) {
			return SwipeResult{}, lastErr
		}
		s.logger.Debug("swipe retry after conflict",
			zap.Int64("low_id", lowID),
			zap.Int64("high_id", highID),
			zap.Int("attempt", attempt+1),
		)
	}
	if lastErr != nil {
		return SwipeResult{}, ErrConflict
	}

	if result.MatchCreated {
		s.publishNewMatch(ctx, result.Match, now)
	}

	return result, nil
}

func (s *Service) swipeOnce(ctx context.Context, actorID, lowID, highID int64, action enums.SwipeAction, now time.Time) (SwipeResult, error) {
	var result SwipeResult

	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.matchStore.GetByPairForUpdate(txCtx, tx, lowID, highID)
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			created, createErr := s.createFirstSwipe(txCtx, tx, actorID, lowID, highID, action, now)
			if createErr != nil {
				return createErr
			}
			result = SwipeResult{Match: created, Changed: true}
			return nil
		}
		if err != nil {
			return err
		}

		// Terminal or deactivated pairs absorb further swipes without
		// changing state. A repeated like on a declined pair must not
		// revive it.
		if rec.Status.Terminal() || !rec.IsActive {
			result = SwipeResult{Match: rec}
			return nil
		}

		actorAction, peerAction := rec.LowAction, rec.HighAction
		actorIsLow := actorID == rec.LowID
		if !actorIsLow {
			actorAction, peerAction = rec.HighAction, rec.LowAction
		}

		next := action.State()
		if actorAction == next {
			result = SwipeResult{Match: rec}
			return nil
		}
		// While the peer has not answered, the actor may change their
		// mind; the latest decision wins.
		_ = peerAction

		lowAction, highAction := rec.LowAction, rec.HighAction
		if actorIsLow {
			lowAction = next
		} else {
			highAction = next
		}

		status := rules.NextStatus(lowAction, highAction)

		var matchedAt *time.Time
		if status == enums.MatchStatusMatched {
			matchedAt = &now
		}

		if err := s.matchStore.UpdateActions(txCtx, tx, rec.ID, lowAction, highAction, status, matchedAt, now); err != nil {
			return err
		}

		rec.LowAction = lowAction
		rec.HighAction = highAction
		becameMatched := status == enums.MatchStatusMatched && rec.Status != enums.MatchStatusMatched
		rec.Status = status
		if becameMatched {
			rec.MatchedAt = &now
		}

		result = SwipeResult{Match: rec, MatchCreated: becameMatched, Changed: true}
		return nil
	})
	if err != nil {
		return SwipeResult{}, err
	}

	return result, nil
}

func (s *Service) createFirstSwipe(ctx context.Context, tx pgx.Tx, actorID, lowID, highID int64, action enums.SwipeAction, now time.Time) (pgrepo.MatchRecord, error) {
	lowProfile, err := s.profileStore.GetTx(ctx, tx, lowID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return pgrepo.MatchRecord{}, ErrProfileNotFound
		}
		return pgrepo.MatchRecord{}, err
	}
	highProfile, err := s.profileStore.GetTx(ctx, tx, highID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return pgrepo.MatchRecord{}, ErrProfileNotFound
		}
		return pgrepo.MatchRecord{}, err
	}
	if lowProfile.OwnerUserID == highProfile.OwnerUserID {
		return pgrepo.MatchRecord{}, ErrSameOwner
	}

	lowAction, highAction := action.State(), enums.ActionStatePending
	if actorID == highID {
		lowAction, highAction = enums.ActionStatePending, action.State()
	}

	var expiresAt *time.Time
	if s.cfg.PendingTTL > 0 {
		deadline := now.Add(s.cfg.PendingTTL)
		expiresAt = &deadline
	}

	rec, err := s.matchStore.CreatePending(ctx, tx, pgrepo.NewMatch{
		LowID:       lowID,
		HighID:      highID,
		LowOwnerID:  lowProfile.OwnerUserID,
		HighOwnerID: highProfile.OwnerUserID,
		LowAction:   lowAction,
		HighAction:  highAction,
		InitiatedBy: actorID,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	})
	if err != nil {
		return pgrepo.MatchRecord{}, err
	}

	// A pass as the very first swipe settles the pair immediately.
	status := rules.NextStatus(rec.LowAction, rec.HighAction)
	if status != rec.Status {
		if err := s.matchStore.UpdateActions(ctx, tx, rec.ID, rec.LowAction, rec.HighAction, status, nil, now); err != nil {
			return pgrepo.MatchRecord{}, err
		}
		rec.Status = status
	}

	return rec, nil
}

// publishNewMatch notifies both owners. The match row is already committed;
// a failed publish is logged and swallowed so the swipe never fails on the
// realtime path.
func (s *Service) publishNewMatch(ctx context.Context, rec pgrepo.MatchRecord, now time.Time) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, bus.Event{
		Type:           enums.EventTypeNewMatch,
		MatchID:        rec.ID,
		EntityIDs:      []int64{rec.LowID, rec.HighID},
		At:             now,
		TargetOwnerIDs: []int64{rec.LowOwnerID, rec.HighOwnerID},
	})
	if err != nil {
		s.logger.Warn("publish new match event failed",
			zap.Int64("match_id", rec.ID),
			zap.Error(err),
		)
	}
}
