package matches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
	pgrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/postgres"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrMatchNotFound = errors.New("match not found")
	ErrPermission    = errors.New("not a participant of this match")
	ErrNotUnmatched  = errors.New("match is not active or not matched")
)

type MatchStore interface {
	GetByID(ctx context.Context, matchID int64) (pgrepo.MatchRecord, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, matchID int64) (pgrepo.MatchRecord, error)
	ListForEntity(ctx context.Context, entityID int64, status enums.MatchStatus, limit int) ([]pgrepo.MatchRecord, error)
	ListPendingLikesFor(ctx context.Context, entityID int64) ([]pgrepo.PendingLikeRecord, error)
	Deactivate(ctx context.Context, tx pgx.Tx, matchID int64, now time.Time) (bool, error)
	SetArchived(ctx context.Context, tx pgx.Tx, matchID int64, archived bool, byOwnerID *int64, now time.Time) (bool, error)
	StatsForOwner(ctx context.Context, ownerID int64) (pgrepo.MatchStatsRecord, error)
}

type Stats struct {
	TotalMatched    int
	PendingIncoming int
}

type Service struct {
	pool       *pgxpool.Pool
	matchStore MatchStore
	logger     *zap.Logger
	now        func() time.Time
	runTx      func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool       *pgxpool.Pool
	MatchStore MatchStore
	Logger     *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		pool:       deps.Pool,
		matchStore: deps.MatchStore,
		logger:     logger,
		now:        time.Now,
	}
	s.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, s.pool, fn)
	}

	return s
}

func (s *Service) List(ctx context.Context, entityID int64, status string, limit int) ([]pgrepo.MatchRecord, error) {
	if entityID <= 0 {
		return nil, ErrValidation
	}

	var statusFilter enums.MatchStatus
	if status != "" {
		statusFilter = enums.MatchStatus(status)
		switch statusFilter {
		case enums.MatchStatusPending, enums.MatchStatusMatched, enums.MatchStatusDeclined, enums.MatchStatusExpired:
		default:
			return nil, ErrValidation
		}
	}

	if s.matchStore == nil {
		return nil, fmt.Errorf("match store is not configured")
	}

	return s.matchStore.ListForEntity(ctx, entityID, statusFilter, limit)
}

// PendingLikes lists who liked the entity while its own side is undecided.
func (s *Service) PendingLikes(ctx context.Context, entityID int64) ([]pgrepo.PendingLikeRecord, error) {
	if entityID <= 0 {
		return nil, ErrValidation
	}
	if s.matchStore == nil {
		return nil, fmt.Errorf("match store is not configured")
	}

	return s.matchStore.ListPendingLikesFor(ctx, entityID)
}

// Unmatch soft-deactivates a matched pair on behalf of one of its owners.
// The row and its message history survive; only is_active flips.
func (s *Service) Unmatch(ctx context.Context, matchID, ownerID int64) error {
	if matchID <= 0 || ownerID <= 0 {
		return ErrValidation
	}
	if s.matchStore == nil {
		return fmt.Errorf("match store is not configured")
	}

	now := s.now().UTC()

	return s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.matchStore.GetByIDForUpdate(txCtx, tx, matchID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if rec.LowOwnerID != ownerID && rec.HighOwnerID != ownerID {
			return ErrPermission
		}

		done, err := s.matchStore.Deactivate(txCtx, tx, matchID, now)
		if err != nil {
			return err
		}
		if !done {
			return ErrNotUnmatched
		}

		s.logger.Info("match deactivated",
			zap.Int64("match_id", matchID),
			zap.Int64("owner_id", ownerID),
		)
		return nil
	})
}

func (s *Service) SetArchived(ctx context.Context, matchID, ownerID int64, archived bool) error {
	if matchID <= 0 || ownerID <= 0 {
		return ErrValidation
	}
	if s.matchStore == nil {
		return fmt.Errorf("match store is not configured")
	}

	now := s.now().UTC()

	return s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.matchStore.GetByIDForUpdate(txCtx, tx, matchID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if rec.LowOwnerID != ownerID && rec.HighOwnerID != ownerID {
			return ErrPermission
		}
		if rec.IsArchived == archived {
			return nil
		}

		var by *int64
		if archived {
			by = &ownerID
		}
		if _, err := s.matchStore.SetArchived(txCtx, tx, matchID, archived, by, now); err != nil {
			return err
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, matchID, ownerID int64) (pgrepo.MatchRecord, error) {
	if matchID <= 0 || ownerID <= 0 {
		return pgrepo.MatchRecord{}, ErrValidation
	}
	if s.matchStore == nil {
		return pgrepo.MatchRecord{}, fmt.Errorf("match store is not configured")
	}

	rec, err := s.matchStore.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return pgrepo.MatchRecord{}, ErrMatchNotFound
		}
		return pgrepo.MatchRecord{}, err
	}
	if rec.LowOwnerID != ownerID && rec.HighOwnerID != ownerID {
		return pgrepo.MatchRecord{}, ErrPermission
	}

	return rec, nil
}

func (s *Service) Stats(ctx context.Context, ownerID int64) (Stats, error) {
	if ownerID <= 0 {
		return Stats{}, ErrValidation
	}
	if s.matchStore == nil {
		return Stats{}, fmt.Errorf("match store is not configured")
	}

	rec, err := s.matchStore.StatsForOwner(ctx, ownerID)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalMatched:    rec.TotalMatched,
		PendingIncoming: rec.PendingIncoming,
	}, nil
}
