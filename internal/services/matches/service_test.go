package matches

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
	pgrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/postgres"
)

type fakeMatchStore struct {
	byID map[int64]*pgrepo.MatchRecord

	deactivateCalls int
	archivedCalls   int
}

func (f *fakeMatchStore) GetByID(_ context.Context, matchID int64) (pgrepo.MatchRecord, error) {
	rec, ok := f.byID[matchID]
	if !ok {
		return pgrepo.MatchRecord{}, pgrepo.ErrMatchNotFound
	}
	return *rec, nil
}

func (f *fakeMatchStore) GetByIDForUpdate(_ context.Context, _ pgx.Tx, matchID int64) (pgrepo.MatchRecord, error) {
	rec, ok := f.byID[matchID]
	if !ok {
		return pgrepo.MatchRecord{}, pgrepo.ErrMatchNotFound
	}
	return *rec, nil
}

func (f *fakeMatchStore) ListForEntity(_ context.Context, entityID int64, status enums.MatchStatus, _ int) ([]pgrepo.MatchRecord, error) {
	items := []pgrepo.MatchRecord{}
	for _, rec := range f.byID {
		if rec.LowID != entityID && rec.HighID != entityID {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		items = append(items, *rec)
	}
	return items, nil
}

func (f *fakeMatchStore) ListPendingLikesFor(_ context.Context, _ int64) ([]pgrepo.PendingLikeRecord, error) {
	return []pgrepo.PendingLikeRecord{}, nil
}

func (f *fakeMatchStore) Deactivate(_ context.Context, _ pgx.Tx, matchID int64, _ time.Time) (bool, error) {
	f.deactivateCalls++
	rec, ok := f.byID[matchID]
	if !ok {
		return false, nil
	}
	if rec.Status != enums.MatchStatusMatched || !rec.IsActive {
		return false, nil
	}
	rec.IsActive = false
	return true, nil
}

func (f *fakeMatchStore) SetArchived(_ context.Context, _ pgx.Tx, matchID int64, archived bool, byOwnerID *int64, _ time.Time) (bool, error) {
	f.archivedCalls++
	rec, ok := f.byID[matchID]
	if !ok {
		return false, nil
	}
	rec.IsArchived = archived
	rec.ArchivedBy = byOwnerID
	return true, nil
}

func (f *fakeMatchStore) StatsForOwner(_ context.Context, _ int64) (pgrepo.MatchStatsRecord, error) {
	return pgrepo.MatchStatsRecord{TotalMatched: 2, PendingIncoming: 1}, nil
}

func newTestService(store *fakeMatchStore) *Service {
	svc := NewService(Dependencies{MatchStore: store})
	svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	return svc
}

func matchedRecord(id int64) *pgrepo.MatchRecord {
	return &pgrepo.MatchRecord{
		ID:          id,
		LowID:       1,
		HighID:      2,
		LowOwnerID:  101,
		HighOwnerID: 102,
		Status:      enums.MatchStatusMatched,
		LowAction:   enums.ActionStateLike,
		HighAction:  enums.ActionStateLike,
		IsActive:    true,
	}
}

func TestUnmatchDeactivatesMatchedPair(t *testing.T) {
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{5: matchedRecord(5)}}
	svc := newTestService(store)

	if err := svc.Unmatch(context.Background(), 5, 101); err != nil {
		t.Fatalf("unmatch: %v", err)
	}
	if store.byID[5].IsActive {
		t.Fatalf("expected match to be deactivated")
	}

	// Repeat must fail: the pair is already inactive.
	if err := svc.Unmatch(context.Background(), 5, 101); !errors.Is(err, ErrNotUnmatched) {
		t.Fatalf("expected ErrNotUnmatched on repeat, got %v", err)
	}
}

func TestUnmatchRejectsOutsider(t *testing.T) {
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{5: matchedRecord(5)}}
	svc := newTestService(store)

	if err := svc.Unmatch(context.Background(), 5, 999); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if store.deactivateCalls != 0 {
		t.Fatalf("outsider must not reach the store")
	}
}

func TestUnmatchRejectsPendingPair(t *testing.T) {
	rec := matchedRecord(5)
	rec.Status = enums.MatchStatusPending
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{5: rec}}
	svc := newTestService(store)

	if err := svc.Unmatch(context.Background(), 5, 101); !errors.Is(err, ErrNotUnmatched) {
		t.Fatalf("expected ErrNotUnmatched for pending pair, got %v", err)
	}
}

func TestUnmatchUnknownMatch(t *testing.T) {
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{}}
	svc := newTestService(store)

	if err := svc.Unmatch(context.Background(), 5, 101); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestSetArchivedTogglesAndRecordsOwner(t *testing.T) {
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{5: matchedRecord(5)}}
	svc := newTestService(store)

	ctx := context.Background()
	if err := svc.SetArchived(ctx, 5, 102, true); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !store.byID[5].IsArchived {
		t.Fatalf("expected archived flag")
	}
	if store.byID[5].ArchivedBy == nil || *store.byID[5].ArchivedBy != 102 {
		t.Fatalf("expected archiver owner 102, got %v", store.byID[5].ArchivedBy)
	}

	// Re-archiving is a no-op.
	calls := store.archivedCalls
	if err := svc.SetArchived(ctx, 5, 102, true); err != nil {
		t.Fatalf("re-archive: %v", err)
	}
	if store.archivedCalls != calls {
		t.Fatalf("re-archive must not write")
	}

	if err := svc.SetArchived(ctx, 5, 101, false); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if store.byID[5].IsArchived {
		t.Fatalf("expected unarchived flag")
	}
	if store.byID[5].ArchivedBy != nil {
		t.Fatalf("expected archiver cleared, got %v", store.byID[5].ArchivedBy)
	}
}

func TestListRejectsUnknownStatusFilter(t *testing.T) {
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{}}
	svc := newTestService(store)

	if _, err := svc.List(context.Background(), 1, "bogus", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestGetEnforcesParticipation(t *testing.T) {
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{5: matchedRecord(5)}}
	svc := newTestService(store)

	ctx := context.Background()
	if _, err := svc.Get(ctx, 5, 101); err != nil {
		t.Fatalf("participant get: %v", err)
	}
	if _, err := svc.Get(ctx, 5, 999); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
}

func TestStats(t *testing.T) {
	store := &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{}}
	svc := newTestService(store)

	stats, err := svc.Stats(context.Background(), 101)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalMatched != 2 || stats.PendingIncoming != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
