package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrPairExists signals that a concurrent swipe created the row between
	// our lookup and our insert. Callers retry the whole transaction.
	ErrPairExists = errors.New("match pair already exists")
)

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

// MatchRecord mirrors one canonical-pair row. The pair is always stored
// with low_id < high_id regardless of which side swiped first.
type MatchRecord struct {
	ID            int64
	LowID         int64
	HighID        int64
	LowOwnerID    int64
	HighOwnerID   int64
	Status        enums.MatchStatus
	LowAction     enums.ActionState
	HighAction    enums.ActionState
	InitiatedBy   int64
	CreatedAt     time.Time
	MatchedAt     *time.Time
	ExpiresAt     *time.Time
	LastMessageAt *time.Time
	MessageCount  int
	IsActive      bool
	IsArchived    bool
	ArchivedBy    *int64
}

// NewMatch carries the fields of a first-swipe row.
type NewMatch struct {
	LowID       int64
	HighID      int64
	LowOwnerID  int64
	HighOwnerID int64
	LowAction   enums.ActionState
	HighAction  enums.ActionState
	InitiatedBy int64
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

type PendingLikeRecord struct {
	EntityID int64
	Action   enums.ActionState
	LikedAt  time.Time
}

const matchColumns = `
	id, low_id, high_id, low_owner_id, high_owner_id,
	status, low_action, high_action, initiated_by,
	created_at, matched_at, expires_at, last_message_at,
	message_count, is_active, is_archived, archived_by_owner_id`

func (r *MatchRepo) GetByPairForUpdate(ctx context.Context, tx pgx.Tx, lowID, highID int64) (MatchRecord, error) {
	if lowID <= 0 || highID <= 0 || lowID >= highID {
		return MatchRecord{}, fmt.Errorf("invalid canonical pair (%d, %d)", lowID, highID)
	}
	if tx == nil {
		return MatchRecord{}, fmt.Errorf("transaction is required")
	}

	row := tx.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE low_id = $1 AND high_id = $2
FOR UPDATE
`, lowID, highID)

	return scanMatch(row)
}

func (r *MatchRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, matchID int64) (MatchRecord, error) {
	if matchID <= 0 {
		return MatchRecord{}, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return MatchRecord{}, fmt.Errorf("transaction is required")
	}

	row := tx.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE id = $1
FOR UPDATE
`, matchID)

	return scanMatch(row)
}

func (r *MatchRepo) GetByID(ctx context.Context, matchID int64) (MatchRecord, error) {
	if matchID <= 0 {
		return MatchRecord{}, fmt.Errorf("invalid match id")
	}
	if r.pool == nil {
		return MatchRecord{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE id = $1
`, matchID)

	return scanMatch(row)
}

// CreatePending inserts the first-swipe row for a canonical pair. The unique
// key on (low_id, high_id) makes the insert race-safe: when another swipe won
// the race, no row comes back and ErrPairExists tells the caller to retry and
// pick up the winner's row under lock.
func (r *MatchRepo) CreatePending(ctx context.Context, tx pgx.Tx, m NewMatch) (MatchRecord, error) {
	if m.LowID <= 0 || m.HighID <= 0 || m.LowID >= m.HighID {
		return MatchRecord{}, fmt.Errorf("invalid canonical pair (%d, %d)", m.LowID, m.HighID)
	}
	if tx == nil {
		return MatchRecord{}, fmt.Errorf("transaction is required")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
INSERT INTO matches (
	low_id, high_id, low_owner_id, high_owner_id,
	status, low_action, high_action, initiated_by,
	created_at, expires_at, updated_at
) VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8, $9, $8)
ON CONFLICT (low_id, high_id) DO NOTHING
RETURNING `+matchColumns+`
`,
		m.LowID, m.HighID, m.LowOwnerID, m.HighOwnerID,
		string(m.LowAction), string(m.HighAction), m.InitiatedBy,
		m.CreatedAt.UTC(), m.ExpiresAt,
	)

	rec, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return MatchRecord{}, ErrPairExists
		}
		return MatchRecord{}, fmt.Errorf("create pending match: %w", err)
	}

	return rec, nil
}

func (r *MatchRepo) UpdateActions(ctx context.Context, tx pgx.Tx, matchID int64, lowAction, highAction enums.ActionState, status enums.MatchStatus, matchedAt *time.Time, now time.Time) error {
	if matchID <= 0 {
		return fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE matches
SET
	low_action = $2,
	high_action = $3,
	status = $4,
	matched_at = COALESCE(matched_at, $5),
	updated_at = $6
WHERE id = $1
`, matchID, string(lowAction), string(highAction), string(status), matchedAt, now.UTC())
	if err != nil {
		return fmt.Errorf("update match actions: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMatchNotFound
	}

	return nil
}

func (r *MatchRepo) ListForEntity(ctx context.Context, entityID int64, status enums.MatchStatus, limit int) ([]MatchRecord, error) {
	if entityID <= 0 {
		return nil, fmt.Errorf("invalid entity id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []MatchRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE
	(low_id = $1 OR high_id = $1)
	AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3
`, entityID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list matches for entity: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows, limit)
}

// ListPendingLikesFor returns the sides that liked the entity while the
// entity's own side is still undecided.
func (r *MatchRepo) ListPendingLikesFor(ctx context.Context, entityID int64) ([]PendingLikeRecord, error) {
	if entityID <= 0 {
		return nil, fmt.Errorf("invalid entity id")
	}
	if r.pool == nil {
		return []PendingLikeRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	CASE WHEN m.low_id = $1 THEN m.high_id ELSE m.low_id END AS liker_id,
	CASE WHEN m.low_id = $1 THEN m.high_action ELSE m.low_action END AS liker_action,
	m.created_at
FROM matches m
WHERE
	m.status = 'pending'
	AND (
		(m.low_id = $1 AND m.low_action = 'pending' AND m.high_action IN ('like', 'super_like'))
		OR
		(m.high_id = $1 AND m.high_action = 'pending' AND m.low_action IN ('like', 'super_like'))
	)
ORDER BY m.created_at DESC, m.id DESC
`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list pending likes: %w", err)
	}
	defer rows.Close()

	items := make([]PendingLikeRecord, 0)
	for rows.Next() {
		var item PendingLikeRecord
		var action string
		if err := rows.Scan(&item.EntityID, &action, &item.LikedAt); err != nil {
			return nil, fmt.Errorf("scan pending like: %w", err)
		}
		item.Action = enums.ActionState(action)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate pending likes: %w", rows.Err())
	}

	return items, nil
}

// Deactivate performs the soft unmatch: the row survives for message history,
// only is_active flips.
func (r *MatchRepo) Deactivate(ctx context.Context, tx pgx.Tx, matchID int64, now time.Time) (bool, error) {
	if matchID <= 0 {
		return false, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE matches
SET is_active = FALSE, updated_at = $2
WHERE id = $1 AND status = 'matched' AND is_active = TRUE
`, matchID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate match: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *MatchRepo) SetArchived(ctx context.Context, tx pgx.Tx, matchID int64, archived bool, byOwnerID *int64, now time.Time) (bool, error) {
	if matchID <= 0 {
		return false, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE matches
SET is_archived = $2, archived_by_owner_id = $3, updated_at = $4
WHERE id = $1
`, matchID, archived, byOwnerID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("set match archived: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ExpirePending flips overdue pending rows to expired and returns how many
// were swept.
func (r *MatchRepo) ExpirePending(ctx context.Context, asOf time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
UPDATE matches
SET status = 'expired', updated_at = $1
WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= $1
`, asOf.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire pending matches: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *MatchRepo) BumpMessageStats(ctx context.Context, tx pgx.Tx, matchID int64, sentAt time.Time) error {
	if matchID <= 0 {
		return fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE matches
SET message_count = message_count + 1, last_message_at = $2, updated_at = $2
WHERE id = $1
`, matchID, sentAt.UTC())
	if err != nil {
		return fmt.Errorf("bump match message stats: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMatchNotFound
	}

	return nil
}

// PeerOwnerIDs lists the distinct owners on the other side of the owner's
// active matches. The gateway uses it for presence fan-out.
func (r *MatchRepo) PeerOwnerIDs(ctx context.Context, ownerID int64) ([]int64, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("invalid owner id")
	}
	if r.pool == nil {
		return []int64{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT CASE WHEN m.low_owner_id = $1 THEN m.high_owner_id ELSE m.low_owner_id END
FROM matches m
WHERE
	(m.low_owner_id = $1 OR m.high_owner_id = $1)
	AND m.status = 'matched'
	AND m.is_active = TRUE
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list peer owners: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan peer owner: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate peer owners: %w", rows.Err())
	}

	return ids, nil
}

// PeerOwnerForMatch resolves the other participant of a match the owner
// belongs to.
func (r *MatchRepo) PeerOwnerForMatch(ctx context.Context, matchID, ownerID int64) (int64, error) {
	if matchID <= 0 || ownerID <= 0 {
		return 0, fmt.Errorf("invalid peer lookup payload")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var peer int64
	err := r.pool.QueryRow(ctx, `
SELECT CASE WHEN m.low_owner_id = $2 THEN m.high_owner_id ELSE m.low_owner_id END
FROM matches m
WHERE m.id = $1 AND (m.low_owner_id = $2 OR m.high_owner_id = $2)
`, matchID, ownerID).Scan(&peer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrMatchNotFound
		}
		return 0, fmt.Errorf("resolve match peer: %w", err)
	}

	return peer, nil
}

// MatchStatsRecord aggregates an owner's counters for the stats endpoint.
type MatchStatsRecord struct {
	TotalMatched    int
	PendingIncoming int
}

func (r *MatchRepo) StatsForOwner(ctx context.Context, ownerID int64) (MatchStatsRecord, error) {
	if ownerID <= 0 {
		return MatchStatsRecord{}, fmt.Errorf("invalid owner id")
	}
	if r.pool == nil {
		return MatchStatsRecord{}, nil
	}

	var stats MatchStatsRecord
	err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE m.status = 'matched' AND m.is_active),
	COUNT(*) FILTER (
		WHERE m.status = 'pending' AND (
			(m.low_owner_id = $1 AND m.low_action = 'pending' AND m.high_action IN ('like', 'super_like'))
			OR
			(m.high_owner_id = $1 AND m.high_action = 'pending' AND m.low_action IN ('like', 'super_like'))
		)
	)
FROM matches m
WHERE m.low_owner_id = $1 OR m.high_owner_id = $1
`, ownerID).Scan(&stats.TotalMatched, &stats.PendingIncoming)
	if err != nil {
		return MatchStatsRecord{}, fmt.Errorf("load match stats: %w", err)
	}

	return stats, nil
}

func scanMatch(row pgx.Row) (MatchRecord, error) {
	var rec MatchRecord
	var status, lowAction, highAction string
	err := row.Scan(
		&rec.ID,
		&rec.LowID,
		&rec.HighID,
		&rec.LowOwnerID,
		&rec.HighOwnerID,
		&status,
		&lowAction,
		&highAction,
		&rec.InitiatedBy,
		&rec.CreatedAt,
		&rec.MatchedAt,
		&rec.ExpiresAt,
		&rec.LastMessageAt,
		&rec.MessageCount,
		&rec.IsActive,
		&rec.IsArchived,
		&rec.ArchivedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MatchRecord{}, ErrMatchNotFound
		}
		return MatchRecord{}, fmt.Errorf("scan match: %w", err)
	}

	rec.Status = enums.MatchStatus(status)
	rec.LowAction = enums.ActionState(lowAction)
	rec.HighAction = enums.ActionState(highAction)
	return rec, nil
}

func collectMatches(rows pgx.Rows, capacity int) ([]MatchRecord, error) {
	items := make([]MatchRecord, 0, capacity)
	for rows.Next() {
		var rec MatchRecord
		var status, lowAction, highAction string
		if err := rows.Scan(
			&rec.ID,
			&rec.LowID,
			&rec.HighID,
			&rec.LowOwnerID,
			&rec.HighOwnerID,
			&status,
			&lowAction,
			&highAction,
			&rec.InitiatedBy,
			&rec.CreatedAt,
			&rec.MatchedAt,
			&rec.ExpiresAt,
			&rec.LastMessageAt,
			&rec.MessageCount,
			&rec.IsActive,
			&rec.IsArchived,
			&rec.ArchivedBy,
		); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		rec.Status = enums.MatchStatus(status)
		rec.LowAction = enums.ActionState(lowAction)
		rec.HighAction = enums.ActionState(highAction)
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate match rows: %w", rows.Err())
	}

	return items, nil
}
