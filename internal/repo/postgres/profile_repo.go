package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

type ProfileRecord struct {
	ID          int64
	OwnerUserID int64
	Name        string
	IsAvailable bool
	CreatedAt   time.Time
}

const profileColumns = `id, owner_user_id, name, is_available, created_at`

func (r *ProfileRepo) Get(ctx context.Context, profileID int64) (ProfileRecord, error) {
	if profileID <= 0 {
		return ProfileRecord{}, fmt.Errorf("invalid profile id")
	}
	if r.pool == nil {
		return ProfileRecord{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+profileColumns+`
FROM profiles
WHERE id = $1
`, profileID)

	return scanProfile(row)
}

func (r *ProfileRepo) GetTx(ctx context.Context, tx pgx.Tx, profileID int64) (ProfileRecord, error) {
	if profileID <= 0 {
		return ProfileRecord{}, fmt.Errorf("invalid profile id")
	}
	if tx == nil {
		return ProfileRecord{}, fmt.Errorf("transaction is required")
	}

	row := tx.QueryRow(ctx, `
SELECT `+profileColumns+`
FROM profiles
WHERE id = $1
`, profileID)

	return scanProfile(row)
}

func scanProfile(row pgx.Row) (ProfileRecord, error) {
	var rec ProfileRecord
	err := row.Scan(
		&rec.ID,
		&rec.OwnerUserID,
		&rec.Name,
		&rec.IsAvailable,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrProfileNotFound
		}
		return ProfileRecord{}, fmt.Errorf("scan profile: %w", err)
	}
	return rec, nil
}
