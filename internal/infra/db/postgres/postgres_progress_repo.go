package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
)

// Ensure progressRepo implements repository.ProgressRepository
var _ repository.ProgressRepository = (*progressRepo)(nil)

type progressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *progressRepo {
	return &progressRepo{pool: pool}
}

// Upsert writes the (user, video) row. The completed column is OR-ed with
// the stored value inside the conditional write, so a later partial
// re-watch can never clear it.
func (r *progressRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.VideoWatchProgress) error {
	const q = `
INSERT INTO video_watch_progress (user_id, video_id, elapsed_sec, duration_sec, completed, last_watched_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id, video_id) DO UPDATE SET
  elapsed_sec=$3, duration_sec=$4,
  completed=video_watch_progress.completed OR EXCLUDED.completed,
  last_watched_at=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, p.UserID, p.VideoID, p.ElapsedSec, p.DurationSec, p.Completed, p.LastWatchedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *progressRepo) FindByUserAndVideo(ctx context.Context, tx repository.Tx, userID, videoID string) (*model.VideoWatchProgress, error) {
	const q = `
SELECT user_id, video_id, elapsed_sec, duration_sec, completed, last_watched_at
  FROM video_watch_progress
 WHERE user_id=$1 AND video_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, videoID)
	if err != nil {
		return nil, err
	}
	p := &model.VideoWatchProgress{}
	if err := row.Scan(&p.UserID, &p.VideoID, &p.ElapsedSec, &p.DurationSec, &p.Completed, &p.LastWatchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *progressRepo) ListByUserAndPackage(ctx context.Context, tx repository.Tx, userID, packageID string) ([]*model.VideoWatchProgress, error) {
	const q = `
SELECT p.user_id, p.video_id, p.elapsed_sec, p.duration_sec, p.completed, p.last_watched_at
  FROM video_watch_progress p
  JOIN package_videos v ON v.id = p.video_id
 WHERE p.user_id=$1 AND v.package_id=$2
 ORDER BY v.position ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, packageID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.VideoWatchProgress
	for rows.Next() {
		p := &model.VideoWatchProgress{}
		if err := rows.Scan(&p.UserID, &p.VideoID, &p.ElapsedSec, &p.DurationSec, &p.Completed, &p.LastWatchedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *progressRepo) CountCompletedInPackage(ctx context.Context, tx repository.Tx, userID, packageID string) (int, error) {
	const q = `
SELECT COUNT(*)
  FROM video_watch_progress p
  JOIN package_videos v ON v.id = p.video_id
 WHERE p.user_id=$1 AND v.package_id=$2 AND p.completed;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, packageID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *progressRepo) ListActiveViewers(ctx context.Context, tx repository.Tx, since time.Time, limit int) ([]string, error) {
	const q = `
SELECT DISTINCT user_id
  FROM video_watch_progress
 WHERE last_watched_at >= $1
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, since, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// Ensure badgeRepo implements repository.BadgeRepository
var _ repository.BadgeRepository = (*badgeRepo)(nil)

type badgeRepo struct {
	pool *pgxpool.Pool
}

func NewBadgeRepo(pool *pgxpool.Pool) *badgeRepo {
	return &badgeRepo{pool: pool}
}

// Award is the exactly-once primitive for achievements: ON CONFLICT DO
// NOTHING on the (user_id, package_id) key, and the RowsAffected signal
// tells the caller whether this call inserted the row.
func (r *badgeRepo) Award(ctx context.Context, tx repository.Tx, b *model.Badge) (bool, error) {
	const q = `
INSERT INTO badges (user_id, package_id, badge_id, awarded_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (user_id, package_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, b.UserID, b.PackageID, b.BadgeID, b.AwardedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return false, err
		default:
			return false, domain.ErrOperationFailed
		}
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *badgeRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Badge, error) {
	const q = `SELECT user_id, package_id, badge_id, awarded_at FROM badges WHERE user_id=$1 ORDER BY awarded_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Badge
	for rows.Next() {
		b := &model.Badge{}
		if err := rows.Scan(&b.UserID, &b.PackageID, &b.BadgeID, &b.AwardedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
