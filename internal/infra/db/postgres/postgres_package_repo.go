package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
)

// Ensure packageRepo implements repository.PackageRepository
var _ repository.PackageRepository = (*packageRepo)(nil)

type packageRepo struct {
	pool *pgxpool.Pool
}

func NewPackageRepo(pool *pgxpool.Pool) *packageRepo {
	return &packageRepo{pool: pool}
}

func (r *packageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	const q = `
INSERT INTO packages (id, name, price_cent, currency, mode, badge_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  name=$2, price_cent=$3, currency=$4, mode=$5, badge_id=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, pkg.ID, pkg.Name, pkg.PriceCent, pkg.Currency, string(pkg.Mode), pkg.BadgeID, pkg.CreatedAt)
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

func (r *packageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	const q = `SELECT id, name, price_cent, currency, mode, badge_id, created_at FROM packages WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPackageRow(row)
}

func (r *packageRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	const q = `SELECT id, name, price_cent, currency, mode, badge_id, created_at FROM packages ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Package
	for rows.Next() {
		p := &model.Package{}
		var mode string
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCent, &p.Currency, &mode, &p.BadgeID, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Mode = model.PaymentMode(mode)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *packageRepo) SaveVideo(ctx context.Context, tx repository.Tx, v *model.Video) error {
	const q = `
INSERT INTO package_videos (id, package_id, title, position, duration_sec)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  package_id=$2, title=$3, position=$4, duration_sec=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, v.ID, v.PackageID, v.Title, v.Position, v.DurationSec)
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

func (r *packageRepo) FindVideo(ctx context.Context, tx repository.Tx, videoID string) (*model.Video, error) {
	const q = `SELECT id, package_id, title, position, duration_sec FROM package_videos WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, videoID)
	if err != nil {
		return nil, err
	}
	v := &model.Video{}
	if err := row.Scan(&v.ID, &v.PackageID, &v.Title, &v.Position, &v.DurationSec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return v, nil
}

func (r *packageRepo) ListVideos(ctx context.Context, tx repository.Tx, packageID string) ([]*model.Video, error) {
	const q = `SELECT id, package_id, title, position, duration_sec FROM package_videos WHERE package_id=$1 ORDER BY position ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, packageID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Video
	for rows.Next() {
		v := &model.Video{}
		if err := rows.Scan(&v.ID, &v.PackageID, &v.Title, &v.Position, &v.DurationSec); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *packageRepo) CountVideos(ctx context.Context, tx repository.Tx, packageID string) (int, error) {
	const q = `SELECT COUNT(*) FROM package_videos WHERE package_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, packageID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func scanPackageRow(row pgx.Row) (*model.Package, error) {
	p := &model.Package{}
	var mode string
	if err := row.Scan(&p.ID, &p.Name, &p.PriceCent, &p.Currency, &mode, &p.BadgeID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Mode = model.PaymentMode(mode)
	return p, nil
}
