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

// Ensure userRepo implements repository.UserRepository
var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userCols = `id, email, staff, customer_id, trial_used, registered_at`

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *userRepo) FindByCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE customer_id=$1;`
	return r.queryOne(ctx, tx, q, customerID)
}

// BackfillCustomerID writes the processor customer id only when the profile
// does not carry one yet. A concurrent backfill with a different id loses
// silently; the first write wins.
func (r *userRepo) BackfillCustomerID(ctx context.Context, tx repository.Tx, userID, customerID string) error {
	const q = `UPDATE users SET customer_id=$2 WHERE id=$1 AND (customer_id IS NULL OR customer_id='');`
	_, err := execSQL(ctx, r.pool, tx, q, userID, customerID)
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

func (r *userRepo) MarkTrialUsed(ctx context.Context, tx repository.Tx, userID string) error {
	const q = `UPDATE users SET trial_used=TRUE WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Staff, &u.CustomerID, &u.TrialUsed, &u.RegisteredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}
