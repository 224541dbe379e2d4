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

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_id, package_id, status, period_end, cancel_at_period_end,
  customer_id, provider_sub_id, amount_paid_cent, currency, created_at, updated_at`

// Upsert is the single conditional write keyed by (user_id, package_id): the
// first writer inserts, every later writer for the same pair updates in
// place. Redelivered checkout events therefore converge on one row.
func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, package_id, status, period_end, cancel_at_period_end,
  customer_id, provider_sub_id, amount_paid_cent, currency, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (user_id, package_id) DO UPDATE SET
  status=$4, period_end=$5, cancel_at_period_end=$6, customer_id=$7,
  provider_sub_id=$8, amount_paid_cent=$9, currency=$10, updated_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.PackageID, string(s.Status), s.PeriodEnd, s.CancelAtPeriodEnd,
		s.CustomerID, s.ProviderSubID, s.AmountPaidCent, s.Currency, s.CreatedAt, s.UpdatedAt)
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

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByUserAndPackage(ctx context.Context, tx repository.Tx, userID, packageID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE user_id=$1 AND package_id=$2;`
	return r.queryOne(ctx, tx, q, userID, packageID)
}

func (r *subscriptionRepo) FindByProviderSubID(ctx context.Context, tx repository.Tx, providerSubID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE provider_sub_id=$1;`
	return r.queryOne(ctx, tx, q, providerSubID)
}

// UpdateFromProvider applies the processor-owned fields of a status-change
// event. Addressing by provider_sub_id keeps the write idempotent across
// redelivery: the same event writes the same values.
func (r *subscriptionRepo) UpdateFromProvider(ctx context.Context, tx repository.Tx, providerSubID string, status model.SubscriptionStatus, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	const q = `
UPDATE subscriptions
   SET status=$2, period_end=$3, cancel_at_period_end=$4, updated_at=NOW()
 WHERE provider_sub_id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, providerSubID, string(status), periodEnd, cancelAtPeriodEnd)
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

func (r *subscriptionRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	const q = `UPDATE subscriptions SET status=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status))
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

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
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
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.PackageID, &status, &s.PeriodEnd, &s.CancelAtPeriodEnd,
		&s.CustomerID, &s.ProviderSubID, &s.AmountPaidCent, &s.Currency, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

func scanSubscription(rows pgx.Rows) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := rows.Scan(&s.ID, &s.UserID, &s.PackageID, &status, &s.PeriodEnd, &s.CancelAtPeriodEnd,
		&s.CustomerID, &s.ProviderSubID, &s.AmountPaidCent, &s.Currency, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
