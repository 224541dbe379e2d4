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

// Ensure purchaseRepo implements repository.PurchaseRepository
var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

const purchaseCols = `id, user_id, package_id, status, payment_intent_id, document_ref,
  amount_paid_cent, currency, created_at, updated_at`

// Insert relies on the UNIQUE constraint on payment_intent_id. A redelivered
// checkout event hits 23505 and surfaces as domain.ErrAlreadyExists, which
// callers treat as success.
func (r *purchaseRepo) Insert(ctx context.Context, tx repository.Tx, p *model.OneTimePurchase) error {
	const q = `
INSERT INTO one_time_purchases (
  id, user_id, package_id, status, payment_intent_id, document_ref,
  amount_paid_cent, currency, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.PackageID, string(p.Status), p.PaymentIntentID, p.DocumentRef,
		p.AmountPaidCent, p.Currency, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *purchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.OneTimePurchase, error) {
	const q = `SELECT ` + purchaseCols + ` FROM one_time_purchases WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *purchaseRepo) FindByPaymentIntent(ctx context.Context, tx repository.Tx, paymentIntentID string) (*model.OneTimePurchase, error) {
	const q = `SELECT ` + purchaseCols + ` FROM one_time_purchases WHERE payment_intent_id=$1;`
	return r.queryOne(ctx, tx, q, paymentIntentID)
}

func (r *purchaseRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus) error {
	const q = `UPDATE one_time_purchases SET status=$2, updated_at=NOW() WHERE id=$1;`
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

func (r *purchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.OneTimePurchase, error) {
	const q = `SELECT ` + purchaseCols + ` FROM one_time_purchases WHERE user_id=$1 ORDER BY created_at DESC;`
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
	var out []*model.OneTimePurchase
	for rows.Next() {
		p := &model.OneTimePurchase{}
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.PackageID, &status, &p.PaymentIntentID, &p.DocumentRef,
			&p.AmountPaidCent, &p.Currency, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Status = model.PurchaseStatus(status)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *purchaseRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.OneTimePurchase, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	p := &model.OneTimePurchase{}
	var status string
	if err := row.Scan(&p.ID, &p.UserID, &p.PackageID, &status, &p.PaymentIntentID, &p.DocumentRef,
		&p.AmountPaidCent, &p.Currency, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.PurchaseStatus(status)
	return p, nil
}
