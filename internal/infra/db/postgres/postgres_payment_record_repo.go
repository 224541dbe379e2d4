package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
)

// Ensure paymentRecordRepo implements repository.PaymentRecordRepository
var _ repository.PaymentRecordRepository = (*paymentRecordRepo)(nil)

type paymentRecordRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRecordRepo(pool *pgxpool.Pool) *paymentRecordRepo {
	return &paymentRecordRepo{pool: pool}
}

// UpsertByExternalID collapses redelivered events into one row: the external
// id (session id or invoice id) is the conflict key.
func (r *paymentRecordRepo) UpsertByExternalID(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payment_records (id, user_id, kind, external_id, charge_id, amount_cent, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (external_id) DO UPDATE SET
  user_id=$2, charge_id=$5, amount_cent=$6, currency=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, string(p.Kind), p.ExternalID, p.ChargeID, p.AmountCent, p.Currency, p.CreatedAt)
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

func (r *paymentRecordRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	const q = `
SELECT id, user_id, kind, external_id, charge_id, amount_cent, currency, created_at
  FROM payment_records
 WHERE user_id=$1
 ORDER BY created_at DESC;`
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
	var out []*model.PaymentRecord
	for rows.Next() {
		p := &model.PaymentRecord{}
		var kind string
		if err := rows.Scan(&p.ID, &p.UserID, &kind, &p.ExternalID, &p.ChargeID, &p.AmountCent, &p.Currency, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Kind = model.PaymentKind(kind)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
