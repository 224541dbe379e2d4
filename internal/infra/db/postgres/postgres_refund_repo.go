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

// Ensure refundRepo implements repository.RefundRepository
var _ repository.RefundRepository = (*refundRepo)(nil)

type refundRepo struct {
	pool *pgxpool.Pool
}

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundCols = `id, user_id, subscription_id, purchase_id, reason, status, decided_by, created_at, processed_at`

func (r *refundRepo) Insert(ctx context.Context, tx repository.Tx, req *model.RefundRequest) error {
	const q = `
INSERT INTO refund_requests (id, user_id, subscription_id, purchase_id, reason, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, req.ID, req.UserID, req.SubscriptionID, req.PurchaseID, req.Reason, string(req.Status), req.CreatedAt)
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

func (r *refundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	const q = `SELECT ` + refundCols + ` FROM refund_requests WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

// FindByIDForUpdate locks the row for the lifetime of the surrounding
// transaction. Concurrent decisions on the same request block here; the
// loser re-reads a decided row and no-ops.
func (r *refundRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	if _, ok := tx.(pgx.Tx); !ok {
		return nil, domain.ErrInvalidExecContext
	}
	const q = `SELECT ` + refundCols + ` FROM refund_requests WHERE id=$1 FOR UPDATE;`
	return r.queryOne(ctx, tx, q, id)
}

// MarkDecided performs the pending->terminal transition. The status guard in
// the WHERE clause refuses to overwrite an already-decided row even if the
// caller skipped the lock.
func (r *refundRepo) MarkDecided(ctx context.Context, tx repository.Tx, id string, status model.RefundStatus, decidedBy string, processedAt time.Time) error {
	const q = `
UPDATE refund_requests
   SET status=$2, decided_by=$3, processed_at=$4
 WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), decidedBy, processedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRefundNotPending
	}
	return nil
}

func (r *refundRepo) ListPending(ctx context.Context, tx repository.Tx) ([]*model.RefundRequest, error) {
	const q = `SELECT ` + refundCols + ` FROM refund_requests WHERE status='pending' ORDER BY created_at ASC;`
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
	var out []*model.RefundRequest
	for rows.Next() {
		req := &model.RefundRequest{}
		var status string
		if err := rows.Scan(&req.ID, &req.UserID, &req.SubscriptionID, &req.PurchaseID, &req.Reason, &status, &req.DecidedBy, &req.CreatedAt, &req.ProcessedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		req.Status = model.RefundStatus(status)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *refundRepo) HasPendingForTarget(ctx context.Context, tx repository.Tx, targetType model.RefundTargetType, targetID string) (bool, error) {
	var q string
	switch targetType {
	case model.RefundTargetSubscription:
		q = `SELECT EXISTS (SELECT 1 FROM refund_requests WHERE subscription_id=$1 AND status='pending');`
	case model.RefundTargetPurchase:
		q = `SELECT EXISTS (SELECT 1 FROM refund_requests WHERE purchase_id=$1 AND status='pending');`
	default:
		return false, domain.ErrInvalidArgument
	}
	row, err := pickRow(ctx, r.pool, tx, q, targetID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *refundRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.RefundRequest, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	req := &model.RefundRequest{}
	var status string
	if err := row.Scan(&req.ID, &req.UserID, &req.SubscriptionID, &req.PurchaseID, &req.Reason, &status, &req.DecidedBy, &req.CreatedAt, &req.ProcessedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	req.Status = model.RefundStatus(status)
	return req, nil
}
