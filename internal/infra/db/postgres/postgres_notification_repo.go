package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
)

// Ensure notificationRepo implements repository.NotificationRepository
var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *notificationRepo {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Insert(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, kind, message, read, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, n.ID, n.UserID, string(n.Kind), n.Message, n.Read, n.CreatedAt)
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

func (r *notificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	q := `SELECT id, user_id, kind, message, read, created_at FROM notifications WHERE user_id=$1`
	if unreadOnly {
		q += ` AND NOT read`
	}
	// ULIDs sort by creation time, but created_at keeps the intent readable.
	q += ` ORDER BY created_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		n.Kind = model.NotificationKind(kind)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id, userID string) error {
	const q = `UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, userID)
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
