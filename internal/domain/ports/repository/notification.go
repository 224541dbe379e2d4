package repository

import (
	"context"

	"course-entitlement-platform/internal/domain/model"
)

// NotificationRepository is the port for the append-only message log.
type NotificationRepository interface {
	Insert(ctx context.Context, tx Tx, n *model.Notification) error
	ListByUser(ctx context.Context, tx Tx, userID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	// MarkRead flips the read flag; scoped to the recipient.
	MarkRead(ctx context.Context, tx Tx, id, userID string) error
}
