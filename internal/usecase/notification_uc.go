// File: internal/usecase/notification_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
	"course-entitlement-platform/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase is the always-best-effort emitter consuming the
// notification batches the reconcilers produce. Emit never fails the
// caller: the primary state transition has already happened and a lost
// message must not roll it back.
type NotificationUseCase interface {
	Emit(ctx context.Context, batch []*model.Notification)
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type notificationUC struct {
	notifications repository.NotificationRepository
	log           *zerolog.Logger
}

func NewNotificationUseCase(notifications repository.NotificationRepository, logger *zerolog.Logger) *notificationUC {
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{notifications: notifications, log: &l}
}

// NewNotification builds one message for the append-only log. IDs are ULIDs
// so the log sorts by creation time.
func NewNotification(userID string, kind model.NotificationKind, message string) *model.Notification {
	return &model.Notification{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

func (n *notificationUC) Emit(ctx context.Context, batch []*model.Notification) {
	for _, msg := range batch {
		if msg == nil {
			continue
		}
		if err := n.notifications.Insert(ctx, repository.NoTX, msg); err != nil {
			metrics.IncNotificationEmitFailed(string(msg.Kind))
			n.log.Warn().Err(err).
				Str("kind", string(msg.Kind)).
				Str("user_id", msg.UserID).
				Msg("notification insert failed; message dropped")
			continue
		}
		metrics.IncNotificationEmitted(string(msg.Kind))
	}
}

func (n *notificationUC) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return n.notifications.ListByUser(ctx, repository.NoTX, userID, unreadOnly, limit)
}

func (n *notificationUC) MarkRead(ctx context.Context, id, userID string) error {
	return n.notifications.MarkRead(ctx, repository.NoTX, id, userID)
}
