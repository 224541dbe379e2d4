package repository

import (
	"context"
	"time"

	"course-entitlement-platform/internal/domain/model"
)

// ProgressRepository is the port for per-video watch progress.
type ProgressRepository interface {
	// Upsert writes the row keyed by (user, video). The completed flag is
	// monotonic: the stored value is OR-ed with the incoming one inside the
	// conditional write, never reset.
	Upsert(ctx context.Context, tx Tx, p *model.VideoWatchProgress) error
	FindByUserAndVideo(ctx context.Context, tx Tx, userID, videoID string) (*model.VideoWatchProgress, error)
	ListByUserAndPackage(ctx context.Context, tx Tx, userID, packageID string) ([]*model.VideoWatchProgress, error)
	CountCompletedInPackage(ctx context.Context, tx Tx, userID, packageID string) (int, error)
	// ListActiveViewers returns user ids with progress written since the
	// cutoff; used by the periodic self-healing sweep.
	ListActiveViewers(ctx context.Context, tx Tx, since time.Time, limit int) ([]string, error)
}

// BadgeRepository is the port for the derived badge table.
type BadgeRepository interface {
	// Award upserts the row keyed by (user, package) with ON CONFLICT DO
	// NOTHING semantics and reports whether this call inserted it. The
	// inserted signal is the exactly-once trigger for the achievement
	// notification.
	Award(ctx context.Context, tx Tx, b *model.Badge) (inserted bool, err error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Badge, error)
}
