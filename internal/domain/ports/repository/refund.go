package repository

import (
	"context"
	"time"

	"course-entitlement-platform/internal/domain/model"
)

// RefundRepository is the port for refund requests.
type RefundRepository interface {
	Insert(ctx context.Context, tx Tx, r *model.RefundRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.RefundRequest, error)
	// FindByIDForUpdate locks the row for the lifetime of the surrounding
	// transaction. tx must be a live transaction handle; this is what
	// serializes concurrent decisions on the same request.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.RefundRequest, error)
	// MarkDecided performs the terminal transition. Implementations must
	// refuse to overwrite an already-decided row.
	MarkDecided(ctx context.Context, tx Tx, id string, status model.RefundStatus, decidedBy string, processedAt time.Time) error
	ListPending(ctx context.Context, tx Tx) ([]*model.RefundRequest, error)
	// HasPendingForTarget reports whether an undecided request already
	// exists for the given subscription or purchase.
	HasPendingForTarget(ctx context.Context, tx Tx, targetType model.RefundTargetType, targetID string) (bool, error)
}
