package repository

import (
	"context"

	"course-entitlement-platform/internal/domain/model"
)

// PaymentRecordRepository is the port for the best-effort payment-history
// mirror. UpsertByExternalID is keyed by the processor-side identifier so
// redelivered events collapse into one row.
type PaymentRecordRepository interface {
	UpsertByExternalID(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.PaymentRecord, error)
}
