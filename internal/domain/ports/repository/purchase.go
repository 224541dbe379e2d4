package repository

import (
	"context"

	"course-entitlement-platform/internal/domain/model"
)

// PurchaseRepository is the port for one-time purchases. Insert relies on
// the unique payment-intent constraint: redelivered checkout events surface
// as domain.ErrAlreadyExists, which callers treat as success.
type PurchaseRepository interface {
	Insert(ctx context.Context, tx Tx, p *model.OneTimePurchase) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.OneTimePurchase, error)
	FindByPaymentIntent(ctx context.Context, tx Tx, paymentIntentID string) (*model.OneTimePurchase, error)
	SetStatus(ctx context.Context, tx Tx, id string, status model.PurchaseStatus) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.OneTimePurchase, error)
}
