package repository

import (
	"context"

	"course-entitlement-platform/internal/domain/model"
)

// UserRepository is the port for the minimal user profile this service
// touches.
type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByCustomerID(ctx context.Context, tx Tx, customerID string) (*model.User, error)
	// BackfillCustomerID sets the processor customer id only when the
	// profile does not carry one yet.
	BackfillCustomerID(ctx context.Context, tx Tx, userID, customerID string) error
	// MarkTrialUsed sets the trial flag exactly once; it is never cleared
	// by the event flow.
	MarkTrialUsed(ctx context.Context, tx Tx, userID string) error
}
