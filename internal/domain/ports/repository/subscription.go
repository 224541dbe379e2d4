package repository

import (
	"context"
	"time"

	"course-entitlement-platform/internal/domain/model"
)

// SubscriptionRepository is the port for the subscription side of the
// entitlement store. The (user_id, package_id) uniqueness constraint is the
// concurrency primitive: Upsert must be a single conditional write, first
// writer inserts, every later writer updates in place.
type SubscriptionRepository interface {
	// Upsert inserts or updates the row keyed by (user, package).
	Upsert(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByUserAndPackage(ctx context.Context, tx Tx, userID, packageID string) (*model.Subscription, error)
	// FindByProviderSubID locates a row by the processor's subscription
	// identifier, which is stable across renewals.
	FindByProviderSubID(ctx context.Context, tx Tx, providerSubID string) (*model.Subscription, error)
	// UpdateFromProvider applies the authoritative fields of a status-change
	// event to the row addressed by provider subscription id.
	UpdateFromProvider(ctx context.Context, tx Tx, providerSubID string, status model.SubscriptionStatus, periodEnd time.Time, cancelAtPeriodEnd bool) error
	SetStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
}
