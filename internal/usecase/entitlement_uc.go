// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// Profile is what the profile endpoint serves: current entitlements,
// earned badges and resume points.
type Profile struct {
	Subscriptions []*model.Subscription
	Purchases     []*model.OneTimePurchase
	Badges        []*model.Badge
	ResumePoints  []*model.ResumePoint
}

// EntitlementUseCase assembles a user's entitlement view. Loading the
// profile doubles as the lazy self-healing trigger: the badge sweep runs
// first so a badge missed at event time appears on the very load that
// would have exposed the drift.
type EntitlementUseCase interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
}

type entitlementUC struct {
	subs       repository.SubscriptionRepository
	purchases  repository.PurchaseRepository
	badges     repository.BadgeRepository
	progressUC ProgressUseCase
	log        *zerolog.Logger
}

func NewEntitlementUseCase(
	subs repository.SubscriptionRepository,
	purchases repository.PurchaseRepository,
	badges repository.BadgeRepository,
	progressUC ProgressUseCase,
	logger *zerolog.Logger,
) *entitlementUC {
	l := logger.With().Str("component", "EntitlementUC").Logger()
	return &entitlementUC{subs: subs, purchases: purchases, badges: badges, progressUC: progressUC, log: &l}
}

func (u *entitlementUC) Profile(ctx context.Context, userID string) (*Profile, error) {
	// Self-heal before reading: recompute badges from progress data.
	if err := u.progressUC.SweepBadges(ctx, userID); err != nil {
		// The profile is still serviceable from existing rows.
		u.log.Warn().Err(err).Str("user_id", userID).Msg("badge sweep on profile load failed")
	}

	subs, err := u.subs.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	purchases, err := u.purchases.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	badges, err := u.badges.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	points, err := u.progressUC.ResumePoints(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Subscriptions: subs,
		Purchases:     purchases,
		Badges:        badges,
		ResumePoints:  points,
	}, nil
}
