// File: internal/usecase/progress_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
	"course-entitlement-platform/internal/infra/metrics"
)

// Compile-time check
var _ ProgressUseCase = (*progressUC)(nil)

// ProgressUseCase owns watch progress and the derived badge state. The
// badge table is a materialized view over progress rows and package
// composition; CheckBadge recomputes it from source data, so it is safe to
// call from any trigger path any number of times.
type ProgressUseCase interface {
	// SaveProgress upserts one progress row. Completion is computed
	// server-side; a client-supplied completed flag is never accepted. A
	// write that newly completes a video runs the badge check for its
	// package synchronously.
	SaveProgress(ctx context.Context, userID, videoID string, elapsedSec, durationSec int) (*model.VideoWatchProgress, error)
	// CheckBadge awards the (user, package) badge when every video in the
	// package is completed. The notification fires only on the upsert's
	// inserted signal, making it exactly-once under concurrent checks.
	CheckBadge(ctx context.Context, userID, packageID string) error
	// SweepBadges is the lazy self-healing pass over every package the
	// user is entitled to that has no badge yet.
	SweepBadges(ctx context.Context, userID string) error
	// ResumePoints computes per-package completion fractions and suggested
	// resume videos for the consuming UI.
	ResumePoints(ctx context.Context, userID string) ([]*model.ResumePoint, error)
}

type progressUC struct {
	progress  repository.ProgressRepository
	badges    repository.BadgeRepository
	packages  repository.PackageRepository
	subs      repository.SubscriptionRepository
	purchases repository.PurchaseRepository
	notifier  NotificationUseCase
	log       *zerolog.Logger
}

func NewProgressUseCase(
	progress repository.ProgressRepository,
	badges repository.BadgeRepository,
	packages repository.PackageRepository,
	subs repository.SubscriptionRepository,
	purchases repository.PurchaseRepository,
	notifier NotificationUseCase,
	logger *zerolog.Logger,
) *progressUC {
	l := logger.With().Str("component", "ProgressUC").Logger()
	return &progressUC{
		progress:  progress,
		badges:    badges,
		packages:  packages,
		subs:      subs,
		purchases: purchases,
		notifier:  notifier,
		log:       &l,
	}
}

func (u *progressUC) SaveProgress(ctx context.Context, userID, videoID string, elapsedSec, durationSec int) (*model.VideoWatchProgress, error) {
	p, err := model.NewVideoWatchProgress(userID, videoID, elapsedSec, durationSec)
	if err != nil {
		return nil, err
	}
	video, err := u.packages.FindVideo(ctx, repository.NoTX, videoID)
	if err != nil {
		return nil, err
	}

	// The pre-read only decides whether to trigger the badge check; the
	// monotonic completed flag itself is enforced inside the upsert, and a
	// racing double trigger is harmless because the badge award is keyed.
	prev, err := u.progress.FindByUserAndVideo(ctx, repository.NoTX, userID, videoID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := u.progress.Upsert(ctx, repository.NoTX, p); err != nil {
		return nil, fmt.Errorf("upsert progress (%s,%s): %w", userID, videoID, err)
	}
	if prev != nil && prev.Completed {
		p.Completed = true // reflect the monotonic stored value
	}

	newlyCompleted := p.Completed && (prev == nil || !prev.Completed)
	if newlyCompleted {
		if err := u.CheckBadge(ctx, userID, video.PackageID); err != nil {
			// Progress is durable; the lazy sweep will re-derive the badge.
			u.log.Warn().Err(err).Str("user_id", userID).Str("package_id", video.PackageID).Msg("badge check failed after completion")
		}
	}
	return p, nil
}

func (u *progressUC) CheckBadge(ctx context.Context, userID, packageID string) error {
	total, err := u.packages.CountVideos(ctx, repository.NoTX, packageID)
	if err != nil {
		return err
	}
	if total == 0 {
		// An empty package is never "fully watched".
		return nil
	}
	done, err := u.progress.CountCompletedInPackage(ctx, repository.NoTX, userID, packageID)
	if err != nil {
		return err
	}
	if done < total {
		return nil
	}

	pkg, err := u.packages.FindByID(ctx, repository.NoTX, packageID)
	if err != nil {
		return err
	}
	badge := &model.Badge{
		UserID:    userID,
		PackageID: packageID,
		BadgeID:   pkg.BadgeID,
		AwardedAt: time.Now(),
	}
	inserted, err := u.badges.Award(ctx, repository.NoTX, badge)
	if err != nil {
		return fmt.Errorf("award badge (%s,%s): %w", userID, packageID, err)
	}
	if inserted {
		metrics.IncBadgesAwarded()
		u.notifier.Emit(ctx, []*model.Notification{
			NewNotification(userID, model.NotificationKindAchievement,
				fmt.Sprintf("You finished every video in %s. Badge earned!", pkg.Name)),
		})
	}
	return nil
}

func (u *progressUC) SweepBadges(ctx context.Context, userID string) error {
	entitled, err := u.entitledPackageIDs(ctx, userID)
	if err != nil {
		return err
	}
	if len(entitled) == 0 {
		return nil
	}
	awarded, err := u.badges.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return err
	}
	has := make(map[string]bool, len(awarded))
	for _, b := range awarded {
		has[b.PackageID] = true
	}

	for _, pkgID := range entitled {
		if has[pkgID] {
			continue
		}
		if err := u.CheckBadge(ctx, userID, pkgID); err != nil {
			u.log.Warn().Err(err).Str("user_id", userID).Str("package_id", pkgID).Msg("sweep badge check failed")
		}
	}
	metrics.IncBadgeSweeps()
	return nil
}

func (u *progressUC) ResumePoints(ctx context.Context, userID string) ([]*model.ResumePoint, error) {
	entitled, err := u.entitledPackageIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.ResumePoint, 0, len(entitled))
	for _, pkgID := range entitled {
		rp, err := u.resumePoint(ctx, userID, pkgID)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, nil
}

func (u *progressUC) resumePoint(ctx context.Context, userID, packageID string) (*model.ResumePoint, error) {
	videos, err := u.packages.ListVideos(ctx, repository.NoTX, packageID)
	if err != nil {
		return nil, err
	}
	rp := &model.ResumePoint{PackageID: packageID}
	if len(videos) == 0 {
		return rp, nil
	}

	rows, err := u.progress.ListByUserAndPackage(ctx, repository.NoTX, userID, packageID)
	if err != nil {
		return nil, err
	}
	byVideo := make(map[string]*model.VideoWatchProgress, len(rows))
	for _, r := range rows {
		byVideo[r.VideoID] = r
	}

	var sum float64
	for _, v := range videos {
		if p, ok := byVideo[v.ID]; ok {
			sum += p.Fraction()
		}
	}
	rp.Fraction = sum / float64(len(videos))

	// Resume selection: most-recently-watched incomplete video, falling
	// back to the first never-started video, falling back to the first.
	started := make([]*model.VideoWatchProgress, 0, len(rows))
	for _, v := range videos {
		if p, ok := byVideo[v.ID]; ok && !p.Completed {
			started = append(started, p)
		}
	}
	if len(started) > 0 {
		sort.Slice(started, func(i, j int) bool {
			return started[i].LastWatchedAt.After(started[j].LastWatchedAt)
		})
		rp.ResumeVideoID = started[0].VideoID
		return rp, nil
	}
	for _, v := range videos {
		if _, ok := byVideo[v.ID]; !ok {
			rp.ResumeVideoID = v.ID
			return rp, nil
		}
	}
	rp.ResumeVideoID = videos[0].ID
	return rp, nil
}

// entitledPackageIDs collects the packages the user can currently watch:
// active/trialing subscriptions plus non-terminal one-time purchases.
func (u *progressUC) entitledPackageIDs(ctx context.Context, userID string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	subs, err := u.subs.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if s.Entitled() && !seen[s.PackageID] {
			seen[s.PackageID] = true
			out = append(out, s.PackageID)
		}
	}
	purchases, err := u.purchases.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range purchases {
		if p.Entitled() && !seen[p.PackageID] {
			seen[p.PackageID] = true
			out = append(out, p.PackageID)
		}
	}
	return out, nil
}
