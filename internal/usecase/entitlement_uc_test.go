//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/usecase"
)

func newEntitlementUC(f *progressFixture) usecase.EntitlementUseCase {
	return usecase.NewEntitlementUseCase(f.subs, f.purchases, f.badges, f.uc, newLogger())
}

func TestEntitlement_Profile(t *testing.T) {
	t.Run("profile load self-heals a missed badge", func(t *testing.T) {
		f := newProgressFixture()
		uc := newEntitlementUC(f)

		// Both videos are fully watched but no badge exists: the award path
		// raced or failed at write time.
		p1, _ := model.NewVideoWatchProgress("user-1", "vid-1", 100, 100)
		p2, _ := model.NewVideoWatchProgress("user-1", "vid-2", 200, 200)
		f.progress.rows["user-1|vid-1"] = p1
		f.progress.rows["user-1|vid-2"] = p2

		profile, err := uc.Profile(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Profile: %v", err)
		}
		if len(profile.Badges) != 1 || profile.Badges[0].PackageID != "pkg-1" {
			t.Fatalf("profile badges = %v, the load itself must repair the drift", profile.Badges)
		}
		if len(profile.Purchases) != 1 {
			t.Fatalf("purchases = %d", len(profile.Purchases))
		}
		if len(profile.ResumePoints) != 1 || profile.ResumePoints[0].Fraction != 1 {
			t.Fatalf("resume points = %v", profile.ResumePoints)
		}
	})

	t.Run("a failed sweep still serves the profile", func(t *testing.T) {
		f := newProgressFixture()
		uc := newEntitlementUC(f)
		f.badges.AwardErr = errors.New("badge store down")

		p1, _ := model.NewVideoWatchProgress("user-1", "vid-1", 100, 100)
		p2, _ := model.NewVideoWatchProgress("user-1", "vid-2", 200, 200)
		f.progress.rows["user-1|vid-1"] = p1
		f.progress.rows["user-1|vid-2"] = p2

		profile, err := uc.Profile(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Profile must degrade, got %v", err)
		}
		if len(profile.Badges) != 0 {
			t.Fatalf("badges = %v", profile.Badges)
		}
	})
}
