package model

import (
	"time"

	"course-entitlement-platform/internal/domain"
)

// completedThreshold is the watched fraction at which a video counts as
// completed. The flag is computed server-side; a client-supplied completed
// flag is never trusted.
const completedThreshold = 0.95

// VideoWatchProgress is one row per (user, video). Completed is monotonic:
// once true a later partial re-watch never resets it.
type VideoWatchProgress struct {
	UserID        string // UUID
	VideoID       string // UUID
	ElapsedSec    int
	DurationSec   int
	Completed     bool
	LastWatchedAt time.Time
}

// NewVideoWatchProgress normalizes a raw progress write: elapsed is clamped
// to duration and completion is derived from the watched fraction.
func NewVideoWatchProgress(userID, videoID string, elapsedSec, durationSec int) (*VideoWatchProgress, error) {
	if userID == "" || videoID == "" || elapsedSec < 0 || durationSec <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if elapsedSec > durationSec {
		elapsedSec = durationSec
	}
	return &VideoWatchProgress{
		UserID:        userID,
		VideoID:       videoID,
		ElapsedSec:    elapsedSec,
		DurationSec:   durationSec,
		Completed:     float64(elapsedSec) >= completedThreshold*float64(durationSec),
		LastWatchedAt: time.Now(),
	}, nil
}

// Fraction returns the watched share of this video in [0,1]; completed
// videos count as 1 regardless of the stored elapsed position.
func (p *VideoWatchProgress) Fraction() float64 {
	if p.Completed {
		return 1
	}
	if p.DurationSec <= 0 {
		return 0
	}
	return float64(p.ElapsedSec) / float64(p.DurationSec)
}

// Badge is a materialized "package fully watched" marker, one row per
// (user, package). It is recomputable from progress rows and the package
// composition; the unique key makes the award exactly-once.
type Badge struct {
	UserID    string
	PackageID string
	BadgeID   *string // the package's badge asset id at award time, if any
	AwardedAt time.Time
}

// ResumePoint is the per-package consumption summary served to clients.
type ResumePoint struct {
	PackageID     string
	Fraction      float64 // completion fraction over all videos in the package
	ResumeVideoID string  // empty only for packages without videos
}
