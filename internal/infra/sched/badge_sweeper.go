package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain/ports/repository"
	"course-entitlement-platform/internal/infra/metrics"
	"course-entitlement-platform/internal/usecase"
)

// BadgeSweeper periodically re-runs the badge check for recently active
// viewers. It is a safety net behind the synchronous award on progress
// writes; Award's insert signal keeps duplicate passes harmless.
type BadgeSweeper struct {
	interval   time.Duration
	window     time.Duration
	batchSize  int
	progress   repository.ProgressRepository
	progressUC usecase.ProgressUseCase
	log        *zerolog.Logger
}

func NewBadgeSweeper(
	interval, window time.Duration,
	batchSize int,
	progress repository.ProgressRepository,
	progressUC usecase.ProgressUseCase,
	logger *zerolog.Logger,
) *BadgeSweeper {
	compLog := logger.With().Str("component", "BadgeSweeper").Logger()
	if batchSize <= 0 {
		batchSize = 500
	}
	return &BadgeSweeper{
		interval:   interval,
		window:     window,
		batchSize:  batchSize,
		progress:   progress,
		progressUC: progressUC,
		log:        &compLog,
	}
}

func (w *BadgeSweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting badge sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping badge sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *BadgeSweeper) sweep(ctx context.Context) {
	since := time.Now().Add(-w.window)
	users, err := w.progress.ListActiveViewers(ctx, repository.NoTX, since, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("listing active viewers failed")
		return
	}
	for _, userID := range users {
		if err := w.progressUC.SweepBadges(ctx, userID); err != nil {
			w.log.Error().Err(err).Str("user_id", userID).Msg("badge sweep failed")
		}
	}
	metrics.IncBadgeSweeps()
	if len(users) > 0 {
		w.log.Info().Int("users", len(users)).Msg("badge sweep pass finished")
	}
}
