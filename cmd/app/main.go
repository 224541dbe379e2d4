// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"course-entitlement-platform/internal/config"
	"course-entitlement-platform/internal/domain/ports/adapter"
	payAdapters "course-entitlement-platform/internal/infra/adapters/payment"
	pg "course-entitlement-platform/internal/infra/db/postgres"
	"course-entitlement-platform/internal/infra/logging"
	"course-entitlement-platform/internal/infra/metrics"
	red "course-entitlement-platform/internal/infra/redis"
	"course-entitlement-platform/internal/infra/sched"
	"course-entitlement-platform/internal/infra/web"
	"course-entitlement-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop payment processor)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis (event replay cache; optional) ----
	var eventCache usecase.ProcessedEventCache
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// The reconcilers stay idempotent without the cache.
			logger.Warn().Err(err).Msg("redis unavailable; webhook dedup cache disabled")
		} else {
			defer redisClient.Close()
			eventCache = red.NewEventCache(redisClient, cfg.Redis.TTL)
		}
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepo(pool)
	packageRepo := pg.NewPackageRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	progressRepo := pg.NewProgressRepo(pool)
	badgeRepo := pg.NewBadgeRepo(pool)
	notificationRepo := pg.NewNotificationRepo(pool)
	paymentRecordRepo := pg.NewPaymentRecordRepo(pool)

	// ---- Payment processor ----
	var processor adapter.PaymentProcessor
	if cfg.Runtime.Dev && cfg.Processor.APIKey == "" {
		processor = payAdapters.NewNoopProcessor(logger)
		logger.Warn().Msg("payment processor: noop (dev mode, no api key)")
	} else {
		processor = payAdapters.NewProcessorClient(cfg.Processor.APIBaseURL, cfg.Processor.APIKey)
	}

	// ---- Use cases ----
	notifUC := usecase.NewNotificationUseCase(notificationRepo, logger)
	webhookUC := usecase.NewWebhookUseCase(subRepo, purchaseRepo, paymentRecordRepo, packageRepo, userRepo, processor, notifUC, eventCache, logger)
	refundUC := usecase.NewRefundUseCase(refundRepo, subRepo, purchaseRepo, packageRepo, processor, tm, notifUC, logger)
	progressUC := usecase.NewProgressUseCase(progressRepo, badgeRepo, packageRepo, subRepo, purchaseRepo, notifUC, logger)
	entitlementUC := usecase.NewEntitlementUseCase(subRepo, purchaseRepo, badgeRepo, progressUC, logger)
	packageUC := usecase.NewPackageUseCase(packageRepo)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	webhookHandler := web.NewWebhookHandler(webhookUC, cfg.Processor.WebhookSecret, logger)
	srv := web.NewServer(webhookHandler, auth, progressUC, refundUC, entitlementUC, notifUC, packageUC, logger)

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Badge sweeper ----
	sweeper := sched.NewBadgeSweeper(cfg.Sweeper.Interval, cfg.Sweeper.ActivityWindow, cfg.Sweeper.BatchSize, progressRepo, progressUC, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	_ = server.Shutdown(context.Background())
}
