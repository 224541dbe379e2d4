package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentProcessor = (*NoopProcessor)(nil)

// NoopProcessor is a dev-mode stand-in: every fetch reports an active
// subscription and every reversal succeeds. Never wire it in production.
type NoopProcessor struct {
	log *zerolog.Logger
}

func NewNoopProcessor(logger *zerolog.Logger) *NoopProcessor {
	l := logger.With().Str("component", "NoopProcessor").Logger()
	return &NoopProcessor{log: &l}
}

func (p *NoopProcessor) Name() string { return "noop" }

func (p *NoopProcessor) FetchSubscription(ctx context.Context, subscriptionID string) (adapter.SubscriptionState, error) {
	p.log.Debug().Str("subscription_id", subscriptionID).Msg("noop fetch subscription")
	return adapter.SubscriptionState{
		ID:        subscriptionID,
		Status:    "active",
		PeriodEnd: time.Now().Add(30 * 24 * time.Hour),
	}, nil
}

func (p *NoopProcessor) LatestChargeForSubscription(ctx context.Context, subscriptionID string) (string, error) {
	return "ch_noop_" + subscriptionID, nil
}

func (p *NoopProcessor) RefundCharge(ctx context.Context, chargeID, reason string) (adapter.RefundResult, error) {
	p.log.Debug().Str("charge_id", chargeID).Msg("noop refund")
	return adapter.RefundResult{ID: "re_noop_" + chargeID, Status: "succeeded", RefundedAt: time.Now()}, nil
}

func (p *NoopProcessor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	p.log.Debug().Str("subscription_id", subscriptionID).Msg("noop cancel subscription")
	return nil
}
