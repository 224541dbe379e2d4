package adapter

import (
	"context"
	"time"
)

// SubscriptionState is the processor's authoritative view of a
// subscription. Completion events never trust client-supplied values; the
// reconciler fetches this instead.
type SubscriptionState struct {
	ID                string // processor subscription id
	CustomerID        string
	Status            string
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// RefundResult captures a minimal, provider-agnostic result of a reversal.
type RefundResult struct {
	ID         string // provider refund id
	Status     string // provider status, e.g. PENDING / SUCCEEDED
	AmountCent int64
	RefundedAt time.Time
}

// PaymentProcessor is the hex port for the external payment processor.
// Every call can fail with a transport error; callers must order these
// calls before local durable writes (fail before commit).
type PaymentProcessor interface {
	Name() string

	// FetchSubscription returns the authoritative state for a processor
	// subscription id.
	FetchSubscription(ctx context.Context, subscriptionID string) (SubscriptionState, error)
	// LatestChargeForSubscription resolves the charge of the subscription's
	// most recent paid invoice, the refundable amount for approvals.
	LatestChargeForSubscription(ctx context.Context, subscriptionID string) (chargeID string, err error)
	// RefundCharge issues a full reversal of the given charge or payment
	// intent.
	RefundCharge(ctx context.Context, chargeID, reason string) (RefundResult, error)
	// CancelSubscription cancels immediately at the processor.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
