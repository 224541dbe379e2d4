// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/adapter"
	"course-entitlement-platform/internal/domain/ports/repository"
	"course-entitlement-platform/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase reconciles the entitlement store against verified
// processor events. Delivery is at-least-once and unordered, so every
// mandatory write targets a row by stable identifier and is an upsert (or a
// constraint-guarded insert); replays converge to the same state.
type WebhookUseCase interface {
	// HandleEvent dispatches one decoded event to exactly one reconciler.
	// A nil return acknowledges the event; any error means a mandatory
	// write did not commit and the sender must redeliver.
	HandleEvent(ctx context.Context, ev *model.Event) error
}

// ProcessedEventCache is a best-effort replay fast path. An event id is
// marked only after its mandatory writes have committed, so Seen never
// vouches for an event that is still in flight or has failed. On any cache
// failure callers fall through to the idempotent reconcilers, which remain
// the source of correctness.
type ProcessedEventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type webhookUC struct {
	subs      repository.SubscriptionRepository
	purchases repository.PurchaseRepository
	payments  repository.PaymentRecordRepository
	packages  repository.PackageRepository
	users     repository.UserRepository
	processor adapter.PaymentProcessor
	notifier  NotificationUseCase
	seen      ProcessedEventCache // may be nil
	log       *zerolog.Logger
}

func NewWebhookUseCase(
	subs repository.SubscriptionRepository,
	purchases repository.PurchaseRepository,
	payments repository.PaymentRecordRepository,
	packages repository.PackageRepository,
	users repository.UserRepository,
	processor adapter.PaymentProcessor,
	notifier NotificationUseCase,
	seen ProcessedEventCache,
	logger *zerolog.Logger,
) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		subs:      subs,
		purchases: purchases,
		payments:  payments,
		packages:  packages,
		users:     users,
		processor: processor,
		notifier:  notifier,
		seen:      seen,
		log:       &l,
	}
}

func (u *webhookUC) HandleEvent(ctx context.Context, ev *model.Event) error {
	if ev == nil || ev.ID == "" {
		return domain.ErrInvalidArgument
	}

	if u.seen != nil {
		if seen, err := u.seen.Seen(ctx, ev.ID); err != nil {
			u.log.Debug().Err(err).Str("event_id", ev.ID).Msg("event cache unavailable; relying on upserts")
		} else if seen {
			metrics.IncWebhookEvent(string(ev.Type), "duplicate")
			u.log.Debug().Str("event_id", ev.ID).Msg("duplicate event short-circuited")
			return nil
		}
	}

	var err error
	switch {
	case ev.Checkout != nil:
		err = u.reconcileCheckout(ctx, ev.Checkout)
	case ev.Subscription != nil:
		err = u.reconcileSubscriptionUpdate(ctx, ev.Subscription)
	case ev.Invoice != nil:
		u.mirrorInvoice(ctx, ev.Invoice) // history mirror only, never fails the event
	default:
		// Unknown event types are acknowledged as no-ops so new processor
		// features do not break delivery.
		metrics.IncWebhookEvent(string(ev.Type), "ignored")
		u.log.Debug().Str("event_id", ev.ID).Str("type", string(ev.Type)).Msg("unknown event type acknowledged")
		return nil
	}

	if err != nil {
		metrics.IncWebhookEvent(string(ev.Type), "failed")
		return err
	}
	// Mark only after the writes committed; a marker set any earlier would
	// let a concurrent duplicate get acked while this delivery still fails.
	if u.seen != nil {
		if merr := u.seen.MarkProcessed(ctx, ev.ID); merr != nil {
			u.log.Warn().Err(merr).Str("event_id", ev.ID).Msg("could not mark processed event")
		}
	}
	metrics.IncWebhookEvent(string(ev.Type), "ok")
	return nil
}

func (u *webhookUC) reconcileCheckout(ctx context.Context, c *model.CheckoutCompleted) error {
	if c.UserID == "" || c.PackageID == "" {
		// Session created outside this application; nothing to reconcile.
		u.log.Warn().Str("session_id", c.SessionID).Msg("checkout without user/package metadata skipped")
		return nil
	}
	switch c.Mode {
	case model.PaymentModeRecurring:
		return u.reconcileSubscriptionCheckout(ctx, c)
	case model.PaymentModeOneTime:
		return u.reconcilePurchaseCheckout(ctx, c)
	default:
		return fmt.Errorf("%w: checkout mode %q", domain.ErrMalformedEvent, c.Mode)
	}
}

// reconcileSubscriptionCheckout upserts the subscription row keyed by
// (user, package) from the processor's authoritative state. Replays hit the
// same key and update in place.
func (u *webhookUC) reconcileSubscriptionCheckout(ctx context.Context, c *model.CheckoutCompleted) error {
	// Do not trust event-supplied status/period; ask the processor.
	state, err := u.processor.FetchSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", c.SubscriptionID, err)
	}

	sub, err := model.NewSubscription(uuid.NewString(), c.UserID, c.PackageID, c.SubscriptionID)
	if err != nil {
		return err
	}
	// A replay must converge onto the existing row and must not re-announce
	// the subscription.
	existing, err := u.subs.FindByUserAndPackage(ctx, repository.NoTX, c.UserID, c.PackageID)
	switch {
	case err == nil:
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("find subscription (%s,%s): %w", c.UserID, c.PackageID, err)
	}
	sub.Status = model.SubscriptionStatus(state.Status)
	periodEnd := state.PeriodEnd
	sub.PeriodEnd = &periodEnd
	sub.CancelAtPeriodEnd = state.CancelAtPeriodEnd
	sub.CustomerID = state.CustomerID
	if sub.CustomerID == "" {
		sub.CustomerID = c.CustomerID
	}
	sub.AmountPaidCent = c.AmountCent
	sub.Currency = c.Currency

	if err := u.subs.Upsert(ctx, repository.NoTX, sub); err != nil {
		return fmt.Errorf("upsert subscription (%s,%s): %w", c.UserID, c.PackageID, err)
	}

	// Everything below is best-effort: failures are logged for operational
	// follow-up but never un-acknowledge the event.
	u.backfillProfile(ctx, c, sub.CustomerID)
	u.mirrorCheckout(ctx, c)
	if existing == nil {
		u.notifier.Emit(ctx, []*model.Notification{
			NewNotification(c.UserID, model.NotificationKindSubscription,
				fmt.Sprintf("Your subscription to %s is %s.", u.packageName(ctx, c.PackageID), sub.Status)),
			NewNotification("", model.NotificationKindStaff,
				fmt.Sprintf("New subscription: user %s, package %s.", c.UserID, c.PackageID)),
		})
	}
	return nil
}

// reconcilePurchaseCheckout records one purchase row per checkout
// completion. The unique payment-intent constraint is the explicit
// idempotency guard: a redelivered event collides and is acknowledged.
func (u *webhookUC) reconcilePurchaseCheckout(ctx context.Context, c *model.CheckoutCompleted) error {
	p, err := model.NewOneTimePurchase(uuid.NewString(), c.UserID, c.PackageID, c.PaymentIntentID, c.AmountCent, c.Currency)
	if err != nil {
		return err
	}
	err = u.purchases.Insert(ctx, repository.NoTX, p)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		// The stored row, not the replayed payload, is authoritative. A
		// payment intent that resurfaces under a different user or package
		// is an anomaly worth an operator's attention.
		if prior, ferr := u.purchases.FindByPaymentIntent(ctx, repository.NoTX, c.PaymentIntentID); ferr != nil {
			u.log.Warn().Err(ferr).Str("payment_intent", c.PaymentIntentID).Msg("could not load prior purchase for replay check")
		} else if prior.UserID != c.UserID || prior.PackageID != c.PackageID {
			u.log.Error().
				Str("payment_intent", c.PaymentIntentID).
				Str("stored_user", prior.UserID).Str("event_user", c.UserID).
				Str("stored_package", prior.PackageID).Str("event_package", c.PackageID).
				Msg("replayed payment intent disagrees with stored purchase")
		} else {
			u.log.Debug().Str("payment_intent", c.PaymentIntentID).Msg("purchase already recorded; replay acknowledged")
		}
		u.mirrorCheckout(ctx, c)
		return nil
	case err != nil:
		return fmt.Errorf("insert purchase %s: %w", c.PaymentIntentID, err)
	}

	u.backfillProfile(ctx, c, c.CustomerID)
	u.mirrorCheckout(ctx, c)
	u.notifier.Emit(ctx, []*model.Notification{
		NewNotification(c.UserID, model.NotificationKindPurchase,
			fmt.Sprintf("Your purchase of %s is confirmed.", u.packageName(ctx, c.PackageID))),
	})
	return nil
}

// reconcileSubscriptionUpdate applies a status-change event to the row
// addressed by the processor's subscription id.
func (u *webhookUC) reconcileSubscriptionUpdate(ctx context.Context, s *model.SubscriptionUpdated) error {
	sub, err := u.subs.FindByProviderSubID(ctx, repository.NoTX, s.SubscriptionID)
	if errors.Is(err, domain.ErrNotFound) {
		// The completion event has not landed yet. It fetches authoritative
		// state from the processor when it does, so dropping this update
		// still converges.
		u.log.Warn().Str("provider_sub_id", s.SubscriptionID).Msg("status change for unknown subscription skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find subscription %s: %w", s.SubscriptionID, err)
	}

	if err := u.subs.UpdateFromProvider(ctx, repository.NoTX, s.SubscriptionID, s.Status, s.PeriodEnd, s.CancelAtPeriodEnd); err != nil {
		return fmt.Errorf("update subscription %s: %w", s.SubscriptionID, err)
	}

	if sub.Status != s.Status && (s.Status == model.SubscriptionStatusPastDue || s.Status == model.SubscriptionStatusCanceled) {
		u.notifier.Emit(ctx, []*model.Notification{
			NewNotification(sub.UserID, model.NotificationKindSubscription,
				fmt.Sprintf("Your subscription to %s is now %s.", u.packageName(ctx, sub.PackageID), s.Status)),
		})
	}
	return nil
}

// mirrorInvoice copies invoice payments into local history. Best-effort by
// contract: the mirror is not authoritative for anything.
func (u *webhookUC) mirrorInvoice(ctx context.Context, inv *model.InvoicePaid) {
	rec := &model.PaymentRecord{
		ID:         uuid.NewString(),
		Kind:       model.PaymentKindInvoice,
		ExternalID: inv.InvoiceID,
		ChargeID:   inv.ChargeID,
		AmountCent: inv.AmountCent,
		Currency:   inv.Currency,
	}
	if user, err := u.users.FindByCustomerID(ctx, repository.NoTX, inv.CustomerID); err == nil {
		rec.UserID = user.ID
	} else if !errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Err(err).Str("customer_id", inv.CustomerID).Msg("customer lookup failed for invoice mirror")
	}
	if err := u.payments.UpsertByExternalID(ctx, repository.NoTX, rec); err != nil {
		u.log.Warn().Err(err).Str("invoice_id", inv.InvoiceID).Msg("invoice mirror upsert failed")
	}
}

func (u *webhookUC) mirrorCheckout(ctx context.Context, c *model.CheckoutCompleted) {
	chargeID := c.PaymentIntentID
	if c.Mode == model.PaymentModeRecurring {
		chargeID = c.SubscriptionID
	}
	rec := &model.PaymentRecord{
		ID:         uuid.NewString(),
		UserID:     c.UserID,
		Kind:       model.PaymentKindCheckout,
		ExternalID: c.SessionID,
		ChargeID:   chargeID,
		AmountCent: c.AmountCent,
		Currency:   c.Currency,
	}
	if err := u.payments.UpsertByExternalID(ctx, repository.NoTX, rec); err != nil {
		u.log.Warn().Err(err).Str("session_id", c.SessionID).Msg("payment mirror upsert failed")
	}
}

func (u *webhookUC) backfillProfile(ctx context.Context, c *model.CheckoutCompleted, customerID string) {
	if customerID != "" {
		if err := u.users.BackfillCustomerID(ctx, repository.NoTX, c.UserID, customerID); err != nil {
			u.log.Warn().Err(err).Str("user_id", c.UserID).Msg("customer id backfill failed")
		}
	}
	if c.TrialApplied {
		if err := u.users.MarkTrialUsed(ctx, repository.NoTX, c.UserID); err != nil {
			u.log.Warn().Err(err).Str("user_id", c.UserID).Msg("trial flag write failed")
		}
	}
}

func (u *webhookUC) packageName(ctx context.Context, packageID string) string {
	pkg, err := u.packages.FindByID(ctx, repository.NoTX, packageID)
	if err != nil {
		return packageID
	}
	return pkg.Name
}
