// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/adapter"
	"course-entitlement-platform/internal/domain/ports/repository"
	"course-entitlement-platform/internal/infra/logging"
	"course-entitlement-platform/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

// RefundUseCase runs the refund workflow: user-created pending requests,
// staff decisions, processor-side reversal before any local durable write.
type RefundUseCase interface {
	Create(ctx context.Context, userID string, targetType model.RefundTargetType, targetID, reason string) (*model.RefundRequest, error)
	// Decide performs the terminal transition. Approving issues the
	// processor reversal (and cancellation for subscriptions) first; if
	// that fails nothing local changes and the request stays pending.
	// Deciding an already-decided request is a no-op.
	Decide(ctx context.Context, staffID, requestID string, approve bool) error
	ListPending(ctx context.Context) ([]*model.RefundRequest, error)
}

type refundUC struct {
	refunds   repository.RefundRepository
	subs      repository.SubscriptionRepository
	purchases repository.PurchaseRepository
	packages  repository.PackageRepository
	processor adapter.PaymentProcessor
	tm        repository.TransactionManager
	notifier  NotificationUseCase
	log       *zerolog.Logger
}

func NewRefundUseCase(
	refunds repository.RefundRepository,
	subs repository.SubscriptionRepository,
	purchases repository.PurchaseRepository,
	packages repository.PackageRepository,
	processor adapter.PaymentProcessor,
	tm repository.TransactionManager,
	notifier NotificationUseCase,
	logger *zerolog.Logger,
) *refundUC {
	l := logger.With().Str("component", "RefundUC").Logger()
	return &refundUC{
		refunds:   refunds,
		subs:      subs,
		purchases: purchases,
		packages:  packages,
		processor: processor,
		tm:        tm,
		notifier:  notifier,
		log:       &l,
	}
}

func (u *refundUC) Create(ctx context.Context, userID string, targetType model.RefundTargetType, targetID, reason string) (*model.RefundRequest, error) {
	r, err := model.NewRefundRequest(uuid.NewString(), userID, targetType, targetID, reason)
	if err != nil {
		return nil, err
	}

	// Ownership and terminal-state checks against the live target.
	switch targetType {
	case model.RefundTargetSubscription:
		sub, err := u.subs.FindByID(ctx, repository.NoTX, targetID)
		if err != nil {
			return nil, err
		}
		if sub.UserID != userID {
			return nil, domain.ErrForbidden
		}
		if sub.Status == model.SubscriptionStatusRefunded {
			return nil, domain.ErrAlreadyRefunded
		}
	case model.RefundTargetPurchase:
		p, err := u.purchases.FindByID(ctx, repository.NoTX, targetID)
		if err != nil {
			return nil, err
		}
		if p.UserID != userID {
			return nil, domain.ErrForbidden
		}
		if p.Status == model.PurchaseStatusRefunded {
			return nil, domain.ErrAlreadyRefunded
		}
	}

	if pending, err := u.refunds.HasPendingForTarget(ctx, repository.NoTX, targetType, targetID); err != nil {
		return nil, err
	} else if pending {
		return nil, domain.ErrAlreadyExists
	}

	// The pending check above is advisory; when two creates race past it,
	// the partial unique index on pending requests per target rejects the
	// loser and Insert surfaces it as ErrAlreadyExists.
	if err := u.refunds.Insert(ctx, repository.NoTX, r); err != nil {
		return nil, err
	}
	metrics.IncRefundRequests()

	u.notifier.Emit(ctx, []*model.Notification{
		NewNotification("", model.NotificationKindStaff,
			fmt.Sprintf("Refund request %s: user %s, %s %s.", r.ID, userID, targetType, targetID)),
	})
	return r, nil
}

func (u *refundUC) Decide(ctx context.Context, staffID, requestID string, approve bool) error {
	defer logging.TraceDuration(u.log, "RefundUC.Decide")()
	var batch []*model.Notification

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The row lock is the serialization point: a concurrent second
		// decision blocks here, then finds a non-pending row and no-ops
		// without issuing a second processor call.
		r, err := u.refunds.FindByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if r.Status != model.RefundStatusPending {
			u.log.Info().Str("request_id", requestID).Str("status", string(r.Status)).Msg("refund request already decided; no-op")
			return nil
		}

		now := time.Now()
		if !approve {
			if err := u.refunds.MarkDecided(ctx, tx, r.ID, model.RefundStatusRejected, staffID, now); err != nil {
				return err
			}
			metrics.IncRefundDecision("rejected")
			batch = append(batch, NewNotification(r.UserID, model.NotificationKindRefund,
				fmt.Sprintf("Your refund request for %s was rejected.", u.targetPackageName(ctx, tx, r))))
			return nil
		}

		// A sibling request can exist for a target that was refunded since
		// this request was filed. Approving it would refund twice, so close
		// it instead of calling the processor.
		refunded, err := u.targetRefunded(ctx, tx, r)
		if err != nil {
			return err
		}
		if refunded {
			if err := u.refunds.MarkDecided(ctx, tx, r.ID, model.RefundStatusRejected, staffID, now); err != nil {
				return err
			}
			metrics.IncRefundDecision("target_refunded")
			batch = append(batch, NewNotification(r.UserID, model.NotificationKindRefund,
				fmt.Sprintf("Your refund request for %s was closed: it was already refunded.", u.targetPackageName(ctx, tx, r))))
			return nil
		}

		// Processor side first: reversal, then cancellation for
		// subscriptions. Any failure aborts before a single local write so
		// processor and store cannot disagree in the refunded direction.
		if err := u.reverseAtProcessor(ctx, tx, r); err != nil {
			metrics.IncRefundDecision("reversal_failed")
			return err
		}

		// From here a failure leaves the processor refunded but the store
		// not: the one unavoidable split-state window. It is surfaced at
		// error severity for manual reconciliation, never swallowed.
		if err := u.refunds.MarkDecided(ctx, tx, r.ID, model.RefundStatusApproved, staffID, now); err != nil {
			u.logSplitState(r, err)
			return err
		}
		if err := u.markTargetRefunded(ctx, tx, r); err != nil {
			u.logSplitState(r, err)
			return err
		}
		metrics.IncRefundDecision("approved")
		batch = append(batch, NewNotification(r.UserID, model.NotificationKindRefund,
			fmt.Sprintf("Your refund for %s was approved.", u.targetPackageName(ctx, tx, r))))
		return nil
	})
	if err != nil {
		return err
	}

	u.notifier.Emit(ctx, batch)
	return nil
}

func (u *refundUC) ListPending(ctx context.Context) ([]*model.RefundRequest, error) {
	return u.refunds.ListPending(ctx, repository.NoTX)
}

func (u *refundUC) reverseAtProcessor(ctx context.Context, tx repository.Tx, r *model.RefundRequest) error {
	switch r.TargetType() {
	case model.RefundTargetSubscription:
		sub, err := u.subs.FindByID(ctx, tx, *r.SubscriptionID)
		if err != nil {
			return err
		}
		chargeID, err := u.processor.LatestChargeForSubscription(ctx, sub.ProviderSubID)
		if err != nil {
			return fmt.Errorf("resolve latest charge for %s: %w", sub.ProviderSubID, err)
		}
		if _, err := u.processor.RefundCharge(ctx, chargeID, r.Reason); err != nil {
			return fmt.Errorf("refund charge %s: %w", chargeID, err)
		}
		if err := u.processor.CancelSubscription(ctx, sub.ProviderSubID); err != nil {
			return fmt.Errorf("cancel subscription %s: %w", sub.ProviderSubID, err)
		}
		return nil
	case model.RefundTargetPurchase:
		p, err := u.purchases.FindByID(ctx, tx, *r.PurchaseID)
		if err != nil {
			return err
		}
		if _, err := u.processor.RefundCharge(ctx, p.PaymentIntentID, r.Reason); err != nil {
			return fmt.Errorf("refund payment %s: %w", p.PaymentIntentID, err)
		}
		return nil
	}
	return domain.ErrInvalidArgument
}

func (u *refundUC) targetRefunded(ctx context.Context, tx repository.Tx, r *model.RefundRequest) (bool, error) {
	if r.SubscriptionID != nil {
		sub, err := u.subs.FindByID(ctx, tx, *r.SubscriptionID)
		if err != nil {
			return false, err
		}
		return sub.Status == model.SubscriptionStatusRefunded, nil
	}
	p, err := u.purchases.FindByID(ctx, tx, *r.PurchaseID)
	if err != nil {
		return false, err
	}
	return p.Status == model.PurchaseStatusRefunded, nil
}

func (u *refundUC) markTargetRefunded(ctx context.Context, tx repository.Tx, r *model.RefundRequest) error {
	if r.SubscriptionID != nil {
		return u.subs.SetStatus(ctx, tx, *r.SubscriptionID, model.SubscriptionStatusRefunded)
	}
	return u.purchases.SetStatus(ctx, tx, *r.PurchaseID, model.PurchaseStatusRefunded)
}

func (u *refundUC) targetPackageName(ctx context.Context, tx repository.Tx, r *model.RefundRequest) string {
	var packageID string
	if r.SubscriptionID != nil {
		if sub, err := u.subs.FindByID(ctx, tx, *r.SubscriptionID); err == nil {
			packageID = sub.PackageID
		}
	} else if r.PurchaseID != nil {
		if p, err := u.purchases.FindByID(ctx, tx, *r.PurchaseID); err == nil {
			packageID = p.PackageID
		}
	}
	if packageID == "" {
		return "your package"
	}
	pkg, err := u.packages.FindByID(ctx, tx, packageID)
	if err != nil {
		return packageID
	}
	return pkg.Name
}

func (u *refundUC) logSplitState(r *model.RefundRequest, err error) {
	u.log.Error().Err(err).
		Str("request_id", r.ID).
		Str("target_type", string(r.TargetType())).
		Str("target_id", r.TargetID()).
		Msg("SPLIT STATE: processor reversal succeeded but local refund write failed; manual reconciliation required")
	metrics.IncRefundSplitState()
}
