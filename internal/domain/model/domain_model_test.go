//go:build !integration

package model

import (
	"errors"
	"testing"

	"course-entitlement-platform/internal/domain"
)

// --- Refund Request Tests ---

func TestNewRefundRequest(t *testing.T) {
	t.Run("should create a pending request targeting a subscription", func(t *testing.T) {
		r, err := NewRefundRequest("r-1", "user-1", RefundTargetSubscription, "sub-1", "changed my mind")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if r.Status != RefundStatusPending {
			t.Errorf("expected status 'pending', got '%s'", r.Status)
		}
		if r.SubscriptionID == nil || *r.SubscriptionID != "sub-1" {
			t.Error("expected subscription target to be set")
		}
		if r.PurchaseID != nil {
			t.Error("expected purchase target to be nil")
		}
		if r.TargetType() != RefundTargetSubscription || r.TargetID() != "sub-1" {
			t.Error("expected derived target accessors to match the subscription target")
		}
	})

	t.Run("should create a pending request targeting a purchase", func(t *testing.T) {
		r, err := NewRefundRequest("r-2", "user-1", RefundTargetPurchase, "pur-1", "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if r.PurchaseID == nil || *r.PurchaseID != "pur-1" {
			t.Error("expected purchase target to be set")
		}
		if r.SubscriptionID != nil {
			t.Error("expected subscription target to be nil")
		}
	})

	t.Run("should fail with an unknown target type", func(t *testing.T) {
		r, err := NewRefundRequest("r-3", "user-1", RefundTargetType("charge"), "ch-1", "")
		if err == nil {
			t.Fatal("expected an error for unknown target type, but got nil")
		}
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if r != nil {
			t.Error("expected request to be nil on error")
		}
	})

	t.Run("should fail with an empty target id", func(t *testing.T) {
		if _, err := NewRefundRequest("r-4", "user-1", RefundTargetSubscription, "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// --- Watch Progress Tests ---

func TestNewVideoWatchProgress(t *testing.T) {
	t.Run("should mark completed at 95 percent of duration", func(t *testing.T) {
		p, err := NewVideoWatchProgress("user-1", "vid-1", 95, 100)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !p.Completed {
			t.Error("expected progress at 95%% to be completed")
		}
	})

	t.Run("should not mark completed below the threshold", func(t *testing.T) {
		p, err := NewVideoWatchProgress("user-1", "vid-1", 94, 100)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Completed {
			t.Error("expected progress at 94%% to be incomplete")
		}
	})

	t.Run("should clamp elapsed to duration", func(t *testing.T) {
		p, err := NewVideoWatchProgress("user-1", "vid-1", 500, 100)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.ElapsedSec != 100 {
			t.Errorf("expected elapsed clamped to 100, got %d", p.ElapsedSec)
		}
		if !p.Completed {
			t.Error("expected clamped full watch to be completed")
		}
	})

	t.Run("should reject a non-positive duration", func(t *testing.T) {
		if _, err := NewVideoWatchProgress("user-1", "vid-1", 10, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestVideoWatchProgressFraction(t *testing.T) {
	p := &VideoWatchProgress{ElapsedSec: 30, DurationSec: 120}
	if f := p.Fraction(); f != 0.25 {
		t.Errorf("expected fraction 0.25, got %v", f)
	}
	// A completed row counts as fully watched even if the stored elapsed
	// position is from a later partial re-watch.
	p.Completed = true
	p.ElapsedSec = 5
	if f := p.Fraction(); f != 1 {
		t.Errorf("expected fraction 1 for completed row, got %v", f)
	}
}

// --- Purchase Pipeline Tests ---

func TestOneTimePurchasePipeline(t *testing.T) {
	p, err := NewOneTimePurchase("pur-1", "user-1", "pkg-1", "pi_123", 4900, "USD")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if p.Status != PurchaseStatusPaid {
		t.Fatalf("expected new purchase to be 'paid', got '%s'", p.Status)
	}
	if !p.CanAdvanceTo(PurchaseStatusDelivered) {
		t.Error("expected paid -> delivered to be allowed")
	}
	if p.CanAdvanceTo(PurchaseStatusProcessing) {
		t.Error("expected paid -> processing to be rejected (monotonic pipeline)")
	}
	if !p.CanAdvanceTo(PurchaseStatusRefunded) {
		t.Error("expected paid -> refunded to be allowed")
	}

	p.Status = PurchaseStatusRefunded
	if !p.Terminal() {
		t.Error("expected refunded purchase to be terminal")
	}
	if p.CanAdvanceTo(PurchaseStatusDelivered) {
		t.Error("expected no transition out of a terminal state")
	}
	if p.Entitled() {
		t.Error("expected refunded purchase to not grant access")
	}
}

// --- Event Decode Tests ---

func TestDecodeEvent(t *testing.T) {
	t.Run("should decode a recurring checkout with metadata", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_1",
			"type": "checkout.completed",
			"data": {
				"session_id": "cs_1",
				"mode": "subscription",
				"subscription": "sub_ext_1",
				"customer": "cus_1",
				"amount_total": 1900,
				"currency": "USD",
				"trial_applied": true,
				"metadata": {"user_id": "user-1", "package_id": "pkg-1"}
			}
		}`)
		ev, err := DecodeEvent(payload)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if ev.Checkout == nil {
			t.Fatal("expected checkout variant to be set")
		}
		c := ev.Checkout
		if c.Mode != PaymentModeRecurring || c.SubscriptionID != "sub_ext_1" {
			t.Errorf("unexpected checkout decode: %+v", c)
		}
		if c.UserID != "user-1" || c.PackageID != "pkg-1" {
			t.Error("expected metadata ids to be extracted")
		}
		if c.AmountCent != 1900 || !c.TrialApplied {
			t.Error("expected amount and trial flag to be carried over")
		}
	})

	t.Run("should read the legacy amount field location", func(t *testing.T) {
		payload := []byte(`{"id":"evt_2","type":"checkout.completed","data":{"id":"cs_2","mode":"payment","payment_id":"pi_9","amount":500}}`)
		ev, err := DecodeEvent(payload)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if ev.Checkout.AmountCent != 500 {
			t.Errorf("expected legacy amount 500, got %d", ev.Checkout.AmountCent)
		}
		if ev.Checkout.PaymentIntentID != "pi_9" {
			t.Errorf("expected legacy payment id, got %q", ev.Checkout.PaymentIntentID)
		}
		if ev.Checkout.SessionID != "cs_2" {
			t.Errorf("expected session id from data.id, got %q", ev.Checkout.SessionID)
		}
	})

	t.Run("should fail a recurring checkout without a subscription reference", func(t *testing.T) {
		payload := []byte(`{"id":"evt_3","type":"checkout.completed","data":{"session_id":"cs_3","mode":"subscription"}}`)
		if _, err := DecodeEvent(payload); !errors.Is(err, domain.ErrMalformedEvent) {
			t.Errorf("expected ErrMalformedEvent, got %v", err)
		}
	})

	t.Run("should decode a subscription update", func(t *testing.T) {
		payload := []byte(`{"id":"evt_4","type":"subscription.updated","data":{"subscription":"sub_ext_1","status":"past_due","current_period_end":1735689600,"cancel_at_period_end":true}}`)
		ev, err := DecodeEvent(payload)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if ev.Subscription == nil {
			t.Fatal("expected subscription variant to be set")
		}
		if ev.Subscription.Status != SubscriptionStatusPastDue || !ev.Subscription.CancelAtPeriodEnd {
			t.Errorf("unexpected update decode: %+v", ev.Subscription)
		}
		if ev.Subscription.PeriodEnd.Unix() != 1735689600 {
			t.Error("expected period end converted from unix seconds")
		}
	})

	t.Run("should pass through unknown event types with no variant", func(t *testing.T) {
		payload := []byte(`{"id":"evt_5","type":"charge.dispute.created","data":{"whatever":true}}`)
		ev, err := DecodeEvent(payload)
		if err != nil {
			t.Fatalf("expected no error for unknown type, but got: %v", err)
		}
		if ev.Checkout != nil || ev.Subscription != nil || ev.Invoice != nil {
			t.Error("expected no variant for unknown event type")
		}
	})

	t.Run("should fail an envelope without id or type", func(t *testing.T) {
		if _, err := DecodeEvent([]byte(`{"data":{}}`)); !errors.Is(err, domain.ErrMalformedEvent) {
			t.Errorf("expected ErrMalformedEvent, got %v", err)
		}
	})
}
