package model

import (
	"time"

	"course-entitlement-platform/internal/domain"
)

type PurchaseStatus string

const (
	PurchaseStatusProcessing PurchaseStatus = "processing"
	PurchaseStatusPaid       PurchaseStatus = "paid"
	PurchaseStatusDelivered  PurchaseStatus = "delivered"
	PurchaseStatusRefunded   PurchaseStatus = "refunded"
	PurchaseStatusCanceled   PurchaseStatus = "canceled"
)

// purchaseRank orders the fulfillment pipeline. Status only advances; the
// terminal states refunded/canceled are reachable from anywhere.
var purchaseRank = map[PurchaseStatus]int{
	PurchaseStatusProcessing: 1,
	PurchaseStatusPaid:       2,
	PurchaseStatusDelivered:  3,
}

// OneTimePurchase is one row per completed checkout. Repeat purchases of the
// same package are legitimate separate rows; the payment-intent id is the
// idempotency key guarding event redelivery.
type OneTimePurchase struct {
	ID              string // UUID
	UserID          string // UUID
	PackageID       string // UUID
	Status          PurchaseStatus
	PaymentIntentID string  // processor payment id, unique
	DocumentRef     *string // optional fulfillment document reference
	AmountPaidCent  int64
	Currency        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewOneTimePurchase(id, userID, packageID, paymentIntentID string, amountCent int64, currency string) (*OneTimePurchase, error) {
	if id == "" || userID == "" || packageID == "" || paymentIntentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &OneTimePurchase{
		ID:              id,
		UserID:          userID,
		PackageID:       packageID,
		Status:          PurchaseStatusPaid,
		PaymentIntentID: paymentIntentID,
		AmountPaidCent:  amountCent,
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Terminal reports whether no further pipeline transition is permitted.
func (p *OneTimePurchase) Terminal() bool {
	return p.Status == PurchaseStatusRefunded || p.Status == PurchaseStatusCanceled
}

// CanAdvanceTo enforces the monotonic fulfillment pipeline.
func (p *OneTimePurchase) CanAdvanceTo(next PurchaseStatus) bool {
	if p.Terminal() {
		return false
	}
	if next == PurchaseStatusRefunded || next == PurchaseStatusCanceled {
		return true
	}
	return purchaseRank[next] > purchaseRank[p.Status]
}

// Entitled reports whether the purchase currently grants access.
func (p *OneTimePurchase) Entitled() bool {
	return p.Status == PurchaseStatusPaid || p.Status == PurchaseStatusDelivered
}
