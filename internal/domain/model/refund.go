package model

import (
	"time"

	"course-entitlement-platform/internal/domain"
)

type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

type RefundTargetType string

const (
	RefundTargetSubscription RefundTargetType = "subscription"
	RefundTargetPurchase     RefundTargetType = "purchase"
)

// RefundRequest tracks one user refund intent through the staff decision.
// Exactly one of SubscriptionID/PurchaseID is set. The pending->terminal
// transition is the serialization point for the whole approval workflow.
type RefundRequest struct {
	ID             string // UUID
	UserID         string // UUID
	SubscriptionID *string
	PurchaseID     *string
	Reason         string
	Status         RefundStatus
	DecidedBy      *string // staff user id, set with the terminal transition
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}

// NewRefundRequest validates target exclusivity: a request must name exactly
// one of a subscription or a purchase.
func NewRefundRequest(id, userID string, targetType RefundTargetType, targetID, reason string) (*RefundRequest, error) {
	if id == "" || userID == "" || targetID == "" {
		return nil, domain.ErrInvalidArgument
	}
	r := &RefundRequest{
		ID:        id,
		UserID:    userID,
		Reason:    reason,
		Status:    RefundStatusPending,
		CreatedAt: time.Now(),
	}
	switch targetType {
	case RefundTargetSubscription:
		r.SubscriptionID = &targetID
	case RefundTargetPurchase:
		r.PurchaseID = &targetID
	default:
		return nil, domain.ErrInvalidArgument
	}
	return r, nil
}

// TargetType derives the target kind from whichever id is set.
func (r *RefundRequest) TargetType() RefundTargetType {
	if r.SubscriptionID != nil {
		return RefundTargetSubscription
	}
	return RefundTargetPurchase
}

// TargetID returns the id of whichever target is set.
func (r *RefundRequest) TargetID() string {
	if r.SubscriptionID != nil {
		return *r.SubscriptionID
	}
	if r.PurchaseID != nil {
		return *r.PurchaseID
	}
	return ""
}
