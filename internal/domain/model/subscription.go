package model

import (
	"time"

	"course-entitlement-platform/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusRefunded   SubscriptionStatus = "refunded"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// Subscription is the local copy of a recurring entitlement. One row per
// (user, package); the processor owns status, period end and the customer /
// subscription identifiers, we only mirror them. Rows are never deleted,
// terminal statuses are kept as history.
type Subscription struct {
	ID                string // UUID
	UserID            string // UUID
	PackageID         string // UUID
	Status            SubscriptionStatus
	PeriodEnd         *time.Time // externally owned; nil until first processor fetch
	CancelAtPeriodEnd bool
	CustomerID        string // processor customer id
	ProviderSubID     string // processor subscription id, stable across renewals
	AmountPaidCent    int64  // captured at checkout, independent of list price
	Currency          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewSubscription(id, userID, packageID, providerSubID string) (*Subscription, error) {
	if id == "" || userID == "" || packageID == "" || providerSubID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:            id,
		UserID:        userID,
		PackageID:     packageID,
		Status:        SubscriptionStatusIncomplete,
		ProviderSubID: providerSubID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Entitled reports whether the subscription currently grants access.
func (s *Subscription) Entitled() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}
