package model

import (
	"time"

	"course-entitlement-platform/internal/domain"
)

type PaymentMode string

const (
	PaymentModeRecurring PaymentMode = "recurring"
	PaymentModeOneTime   PaymentMode = "one-time"
)

// Package is a sellable unit of course content. Price edits never change
// historical amounts: every entitlement captures the amount actually paid.
type Package struct {
	ID        string // UUID
	Name      string
	PriceCent int64  // minor units, to avoid float errors
	Currency  string // ISO code, e.g. "USD"
	Mode      PaymentMode
	BadgeID   *string // nil when the package has no achievement badge asset
	CreatedAt time.Time
}

// Video is one ordered unit of a package.
type Video struct {
	ID          string // UUID
	PackageID   string
	Title       string
	Position    int // 1-based order within the package
	DurationSec int
}

func NewPackage(id, name string, priceCent int64, currency string, mode PaymentMode) (*Package, error) {
	if id == "" || name == "" || priceCent < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if mode != PaymentModeRecurring && mode != PaymentModeOneTime {
		return nil, domain.ErrInvalidArgument
	}
	return &Package{
		ID:        id,
		Name:      name,
		PriceCent: priceCent,
		Currency:  currency,
		Mode:      mode,
		CreatedAt: time.Now(),
	}, nil
}
