package model

import "time"

type PaymentKind string

const (
	PaymentKindCheckout PaymentKind = "checkout"
	PaymentKindInvoice  PaymentKind = "invoice"
)

// PaymentRecord mirrors processor payment history. It is a best-effort copy
// keyed by the external identifier (checkout session id or invoice id) so
// event redelivery upserts rather than duplicates. Never authoritative.
type PaymentRecord struct {
	ID         string // UUID
	UserID     string // may be empty when the customer could not be resolved
	Kind       PaymentKind
	ExternalID string // unique: session id for checkouts, invoice id for invoices
	ChargeID   string
	AmountCent int64
	Currency   string
	CreatedAt  time.Time
}
