package model

import (
	"encoding/json"
	"fmt"
	"time"

	"course-entitlement-platform/internal/domain"
)

type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.completed"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventInvoicePaid         EventType = "invoice.paid"
)

// Event is one decoded processor event. Exactly one variant pointer is set
// for the recognized types; unknown types carry only ID/Type so the handler
// can acknowledge them as forward-compatible no-ops.
type Event struct {
	ID   string
	Type EventType

	Checkout     *CheckoutCompleted
	Subscription *SubscriptionUpdated
	Invoice      *InvoicePaid
}

// CheckoutCompleted carries everything needed to create an entitlement.
// UserID/PackageID travel in checkout metadata and may be absent when the
// session was created outside this application; reconcilers skip those.
type CheckoutCompleted struct {
	SessionID       string // checkout/session id, idempotency key for mirrors
	UserID          string
	PackageID       string
	Mode            PaymentMode
	SubscriptionID  string // set when Mode is recurring
	PaymentIntentID string // set when Mode is one-time
	CustomerID      string
	AmountCent      int64
	Currency        string
	TrialApplied    bool
}

type SubscriptionUpdated struct {
	SubscriptionID    string
	Status            SubscriptionStatus
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

type InvoicePaid struct {
	InvoiceID  string
	CustomerID string
	ChargeID   string
	AmountCent int64
	Currency   string
}

// rawEvent mirrors the processor envelope. The payload is loosely typed and
// has drifted across API versions (amount_total vs amount, mode spelled as
// the checkout mode or the payment mode), so each variant decode probes the
// known locations and fails loudly instead of optional-chaining.
type rawEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type rawCheckout struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id"`
	Mode          string            `json:"mode"`
	Subscription  string            `json:"subscription"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentID     string            `json:"payment_id"` // older API versions
	Customer      string            `json:"customer"`
	AmountTotal   *int64            `json:"amount_total"`
	Amount        *int64            `json:"amount"` // older API versions
	Currency      string            `json:"currency"`
	TrialApplied  bool              `json:"trial_applied"`
	Metadata      map[string]string `json:"metadata"`
}

type rawSubscriptionUpdate struct {
	ID                string `json:"id"`
	Subscription      string `json:"subscription"`
	Status            string `json:"status"`
	PeriodEnd         int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

type rawInvoice struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Charge   string `json:"charge"`
	Amount   int64  `json:"amount_paid"`
	Currency string `json:"currency"`
}

// DecodeEvent parses a verified event payload into its tagged variant.
// It returns domain.ErrMalformedEvent (wrapped) for payloads that name a
// recognized type but fail validation; unknown types decode successfully
// with no variant set.
func DecodeEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if raw.ID == "" || raw.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", domain.ErrMalformedEvent)
	}

	ev := &Event{ID: raw.ID, Type: EventType(raw.Type)}
	switch ev.Type {
	case EventCheckoutCompleted:
		c, err := decodeCheckout(raw.Data)
		if err != nil {
			return nil, err
		}
		ev.Checkout = c
	case EventSubscriptionUpdated:
		s, err := decodeSubscriptionUpdate(raw.Data)
		if err != nil {
			return nil, err
		}
		ev.Subscription = s
	case EventInvoicePaid:
		inv, err := decodeInvoice(raw.Data)
		if err != nil {
			return nil, err
		}
		ev.Invoice = inv
	}
	return ev, nil
}

func decodeCheckout(data json.RawMessage) (*CheckoutCompleted, error) {
	var rc rawCheckout
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("%w: checkout data: %v", domain.ErrMalformedEvent, err)
	}
	c := &CheckoutCompleted{
		SessionID:       rc.SessionID,
		SubscriptionID:  rc.Subscription,
		PaymentIntentID: rc.PaymentIntent,
		CustomerID:      rc.Customer,
		Currency:        rc.Currency,
		TrialApplied:    rc.TrialApplied,
	}
	if c.SessionID == "" {
		c.SessionID = rc.ID
	}
	if c.SessionID == "" {
		return nil, fmt.Errorf("%w: checkout without session id", domain.ErrMalformedEvent)
	}
	if c.PaymentIntentID == "" {
		c.PaymentIntentID = rc.PaymentID
	}
	switch rc.Mode {
	case "subscription", string(PaymentModeRecurring):
		c.Mode = PaymentModeRecurring
	case "payment", string(PaymentModeOneTime):
		c.Mode = PaymentModeOneTime
	default:
		return nil, fmt.Errorf("%w: unknown checkout mode %q", domain.ErrMalformedEvent, rc.Mode)
	}
	if c.Mode == PaymentModeRecurring && c.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: recurring checkout without subscription reference", domain.ErrMalformedEvent)
	}
	if c.Mode == PaymentModeOneTime && c.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: one-time checkout without payment reference", domain.ErrMalformedEvent)
	}
	switch {
	case rc.AmountTotal != nil:
		c.AmountCent = *rc.AmountTotal
	case rc.Amount != nil:
		c.AmountCent = *rc.Amount
	}
	if rc.Metadata != nil {
		c.UserID = rc.Metadata["user_id"]
		c.PackageID = rc.Metadata["package_id"]
	}
	return c, nil
}

func decodeSubscriptionUpdate(data json.RawMessage) (*SubscriptionUpdated, error) {
	var rs rawSubscriptionUpdate
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: subscription data: %v", domain.ErrMalformedEvent, err)
	}
	id := rs.Subscription
	if id == "" {
		id = rs.ID
	}
	if id == "" || rs.Status == "" {
		return nil, fmt.Errorf("%w: subscription update without id or status", domain.ErrMalformedEvent)
	}
	return &SubscriptionUpdated{
		SubscriptionID:    id,
		Status:            SubscriptionStatus(rs.Status),
		PeriodEnd:         time.Unix(rs.PeriodEnd, 0).UTC(),
		CancelAtPeriodEnd: rs.CancelAtPeriodEnd,
	}, nil
}

func decodeInvoice(data json.RawMessage) (*InvoicePaid, error) {
	var ri rawInvoice
	if err := json.Unmarshal(data, &ri); err != nil {
		return nil, fmt.Errorf("%w: invoice data: %v", domain.ErrMalformedEvent, err)
	}
	if ri.Customer == "" || ri.Charge == "" {
		return nil, fmt.Errorf("%w: invoice without customer or charge reference", domain.ErrMalformedEvent)
	}
	return &InvoicePaid{
		InvoiceID:  ri.ID,
		CustomerID: ri.Customer,
		ChargeID:   ri.Charge,
		AmountCent: ri.Amount,
		Currency:   ri.Currency,
	}, nil
}
