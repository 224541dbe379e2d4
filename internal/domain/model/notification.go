package model

import "time"

type NotificationKind string

const (
	NotificationKindSubscription NotificationKind = "subscription"
	NotificationKindPurchase     NotificationKind = "purchase"
	NotificationKindRefund       NotificationKind = "refund"
	NotificationKindAchievement  NotificationKind = "achievement"
	NotificationKindStaff        NotificationKind = "staff"
)

// Notification is one row of the append-only message log. Only the read flag
// is ever mutated, by the recipient.
type Notification struct {
	ID        string // ULID, sortable by creation time
	UserID    string // recipient; empty means the staff inbox
	Kind      NotificationKind
	Message   string
	Read      bool
	CreatedAt time.Time
}
