package model

import "time"

// User is the minimal profile this service needs: the processor customer id
// backfilled from checkout events and the set-once trial flag.
type User struct {
	ID           string // UUID
	Email        string
	Staff        bool
	CustomerID   string // processor customer id; backfilled, never overwritten
	TrialUsed    bool   // set exactly once, not reversible by event flow
	RegisteredAt time.Time
}
