package models

import "time"

// ResetState is the lifecycle position of a PasswordReset.
type ResetState string

const (
	ResetIssued     ResetState = "issued"
	ResetRedeemed   ResetState = "redeemed"
	ResetSuperseded ResetState = "superseded"
	ResetExpired    ResetState = "expired"
)

// PasswordReset is a one-time code issued for a user. Only a keyed digest of
// the code is stored.
type PasswordReset struct {
	ID             string
	UserID         string
	CodeHash       string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	ConsumedAt     *time.Time
	SupersededAt   *time.Time
	FailedAttempts int
}

// State derives the lifecycle state at instant now. Terminal markers win
// over expiry.
func (r *PasswordReset) State(now time.Time) ResetState {
	switch {
	case r.ConsumedAt != nil:
		return ResetRedeemed
	case r.SupersededAt != nil:
		return ResetSuperseded
	case !now.Before(r.ExpiresAt):
		return ResetExpired
	default:
		return ResetIssued
	}
}
