// Package domain defines shared domain constants and types.
package domain

import "strings"

// Tier is the CV template variant a user can reserve.
type Tier string

const (
	// TierJunior is the entry-level CV template.
	TierJunior Tier = "junior"
	// TierSenior is the experienced-profile CV template.
	TierSenior Tier = "senior"
)

// PaymentStatus tracks a reservation through the payment workflow.
// Transitions are forward-only: pending -> pending_verification -> completed,
// or pending -> completed directly via admin verification.
type PaymentStatus string

const (
	// StatusPending is the initial state of every reservation.
	StatusPending PaymentStatus = "pending"
	// StatusPendingVerification is set once a payment receipt is attached.
	StatusPendingVerification PaymentStatus = "pending_verification"
	// StatusCompleted is set once an admin has verified the payment.
	StatusCompleted PaymentStatus = "completed"
)

// ParseTier resolves a raw tier segment case-insensitively.
func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierJunior:
		return TierJunior, true
	case TierSenior:
		return TierSenior, true
	default:
		return "", false
	}
}
