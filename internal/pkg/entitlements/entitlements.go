package entitlements

import (
	"strings"

	"github.com/ManuelReschke/CogniFox/app/models"
)

type Access string

const (
	AccessNone    Access = "none"
	AccessTrial   Access = "trial"
	AccessPremium Access = "premium"
)

// AccessFor maps a stored subscription state to what the user may see.
// A confirmed active subscription is premium; a running trial is treated as
// premium access without a captured payment.
func AccessFor(status string, paymentCompleted bool) Access {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive:
		if paymentCompleted {
			return AccessPremium
		}
		return AccessNone
	case models.SubscriptionStatusTrialing:
		return AccessTrial
	default:
		return AccessNone
	}
}

// CanViewResults reports whether full results and the leaderboard are unlocked.
func CanViewResults(status string, paymentCompleted bool) bool {
	return AccessFor(status, paymentCompleted) != AccessNone
}

// UserCanViewResults is CanViewResults for a loaded record. Deleted accounts
// never have access.
func UserCanViewResults(u *models.User) bool {
	if u == nil || u.DeletedAt != nil {
		return false
	}
	return CanViewResults(u.SubscriptionStatus, u.PaymentCompleted)
}
