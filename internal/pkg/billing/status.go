package billing

import (
	"strings"

	"github.com/ManuelReschke/CogniFox/app/models"
)

// normalizeStatus lowercases a processor status and maps an empty one to
// payment_required.
func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		return models.SubscriptionStatusPaymentRequired
	}
	return s
}

func isPaymentFailureStatus(status string) bool {
	switch normalizeStatus(status) {
	case models.SubscriptionStatusPastDue, models.SubscriptionStatusUnpaid:
		return true
	default:
		return false
	}
}

func isPaidStatus(status string) bool {
	return normalizeStatus(status) == models.SubscriptionStatusActive
}
