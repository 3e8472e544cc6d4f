package subscription

import (
	"fmt"

	"github.com/macrofit/macrofit-api/internal/models"
)

// NormalizeProviderStatus maps a provider-reported payment status onto the
// internal subscription status. Statuses we do not know fail with
// ErrUnknownProviderStatus; callers absorb that, leave the subscription
// untouched, and send the event to the audit log instead.
func NormalizeProviderStatus(providerStatus string) (models.SubscriptionStatus, error) {
	switch providerStatus {
	case "approved":
		return models.StatusPaid, nil
	case "pending", "in_process":
		return models.StatusPending, nil
	case "rejected", "cancelled":
		return models.StatusFailed, nil
	case "refunded", "charged_back":
		return models.StatusRefunded, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownProviderStatus, providerStatus)
	}
}

// validPredecessors encodes the legal transition table: pending may become
// paid or failed, paid may become refunded, and every other state is
// terminal. Nothing ever re-enters pending.
var validPredecessors = map[models.SubscriptionStatus][]models.SubscriptionStatus{
	models.StatusPaid:     {models.StatusPending},
	models.StatusFailed:   {models.StatusPending},
	models.StatusRefunded: {models.StatusPaid},
}

// canTransition reports whether from→to is a legal state change. A same-
// state "transition" is not a change and callers treat it as an idempotent
// replay.
func canTransition(from, to models.SubscriptionStatus) bool {
	for _, p := range validPredecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}
