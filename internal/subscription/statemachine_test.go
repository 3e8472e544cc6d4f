package subscription

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macrofit/macrofit-api/internal/models"
)

func TestNormalizeProviderStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     models.SubscriptionStatus
		known    bool
	}{
		{"approved", models.StatusPaid, true},
		{"pending", models.StatusPending, true},
		{"in_process", models.StatusPending, true},
		{"rejected", models.StatusFailed, true},
		{"cancelled", models.StatusFailed, true},
		{"refunded", models.StatusRefunded, true},
		{"charged_back", models.StatusRefunded, true},
		{"authorized", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, err := NormalizeProviderStatus(tc.provider)
		if tc.known {
			assert.NoError(t, err, tc.provider)
		} else {
			assert.True(t, errors.Is(err, models.ErrUnknownProviderStatus), tc.provider)
		}
		assert.Equal(t, tc.want, got, tc.provider)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[models.SubscriptionStatus][]models.SubscriptionStatus{
		models.StatusPending: {models.StatusPaid, models.StatusFailed},
		models.StatusPaid:    {models.StatusRefunded},
	}

	all := []models.SubscriptionStatus{
		models.StatusPending, models.StatusPaid, models.StatusFailed,
		models.StatusCancelled, models.StatusRefunded,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, canTransition(from, to), "%s -> %s", from, to)
		}
	}
}

// No transition path may re-enter pending from anywhere.
func TestPendingIsNeverATarget(t *testing.T) {
	assert.Empty(t, validPredecessors[models.StatusPending])
}

func TestPlanByID(t *testing.T) {
	p, err := PlanByID("premium_monthly")
	assert.NoError(t, err)
	assert.Equal(t, int64(3900), p.AmountCents)
	assert.Equal(t, "BRL", p.Currency)

	p, err = PlanByID("premium_yearly")
	assert.NoError(t, err)
	assert.Equal(t, int64(39900), p.AmountCents)

	_, err = PlanByID("free_forever")
	assert.Error(t, err)
}
