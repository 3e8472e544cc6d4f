package subscription

import (
	"fmt"

	"github.com/macrofit/macrofit-api/internal/models"
)

// Plan is a purchasable entitlement. The catalog is code, not data: plans
// change with deploys, not at runtime.
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

var plans = map[string]Plan{
	"premium_monthly": {
		ID:          "premium_monthly",
		Name:        "Premium Mensal",
		AmountCents: 3900,
		Currency:    "BRL",
		Description: "Acesso completo por 1 mes",
	},
	"premium_yearly": {
		ID:          "premium_yearly",
		Name:        "Premium Anual",
		AmountCents: 39900,
		Currency:    "BRL",
		Description: "Acesso completo por 12 meses",
	},
}

// Plans returns the catalog in a stable order for the pricing screen.
func Plans() []Plan {
	return []Plan{plans["premium_monthly"], plans["premium_yearly"]}
}

// PlanByID resolves a plan or fails with ErrInvalidInput.
func PlanByID(id string) (Plan, error) {
	p, ok := plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: unknown plan %q", models.ErrInvalidInput, id)
	}
	return p, nil
}
