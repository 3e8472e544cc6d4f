// Package macros computes daily calorie and macronutrient targets from body
// metrics using the Harris-Benedict equation. The output is a projection:
// callers recompute it whenever metrics or goal change instead of storing it.
package macros

import (
	"fmt"
	"math"

	"github.com/macrofit/macrofit-api/internal/models"
)

// Fixed "moderate activity" multiplier. The product supports no other
// activity levels.
const activityFactor = 1.55

// goalParams holds the calorie offset and macro split for one goal. Carb and
// fat percentages apply to the calories remaining after protein.
type goalParams struct {
	calorieOffset float64
	proteinPerKg  float64
	carbPct       float64
	fatPct        float64
}

var goalTable = map[models.Goal]goalParams{
	models.GoalHypertrophy: {calorieOffset: +300, proteinPerKg: 2.2, carbPct: 0.45, fatPct: 0.25},
	models.GoalDefinition:  {calorieOffset: -200, proteinPerKg: 2.5, carbPct: 0.35, fatPct: 0.30},
	models.GoalFatLoss:     {calorieOffset: -500, proteinPerKg: 2.0, carbPct: 0.30, fatPct: 0.30},
}

// goalAliases translates the two legacy client vocabularies onto the
// canonical enum. The Portuguese forms come from the original onboarding
// flow and are accepted at the boundary only, never stored.
var goalAliases = map[string]models.Goal{
	"hypertrophy":   models.GoalHypertrophy,
	"definition":    models.GoalDefinition,
	"fat_loss":      models.GoalFatLoss,
	"hipertrofia":   models.GoalHypertrophy,
	"definicao":     models.GoalDefinition,
	"perda_gordura": models.GoalFatLoss,
	"ganhar_massa":  models.GoalHypertrophy,
	"manter_peso":   models.GoalDefinition,
	"perder_peso":   models.GoalFatLoss,
}

// ParseGoal maps a client-supplied goal string onto the canonical enum.
func ParseGoal(s string) (models.Goal, error) {
	if g, ok := goalAliases[s]; ok {
		return g, nil
	}
	return "", fmt.Errorf("%w: unrecognized goal %q", models.ErrInvalidInput, s)
}

// BMR computes the Harris-Benedict basal metabolic rate with sex-specific
// coefficients.
func BMR(m models.BodyMetrics) float64 {
	if m.Sex == models.SexMale {
		return 88.362 + 13.397*m.WeightKg + 4.799*m.HeightCm - 5.677*float64(m.AgeYears)
	}
	return 447.593 + 9.247*m.WeightKg + 3.098*m.HeightCm - 4.330*float64(m.AgeYears)
}

// Calculate derives daily calorie and macro targets. It rejects non-positive
// metrics and unknown goals with ErrInvalidInput rather than clamping.
// Rounding is half away from zero (math.Round) on every output.
func Calculate(m models.BodyMetrics, goal models.Goal) (models.MacroTargets, error) {
	if m.WeightKg <= 0 {
		return models.MacroTargets{}, fmt.Errorf("%w: weight must be positive, got %.2f", models.ErrInvalidInput, m.WeightKg)
	}
	if m.HeightCm <= 0 {
		return models.MacroTargets{}, fmt.Errorf("%w: height must be positive, got %.2f", models.ErrInvalidInput, m.HeightCm)
	}
	if m.AgeYears <= 0 {
		return models.MacroTargets{}, fmt.Errorf("%w: age must be positive, got %d", models.ErrInvalidInput, m.AgeYears)
	}
	if m.Sex != models.SexMale && m.Sex != models.SexFemale {
		return models.MacroTargets{}, fmt.Errorf("%w: unrecognized sex %q", models.ErrInvalidInput, m.Sex)
	}
	params, ok := goalTable[goal]
	if !ok {
		return models.MacroTargets{}, fmt.Errorf("%w: unrecognized goal %q", models.ErrInvalidInput, goal)
	}

	tdee := BMR(m) * activityFactor
	calories := tdee + params.calorieOffset

	protein := m.WeightKg * params.proteinPerKg
	proteinCalories := protein * 4
	remaining := calories - proteinCalories
	carbs := remaining * params.carbPct / 4
	fats := remaining * params.fatPct / 9

	return models.MacroTargets{
		Calories: int(math.Round(calories)),
		ProteinG: int(math.Round(protein)),
		CarbsG:   int(math.Round(carbs)),
		FatsG:    int(math.Round(fats)),
	}, nil
}
