// Package gating decides how much generated plan content a user may see.
// Free users get a 3-day meal / 2-day workout preview; premium unlocks the
// full 7 days.
package gating

import "sort"

const (
	FreeMealDays    = 3
	FreeWorkoutDays = 2
	PremiumDays     = 7
)

// MealDayLimit returns how many meal-plan days may be generated or shown.
func MealDayLimit(isPremium bool) int {
	if isPremium {
		return PremiumDays
	}
	return FreeMealDays
}

// WorkoutDayLimit returns how many workout days may be generated or shown.
// requested caps the premium allowance so a 3-day lifter never gets 7 days
// of content.
func WorkoutDayLimit(isPremium bool, requested int) int {
	limit := FreeWorkoutDays
	if isPremium {
		limit = PremiumDays
	}
	if requested > 0 && requested < limit {
		return requested
	}
	return limit
}

// VisibleDays filters the generated day numbers down to the first allowed
// window, ascending. Empty input yields an empty result, never an error.
func VisibleDays(available []int, limit int) []int {
	days := make([]int, len(available))
	copy(days, available)
	sort.Ints(days)
	if len(days) > limit {
		days = days[:limit]
	}
	return days
}

// VisibleMealDays applies the meal window for the given entitlement.
func VisibleMealDays(isPremium bool, available []int) []int {
	return VisibleDays(available, MealDayLimit(isPremium))
}

// VisibleWorkoutDays applies the workout window for the given entitlement.
func VisibleWorkoutDays(isPremium bool, available []int) []int {
	return VisibleDays(available, WorkoutDayLimit(isPremium, 0))
}
