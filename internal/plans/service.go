package plans

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/macrofit/macrofit-api/internal/ai"
	"github.com/macrofit/macrofit-api/internal/gating"
	"github.com/macrofit/macrofit-api/internal/models"
	"github.com/macrofit/macrofit-api/internal/profile"
	"github.com/macrofit/macrofit-api/pkg/logger"
)

// Generator is the model-backed plan source, implemented by ai.Client.
type Generator interface {
	GenerateMealPlan(ctx context.Context, p ai.MealPlanParams) ([]ai.MealDay, error)
	GenerateWorkoutPlan(ctx context.Context, p ai.WorkoutPlanParams) ([]ai.WorkoutDay, error)
}

// ProfileSource yields the profile plus its macro projection, implemented
// by profile.Service.
type ProfileSource interface {
	Get(ctx context.Context, userID uuid.UUID) (*profile.ProfileWithMacros, error)
}

type Service struct {
	repo     Repository
	profiles ProfileSource
	gen      Generator
	logger   *logger.Logger
}

func NewService(repo Repository, profiles ProfileSource, gen Generator, l *logger.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, gen: gen, logger: l}
}

// PlanView is the gated read model for the plans screen.
type PlanView struct {
	MealDays    []MealDayView    `json:"meal_days"`
	WorkoutDays []WorkoutDayView `json:"workout_days"`
	IsPremium   bool             `json:"is_premium"`
}

type MealDayView struct {
	Day   int                  `json:"day"`
	Meals []models.MealPlanDay `json:"meals"`
}

type WorkoutDayView struct {
	Day       int                     `json:"day"`
	Exercises []models.WorkoutPlanDay `json:"exercises"`
}

// Generate builds fresh meal and workout plans for the user's current
// profile and replaces any stored ones. The day counts are pre-gated so a
// free user's plan never even contains locked content.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID) (*PlanView, error) {
	pm, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	prof := pm.Profile

	mealDays := gating.MealDayLimit(prof.IsPremium)
	workoutDays := gating.WorkoutDayLimit(prof.IsPremium, prof.TrainingDays)

	generatedMeals, err := s.gen.GenerateMealPlan(ctx, ai.MealPlanParams{
		Calories:     pm.Macros.Calories,
		ProteinG:     pm.Macros.ProteinG,
		CarbsG:       pm.Macros.CarbsG,
		FatsG:        pm.Macros.FatsG,
		Goal:         string(prof.Goal),
		WeeklyBudget: prof.WeeklyBudget,
		Days:         mealDays,
	})
	if err != nil {
		return nil, fmt.Errorf("meal plan generation failed: %w", err)
	}

	generatedWorkouts, err := s.gen.GenerateWorkoutPlan(ctx, ai.WorkoutPlanParams{
		Goal:         string(prof.Goal),
		TrainingDays: prof.TrainingDays,
		Equipment:    string(prof.Equipment),
		Days:         workoutDays,
	})
	if err != nil {
		return nil, fmt.Errorf("workout plan generation failed: %w", err)
	}

	mealRows := flattenMeals(userID, generatedMeals)
	workoutRows := flattenWorkouts(userID, generatedWorkouts)

	if err := s.repo.ReplaceMealPlan(ctx, userID, mealRows); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceWorkoutPlan(ctx, userID, workoutRows); err != nil {
		return nil, err
	}

	s.logger.Info("Plans generated",
		"user_id", userID, "meal_days", mealDays, "workout_days", workoutDays)

	return s.view(prof.IsPremium, mealRows, workoutRows), nil
}

// View returns the stored plans filtered through the gating policy. Content
// generated while premium stays in the database after a notional downgrade
// but is windowed back down at read time.
func (s *Service) View(ctx context.Context, userID uuid.UUID) (*PlanView, error) {
	pm, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	mealRows, err := s.repo.ListMealPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	workoutRows, err := s.repo.ListWorkoutPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.view(pm.Profile.IsPremium, mealRows, workoutRows), nil
}

func (s *Service) view(isPremium bool, mealRows []models.MealPlanDay, workoutRows []models.WorkoutPlanDay) *PlanView {
	visibleMeals := gating.VisibleMealDays(isPremium, mealDayNumbers(mealRows))
	visibleWorkouts := gating.VisibleWorkoutDays(isPremium, workoutDayNumbers(workoutRows))

	v := &PlanView{IsPremium: isPremium, MealDays: []MealDayView{}, WorkoutDays: []WorkoutDayView{}}
	for _, day := range visibleMeals {
		dv := MealDayView{Day: day}
		for _, row := range mealRows {
			if row.Day == day {
				dv.Meals = append(dv.Meals, row)
			}
		}
		v.MealDays = append(v.MealDays, dv)
	}
	for _, day := range visibleWorkouts {
		dv := WorkoutDayView{Day: day}
		for _, row := range workoutRows {
			if row.Day == day {
				dv.Exercises = append(dv.Exercises, row)
			}
		}
		v.WorkoutDays = append(v.WorkoutDays, dv)
	}
	return v
}

func flattenMeals(userID uuid.UUID, days []ai.MealDay) []models.MealPlanDay {
	var rows []models.MealPlanDay
	for _, d := range days {
		for _, m := range d.Meals {
			rows = append(rows, models.MealPlanDay{
				UserID:   userID,
				Day:      d.Day,
				MealName: m.Name,
				Foods:    m.Foods,
				ProteinG: m.Protein,
				CarbsG:   m.Carbs,
				FatsG:    m.Fats,
				Calories: m.Calories,
			})
		}
	}
	return rows
}

func flattenWorkouts(userID uuid.UUID, days []ai.WorkoutDay) []models.WorkoutPlanDay {
	var rows []models.WorkoutPlanDay
	for _, d := range days {
		for _, e := range d.Exercises {
			rows = append(rows, models.WorkoutPlanDay{
				UserID:       userID,
				Day:          d.Day,
				ExerciseName: e.Name,
				Sets:         e.Sets,
				Reps:         e.Reps,
				RestSeconds:  e.Rest,
				Notes:        e.Notes,
			})
		}
	}
	return rows
}

// mealDayNumbers returns the distinct generated day numbers.
func mealDayNumbers(rows []models.MealPlanDay) []int {
	seen := map[int]bool{}
	var days []int
	for _, r := range rows {
		if !seen[r.Day] {
			seen[r.Day] = true
			days = append(days, r.Day)
		}
	}
	return days
}

func workoutDayNumbers(rows []models.WorkoutPlanDay) []int {
	seen := map[int]bool{}
	var days []int
	for _, r := range rows {
		if !seen[r.Day] {
			seen[r.Day] = true
			days = append(days, r.Day)
		}
	}
	return days
}
