package plans

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/macrofit/macrofit-api/internal/db"
	"github.com/macrofit/macrofit-api/internal/models"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository stores generated plan content per user and day. Regeneration
// replaces the whole plan, so writes go through ReplaceMealPlan /
// ReplaceWorkoutPlan rather than row-level inserts.
type Repository interface {
	ReplaceMealPlan(ctx context.Context, userID uuid.UUID, rows []models.MealPlanDay) error
	ReplaceWorkoutPlan(ctx context.Context, userID uuid.UUID, rows []models.WorkoutPlanDay) error
	ListMealPlan(ctx context.Context, userID uuid.UUID) ([]models.MealPlanDay, error)
	ListWorkoutPlan(ctx context.Context, userID uuid.UUID) ([]models.WorkoutPlanDay, error)
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ReplaceMealPlan(ctx context.Context, userID uuid.UUID, rows []models.MealPlanDay) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin meal plan replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM meal_plans WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear meal plan: %w", err)
	}

	query := `
        INSERT INTO meal_plans (user_id, day, meal_name, foods, protein_g, carbs_g, fats_g, calories)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	for _, row := range rows {
		if _, err := tx.Exec(ctx, query,
			userID, row.Day, row.MealName, row.Foods,
			row.ProteinG, row.CarbsG, row.FatsG, row.Calories,
		); err != nil {
			return fmt.Errorf("failed to insert meal plan row: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) ReplaceWorkoutPlan(ctx context.Context, userID uuid.UUID, rows []models.WorkoutPlanDay) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin workout plan replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM workout_plans WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear workout plan: %w", err)
	}

	query := `
        INSERT INTO workout_plans (user_id, day, exercise_name, sets, reps, rest_seconds, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	for _, row := range rows {
		if _, err := tx.Exec(ctx, query,
			userID, row.Day, row.ExerciseName, row.Sets, row.Reps, row.RestSeconds, row.Notes,
		); err != nil {
			return fmt.Errorf("failed to insert workout plan row: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) ListMealPlan(ctx context.Context, userID uuid.UUID) ([]models.MealPlanDay, error) {
	query := `
        SELECT id, user_id, day, meal_name, foods, protein_g, carbs_g, fats_g, calories
        FROM meal_plans
        WHERE user_id = $1
        ORDER BY day, id
    `

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plan: %w", err)
	}
	defer rows.Close()

	var out []models.MealPlanDay
	for rows.Next() {
		var m models.MealPlanDay
		if err := rows.Scan(&m.ID, &m.UserID, &m.Day, &m.MealName, &m.Foods,
			&m.ProteinG, &m.CarbsG, &m.FatsG, &m.Calories); err != nil {
			return nil, fmt.Errorf("failed to scan meal plan row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListWorkoutPlan(ctx context.Context, userID uuid.UUID) ([]models.WorkoutPlanDay, error) {
	query := `
        SELECT id, user_id, day, exercise_name, sets, reps, rest_seconds, notes
        FROM workout_plans
        WHERE user_id = $1
        ORDER BY day, id
    `

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workout plan: %w", err)
	}
	defer rows.Close()

	var out []models.WorkoutPlanDay
	for rows.Next() {
		var w models.WorkoutPlanDay
		if err := rows.Scan(&w.ID, &w.UserID, &w.Day, &w.ExerciseName,
			&w.Sets, &w.Reps, &w.RestSeconds, &w.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan workout plan row: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
