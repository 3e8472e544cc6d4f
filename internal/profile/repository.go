package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/macrofit/macrofit-api/internal/db"
	"github.com/macrofit/macrofit-api/internal/models"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository persists user profiles, the premium entitlement flag, and
// progress entries.
type Repository interface {
	Upsert(ctx context.Context, p *models.UserProfile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	SetPremium(ctx context.Context, userID uuid.UUID, premium bool) error
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)
	UpsertProgress(ctx context.Context, e *models.ProgressEntry) error
	ListProgress(ctx context.Context, userID uuid.UUID, limit int) ([]models.ProgressEntry, error)
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.UserProfile) error {
	query := `
        INSERT INTO users_profile (user_id, weight_kg, height_cm, age_years, sex, goal, training_days, equipment, weekly_budget)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id) DO UPDATE
        SET weight_kg = $2, height_cm = $3, age_years = $4, sex = $5, goal = $6,
            training_days = $7, equipment = $8, weekly_budget = $9, updated_at = NOW()
        RETURNING id, is_premium, created_at, updated_at
    `

	err := r.pool.QueryRow(ctx, query,
		p.UserID, p.WeightKg, p.HeightCm, p.AgeYears, p.Sex, p.Goal,
		p.TrainingDays, p.Equipment, p.WeeklyBudget,
	).Scan(&p.ID, &p.IsPremium, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	query := `
        SELECT id, user_id, weight_kg, height_cm, age_years, sex, goal,
               training_days, equipment, weekly_budget, is_premium, created_at, updated_at
        FROM users_profile
        WHERE user_id = $1
    `

	var p models.UserProfile
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.UserID, &p.WeightKg, &p.HeightCm, &p.AgeYears, &p.Sex, &p.Goal,
		&p.TrainingDays, &p.Equipment, &p.WeeklyBudget, &p.IsPremium, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) SetPremium(ctx context.Context, userID uuid.UUID, premium bool) error {
	query := `
        UPDATE users_profile
        SET is_premium = $2, updated_at = NOW()
        WHERE user_id = $1
    `

	tag, err := r.pool.Exec(ctx, query, userID, premium)
	if err != nil {
		return fmt.Errorf("failed to set premium flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set premium for user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT is_premium FROM users_profile WHERE user_id = $1`

	var premium bool
	err := r.pool.QueryRow(ctx, query, userID).Scan(&premium)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No profile yet means no entitlement, not an error.
			return false, nil
		}
		return false, fmt.Errorf("failed to read premium flag: %w", err)
	}
	return premium, nil
}

func (r *PostgresRepository) UpsertProgress(ctx context.Context, e *models.ProgressEntry) error {
	query := `
        INSERT INTO progress_tracking (user_id, date, weight_kg, workout_completed, protein_intake_g, carbs_intake_g, fats_intake_g, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id, date) DO UPDATE
        SET weight_kg = $3, workout_completed = $4, protein_intake_g = $5,
            carbs_intake_g = $6, fats_intake_g = $7, notes = $8
        RETURNING id
    `

	err := r.pool.QueryRow(ctx, query,
		e.UserID, e.Date, e.WeightKg, e.WorkoutCompleted,
		e.ProteinIntakeG, e.CarbsIntakeG, e.FatsIntakeG, e.Notes,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert progress entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListProgress(ctx context.Context, userID uuid.UUID, limit int) ([]models.ProgressEntry, error) {
	query := `
        SELECT id, user_id, date, weight_kg, workout_completed, protein_intake_g, carbs_intake_g, fats_intake_g, notes
        FROM progress_tracking
        WHERE user_id = $1
        ORDER BY date DESC
        LIMIT $2
    `

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var entries []models.ProgressEntry
	for rows.Next() {
		var e models.ProgressEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Date, &e.WeightKg, &e.WorkoutCompleted,
			&e.ProteinIntakeG, &e.CarbsIntakeG, &e.FatsIntakeG, &e.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
