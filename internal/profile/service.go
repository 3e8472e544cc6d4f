package profile

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/macrofit/macrofit-api/internal/macros"
	"github.com/macrofit/macrofit-api/internal/models"
	"github.com/macrofit/macrofit-api/pkg/logger"
)

type Service struct {
	repo   Repository
	logger *logger.Logger
}

func NewService(repo Repository, l *logger.Logger) *Service {
	return &Service{repo: repo, logger: l}
}

// SaveProfileParams is the onboarding payload. Goal accepts the legacy
// vocabularies, see macros.ParseGoal.
type SaveProfileParams struct {
	WeightKg     float64 `json:"weight_kg"`
	HeightCm     float64 `json:"height_cm"`
	AgeYears     int     `json:"age_years"`
	Sex          string  `json:"sex"`
	Goal         string  `json:"goal"`
	TrainingDays int     `json:"training_days"`
	Equipment    string  `json:"equipment"`
	WeeklyBudget float64 `json:"weekly_budget"`
}

// ProfileWithMacros pairs the stored profile with its macro projection.
type ProfileWithMacros struct {
	Profile models.UserProfile  `json:"profile"`
	Macros  models.MacroTargets `json:"macros"`
}

// Save validates and stores the profile. The macro targets are computed up
// front so invalid metrics never reach the database, and returned so the
// client can show them immediately.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, p SaveProfileParams) (*ProfileWithMacros, error) {
	goal, err := macros.ParseGoal(p.Goal)
	if err != nil {
		return nil, err
	}

	metrics := models.BodyMetrics{
		WeightKg: p.WeightKg,
		HeightCm: p.HeightCm,
		AgeYears: p.AgeYears,
		Sex:      models.Sex(p.Sex),
	}
	targets, err := macros.Calculate(metrics, goal)
	if err != nil {
		return nil, err
	}

	if p.TrainingDays < 1 || p.TrainingDays > 7 {
		return nil, fmt.Errorf("%w: training days must be between 1 and 7, got %d", models.ErrInvalidInput, p.TrainingDays)
	}

	prof := &models.UserProfile{
		UserID:       userID,
		WeightKg:     p.WeightKg,
		HeightCm:     p.HeightCm,
		AgeYears:     p.AgeYears,
		Sex:          metrics.Sex,
		Goal:         goal,
		TrainingDays: p.TrainingDays,
		Equipment:    models.Equipment(p.Equipment),
		WeeklyBudget: p.WeeklyBudget,
	}
	if err := s.repo.Upsert(ctx, prof); err != nil {
		return nil, err
	}

	s.logger.Info("Profile saved", "user_id", userID, "goal", goal)
	return &ProfileWithMacros{Profile: *prof, Macros: targets}, nil
}

// Get returns the profile with its recomputed macro projection.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*ProfileWithMacros, error) {
	prof, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	targets, err := macros.Calculate(models.BodyMetrics{
		WeightKg: prof.WeightKg,
		HeightCm: prof.HeightCm,
		AgeYears: prof.AgeYears,
		Sex:      prof.Sex,
	}, prof.Goal)
	if err != nil {
		// A stored profile that fails recomputation means bad data got past
		// validation at some point; surface it rather than serve zeros.
		return nil, fmt.Errorf("stored profile for user %s is inconsistent: %w", userID, err)
	}

	return &ProfileWithMacros{Profile: *prof, Macros: targets}, nil
}

// Targets returns just the macro projection for the stored profile.
func (s *Service) Targets(ctx context.Context, userID uuid.UUID) (models.MacroTargets, error) {
	pm, err := s.Get(ctx, userID)
	if err != nil {
		return models.MacroTargets{}, err
	}
	return pm.Macros, nil
}

// AddProgress records (or overwrites) the entry for one date.
func (s *Service) AddProgress(ctx context.Context, e *models.ProgressEntry) error {
	return s.repo.UpsertProgress(ctx, e)
}

// ProgressSummary is the dashboard view over recent entries.
type ProgressSummary struct {
	Entries           []models.ProgressEntry `json:"entries"`
	CompletionRate    float64                `json:"completion_rate"`
	Message           string                 `json:"message"`
	IncreaseIntensity bool                   `json:"increase_intensity"`
}

// The dashboard looks at up to four weeks of history.
const summaryWindow = 28

// Progress builds the dashboard summary. Completion rate is the share of
// recorded days with a completed workout over the window; consistency is
// counted in full 7-day blocks at 80%+.
func (s *Service) Progress(ctx context.Context, userID uuid.UUID) (*ProgressSummary, error) {
	entries, err := s.repo.ListProgress(ctx, userID, summaryWindow)
	if err != nil {
		return nil, err
	}

	rate := completionRate(entries)
	return &ProgressSummary{
		Entries:           entries,
		CompletionRate:    rate,
		Message:           MotivationalMessage(rate),
		IncreaseIntensity: ShouldIncreaseIntensity(rate, consistentWeeks(entries)),
	}, nil
}

func completionRate(entries []models.ProgressEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	completed := 0
	for _, e := range entries {
		if e.WorkoutCompleted {
			completed++
		}
	}
	return math.Round(float64(completed) / float64(len(entries)) * 100)
}

// consistentWeeks counts leading 7-entry blocks (newest first) that each
// hit at least 80% completion.
func consistentWeeks(entries []models.ProgressEntry) int {
	weeks := 0
	for start := 0; start+7 <= len(entries); start += 7 {
		if completionRate(entries[start:start+7]) < 80 {
			break
		}
		weeks++
	}
	return weeks
}
