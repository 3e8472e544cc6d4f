package models

import (
	"time"

	"github.com/google/uuid"
)

// Sex is the biological sex used by the Harris-Benedict equation.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Goal is the canonical training goal. Legacy Portuguese vocabularies from
// older clients are translated at the boundary, see macros.ParseGoal.
type Goal string

const (
	GoalHypertrophy Goal = "hypertrophy"
	GoalDefinition  Goal = "definition"
	GoalFatLoss     Goal = "fat_loss"
)

// Equipment describes what the user can train with.
type Equipment string

const (
	EquipmentGym        Equipment = "gym"
	EquipmentHome       Equipment = "home"
	EquipmentBands      Equipment = "bands"
	EquipmentBodyweight Equipment = "bodyweight"
)

// BodyMetrics is the immutable input of a macro calculation.
type BodyMetrics struct {
	WeightKg float64 `json:"weight_kg"`
	HeightCm float64 `json:"height_cm"`
	AgeYears int     `json:"age_years"`
	Sex      Sex     `json:"sex"`
}

// MacroTargets is a recomputable projection, never persisted as
// authoritative state.
type MacroTargets struct {
	Calories int `json:"calories"`
	ProteinG int `json:"protein_g"`
	CarbsG   int `json:"carbs_g"`
	FatsG    int `json:"fats_g"`
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserProfile struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	WeightKg     float64   `json:"weight_kg"`
	HeightCm     float64   `json:"height_cm"`
	AgeYears     int       `json:"age_years"`
	Sex          Sex       `json:"sex"`
	Goal         Goal      `json:"goal"`
	TrainingDays int       `json:"training_days"`
	Equipment    Equipment `json:"equipment"`
	WeeklyBudget float64   `json:"weekly_budget"`
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SubscriptionStatus is the internal payment lifecycle state. Transitions
// are driven exclusively by subscription.Service.ApplyProviderStatus.
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusPaid      SubscriptionStatus = "paid"
	StatusFailed    SubscriptionStatus = "failed"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusRefunded  SubscriptionStatus = "refunded"
)

type Subscription struct {
	ID                uuid.UUID          `json:"id"`
	UserID            uuid.UUID          `json:"user_id"`
	PlanID            string             `json:"plan_id"`
	AmountCents       int64              `json:"amount_cents"`
	Provider          string             `json:"provider"`
	ProviderPaymentID string             `json:"provider_payment_id"`
	PaymentMethod     string             `json:"payment_method"`
	Status            SubscriptionStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	PaidAt            *time.Time         `json:"paid_at,omitempty"`
}

// PaymentLog is an append-only audit record for payment events.
type PaymentLog struct {
	ID        int64      `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Event     string     `json:"event"`
	Payload   []byte     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
}

type MealPlanDay struct {
	ID       int64     `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Day      int       `json:"day"`
	MealName string    `json:"meal_name"`
	Foods    string    `json:"foods"`
	ProteinG int       `json:"protein_g"`
	CarbsG   int       `json:"carbs_g"`
	FatsG    int       `json:"fats_g"`
	Calories int       `json:"calories"`
}

type WorkoutPlanDay struct {
	ID           int64     `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Day          int       `json:"day"`
	ExerciseName string    `json:"exercise_name"`
	Sets         int       `json:"sets"`
	Reps         string    `json:"reps"`
	RestSeconds  int       `json:"rest_seconds"`
	Notes        string    `json:"notes"`
}

type ProgressEntry struct {
	ID               int64     `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Date             time.Time `json:"date"`
	WeightKg         float64   `json:"weight_kg"`
	WorkoutCompleted bool      `json:"workout_completed"`
	ProteinIntakeG   int       `json:"protein_intake_g"`
	CarbsIntakeG     int       `json:"carbs_intake_g"`
	FatsIntakeG      int       `json:"fats_intake_g"`
	Notes            string    `json:"notes"`
}
