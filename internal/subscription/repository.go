package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/macrofit/macrofit-api/internal/db"
	"github.com/macrofit/macrofit-api/internal/models"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository persists subscriptions and the append-only payment audit log.
type Repository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*models.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	// TransitionStatus performs the compare-and-set update: the row moves to
	// `to` only if its current status is in `from`. Returns false when the
	// condition did not hold (someone else won the race or the transition is
	// stale).
	TransitionStatus(ctx context.Context, id uuid.UUID, to models.SubscriptionStatus, from []models.SubscriptionStatus) (bool, error)
	LatestPaidByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	AppendLog(ctx context.Context, userID *uuid.UUID, event string, payload any) error
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_id, amount_cents, provider, provider_payment_id,
       payment_method, status, created_at, updated_at, paid_at`

func (r *PostgresRepository) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
        INSERT INTO subscriptions (user_id, plan_id, amount_cents, provider, provider_payment_id, payment_method, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `

	err := r.pool.QueryRow(ctx, query,
		sub.UserID, sub.PlanID, sub.AmountCents, sub.Provider,
		sub.ProviderPaymentID, sub.PaymentMethod, sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*models.Subscription, error) {
	query := `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE provider = $1 AND provider_payment_id = $2
    `

	sub, err := scanSubscription(r.pool.QueryRow(ctx, query, provider, providerPaymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription by provider payment id: %w", err)
	}
	return sub, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	query := `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE id = $1
    `

	sub, err := scanSubscription(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription by id: %w", err)
	}
	return sub, nil
}

func (r *PostgresRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to models.SubscriptionStatus, from []models.SubscriptionStatus) (bool, error) {
	query := `
        UPDATE subscriptions
        SET status = $2,
            updated_at = NOW(),
            paid_at = CASE WHEN $2 = 'paid' THEN NOW() ELSE paid_at END
        WHERE id = $1 AND status = ANY($3)
    `

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, query, id, to, fromStrs)
	if err != nil {
		return false, fmt.Errorf("failed to transition subscription status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) LatestPaidByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	query := `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1 AND status = 'paid'
        ORDER BY created_at DESC
        LIMIT 1
    `

	sub, err := scanSubscription(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest paid subscription: %w", err)
	}
	return sub, nil
}

func (r *PostgresRepository) AppendLog(ctx context.Context, userID *uuid.UUID, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}

	query := `
        INSERT INTO payment_logs (user_id, event, payload)
        VALUES ($1, $2, $3)
    `

	if _, err := r.pool.Exec(ctx, query, userID, event, raw); err != nil {
		return fmt.Errorf("failed to append payment log: %w", err)
	}
	return nil
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.AmountCents, &sub.Provider,
		&sub.ProviderPaymentID, &sub.PaymentMethod, &sub.Status,
		&sub.CreatedAt, &sub.UpdatedAt, &sub.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
