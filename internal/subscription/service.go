package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/macrofit/macrofit-api/internal/models"
	"github.com/macrofit/macrofit-api/internal/payment"
	"github.com/macrofit/macrofit-api/pkg/logger"
)

// PixGateway creates PIX charges (Mercado Pago).
type PixGateway interface {
	CreatePix(ctx context.Context, p payment.PixParams) (*payment.PixCharge, error)
}

// CardGateway creates hosted card checkout sessions (Stripe).
type CardGateway interface {
	CreateCheckoutSession(p payment.CheckoutParams) (sessionID, checkoutURL string, err error)
}

// PremiumStore reads and writes the premium entitlement flag on the user
// profile. Implemented by the profile repository.
type PremiumStore interface {
	SetPremium(ctx context.Context, userID uuid.UUID, premium bool) error
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Notifier delivers ops alerts for events that need manual review. A nil
// Notifier is valid and means no alerts.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type Service struct {
	repo     Repository
	premium  PremiumStore
	pix      PixGateway
	card     CardGateway
	notifier Notifier
	logger   *logger.Logger

	notificationURL string
	successURL      string
	cancelURL       string
}

type ServiceConfig struct {
	NotificationURL string
	SuccessURL      string
	CancelURL       string
}

func NewService(repo Repository, premium PremiumStore, pix PixGateway, card CardGateway, notifier Notifier, cfg ServiceConfig, l *logger.Logger) *Service {
	return &Service{
		repo:            repo,
		premium:         premium,
		pix:             pix,
		card:            card,
		notifier:        notifier,
		logger:          l,
		notificationURL: cfg.NotificationURL,
		successURL:      cfg.SuccessURL,
		cancelURL:       cfg.CancelURL,
	}
}

// CreatePaymentParams identifies the buyer and the plan.
type CreatePaymentParams struct {
	UserID uuid.UUID
	Email  string
	Name   string
	PlanID string
}

// PixPaymentResult is what the checkout UI needs to render a PIX charge.
type PixPaymentResult struct {
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	Charge         *payment.PixCharge `json:"charge"`
}

// CardPaymentResult carries the hosted checkout redirect.
type CardPaymentResult struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CheckoutURL    string    `json:"checkout_url"`
}

// CreatePixPayment creates a Mercado Pago PIX charge and the matching
// pending subscription record.
func (s *Service) CreatePixPayment(ctx context.Context, p CreatePaymentParams) (*PixPaymentResult, error) {
	plan, err := PlanByID(p.PlanID)
	if err != nil {
		return nil, err
	}

	charge, err := s.pix.CreatePix(ctx, payment.PixParams{
		AmountCents:       plan.AmountCents,
		Description:       plan.Description,
		PayerEmail:        p.Email,
		PayerFirstName:    p.Name,
		ExternalReference: fmt.Sprintf("%s-%s", p.UserID, plan.ID),
		NotificationURL:   s.notificationURL,
	})
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:            p.UserID,
		PlanID:            plan.ID,
		AmountCents:       plan.AmountCents,
		Provider:          "mercadopago",
		ProviderPaymentID: charge.ProviderPaymentID,
		PaymentMethod:     "pix",
		Status:            models.StatusPending,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.repo.AppendLog(ctx, &p.UserID, "payment_created", charge); err != nil {
		s.logger.Error("Failed to append payment_created log", "error", err)
	}

	return &PixPaymentResult{SubscriptionID: sub.ID, Charge: charge}, nil
}

// CreateCardPayment creates a Stripe Checkout session and the matching
// pending subscription record, keyed by the session id.
func (s *Service) CreateCardPayment(ctx context.Context, p CreatePaymentParams) (*CardPaymentResult, error) {
	plan, err := PlanByID(p.PlanID)
	if err != nil {
		return nil, err
	}

	sessionID, checkoutURL, err := s.card.CreateCheckoutSession(payment.CheckoutParams{
		ClientReference: p.UserID.String(),
		ProductName:     plan.Name,
		AmountCents:     plan.AmountCents,
		Currency:        plan.Currency,
		SuccessURL:      s.successURL,
		CancelURL:       s.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:            p.UserID,
		PlanID:            plan.ID,
		AmountCents:       plan.AmountCents,
		Provider:          "stripe",
		ProviderPaymentID: sessionID,
		PaymentMethod:     "card",
		Status:            models.StatusPending,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.repo.AppendLog(ctx, &p.UserID, "payment_created", map[string]string{
		"session_id":   sessionID,
		"checkout_url": checkoutURL,
	}); err != nil {
		s.logger.Error("Failed to append payment_created log", "error", err)
	}

	return &CardPaymentResult{SubscriptionID: sub.ID, CheckoutURL: checkoutURL}, nil
}

// Outcome describes what a webhook application did.
type Outcome struct {
	SubscriptionID uuid.UUID                 `json:"subscription_id,omitempty"`
	UserID         uuid.UUID                 `json:"user_id,omitempty"`
	Previous       models.SubscriptionStatus `json:"previous,omitempty"`
	Status         models.SubscriptionStatus `json:"status,omitempty"`
	Changed        bool                      `json:"changed"`
	PremiumGranted bool                      `json:"premium_granted"`
	Orphan         bool                      `json:"orphan"`
	UnknownStatus  bool                      `json:"unknown_status"`
}

// ApplyProviderStatus runs the payment state machine for one provider
// event. Orphan events and unknown statuses are absorbed (audited, ops
// notified) rather than surfaced: the webhook sender only wants an ack.
// Replays are no-ops; the premium grant rides exclusively on the winning
// compare-and-set into paid, so two concurrent deliveries grant it once.
func (s *Service) ApplyProviderStatus(ctx context.Context, provider, providerPaymentID, providerStatus string, rawPayload any) (*Outcome, error) {
	sub, err := s.repo.GetByProviderPaymentID(ctx, provider, providerPaymentID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			s.logger.Warn("Orphan payment webhook", "provider", provider, "payment_id", providerPaymentID)
			if logErr := s.repo.AppendLog(ctx, nil, "webhook_received_orphan", rawPayload); logErr != nil {
				s.logger.Error("Failed to log orphan webhook", "error", logErr)
			}
			s.notify(ctx, fmt.Sprintf("Orphan payment webhook: provider=%s payment_id=%s", provider, providerPaymentID))
			return &Outcome{Orphan: true}, nil
		}
		return nil, err
	}

	newStatus, err := NormalizeProviderStatus(providerStatus)
	if err != nil {
		// ErrUnknownProviderStatus is absorbed: the sender wants an ack and
		// the event is preserved for manual review.
		s.logger.Warn("Unknown provider status", "provider", provider, "payment_id", providerPaymentID, "error", err)
		if logErr := s.repo.AppendLog(ctx, &sub.UserID, "webhook_unknown_status", map[string]any{
			"provider_status": providerStatus,
			"error":           err.Error(),
			"payload":         rawPayload,
		}); logErr != nil {
			s.logger.Error("Failed to log unknown status", "error", logErr)
		}
		s.notify(ctx, fmt.Sprintf("Unknown provider status %q for subscription %s", providerStatus, sub.ID))
		return &Outcome{SubscriptionID: sub.ID, UserID: sub.UserID, Previous: sub.Status, Status: sub.Status, UnknownStatus: true}, nil
	}

	outcome := &Outcome{SubscriptionID: sub.ID, UserID: sub.UserID, Previous: sub.Status, Status: newStatus}

	// Replay of the current state, or an event a terminal state absorbs:
	// nothing to do, and no audit row that would look like a state change.
	if sub.Status == newStatus || !canTransition(sub.Status, newStatus) {
		outcome.Status = sub.Status
		s.logger.Info("Subscription status unchanged",
			"subscription_id", sub.ID, "status", sub.Status, "provider_status", providerStatus)
		return outcome, nil
	}

	changed, err := s.transitionWithRetry(ctx, sub.ID, newStatus)
	if err != nil {
		return nil, err
	}
	if !changed {
		// A concurrent delivery already applied this transition.
		outcome.Status = newStatus
		return outcome, nil
	}

	outcome.Changed = true

	if newStatus == models.StatusPaid {
		if err := s.premium.SetPremium(ctx, sub.UserID, true); err != nil {
			// Entitlement must not silently lag behind a paid subscription.
			return nil, fmt.Errorf("subscription %s paid but premium grant failed: %w", sub.ID, err)
		}
		outcome.PremiumGranted = true
		s.logger.Info("Premium granted", "user_id", sub.UserID, "subscription_id", sub.ID)
	}

	if newStatus == models.StatusRefunded {
		// Entitlement is intentionally not revoked on refund; surface it for
		// manual review instead.
		s.notify(ctx, fmt.Sprintf("Subscription %s refunded; premium left in place for user %s", sub.ID, sub.UserID))
	}

	if err := s.repo.AppendLog(ctx, &sub.UserID, "webhook_received", map[string]any{
		"provider_status": providerStatus,
		"new_status":      newStatus,
		"payload":         rawPayload,
	}); err != nil {
		s.logger.Error("Failed to append webhook log", "error", err)
	}

	return outcome, nil
}

// transitionWithRetry runs the conditional update, retrying once on a lost
// race before giving up with ErrPersistenceConflict. Returns false without
// error when the target state is already in place.
func (s *Service) transitionWithRetry(ctx context.Context, id uuid.UUID, to models.SubscriptionStatus) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		updated, err := s.repo.TransitionStatus(ctx, id, to, validPredecessors[to])
		if err != nil {
			return false, err
		}
		if updated {
			return true, nil
		}

		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		if current.Status == to {
			return false, nil
		}
		if !canTransition(current.Status, to) {
			// Another event moved the record somewhere this transition no
			// longer applies from.
			return false, nil
		}
	}
	return false, fmt.Errorf("transition of subscription %s to %s: %w", id, to, models.ErrPersistenceConflict)
}

// Entitlement is the answer to "may this user see premium content".
type Entitlement struct {
	IsPremium              bool                 `json:"is_premium"`
	LatestPaidSubscription *models.Subscription `json:"subscription,omitempty"`
}

// Entitlement returns the premium flag plus the most recent paid
// subscription backing it.
func (s *Service) Entitlement(ctx context.Context, userID uuid.UUID) (*Entitlement, error) {
	isPremium, err := s.premium.IsPremium(ctx, userID)
	if err != nil {
		return nil, err
	}

	latest, err := s.repo.LatestPaidByUser(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	return &Entitlement{IsPremium: isPremium, LatestPaidSubscription: latest}, nil
}

func (s *Service) notify(ctx context.Context, message string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, message)
	}
}
