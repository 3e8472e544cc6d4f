package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v72"

	"github.com/macrofit/macrofit-api/internal/auth"
	"github.com/macrofit/macrofit-api/internal/models"
	"github.com/macrofit/macrofit-api/internal/payment"
	"github.com/macrofit/macrofit-api/internal/subscription"
	"github.com/macrofit/macrofit-api/pkg/logger"
)

// fakeSubRepo is an in-memory subscription store keyed by provider payment
// id, just enough to drive the webhook routes end to end.
type fakeSubRepo struct {
	subs map[string]*models.Subscription
	logs []string
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: map[string]*models.Subscription{}}
}

func (f *fakeSubRepo) Create(ctx context.Context, sub *models.Subscription) error {
	sub.ID = uuid.New()
	f.subs[sub.Provider+":"+sub.ProviderPaymentID] = sub
	return nil
}

func (f *fakeSubRepo) GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*models.Subscription, error) {
	sub, ok := f.subs[provider+":"+providerPaymentID]
	if !ok {
		return nil, models.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	for _, sub := range f.subs {
		if sub.ID == id {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeSubRepo) TransitionStatus(ctx context.Context, id uuid.UUID, to models.SubscriptionStatus, from []models.SubscriptionStatus) (bool, error) {
	for _, sub := range f.subs {
		if sub.ID != id {
			continue
		}
		for _, s := range from {
			if sub.Status == s {
				sub.Status = to
				return true, nil
			}
		}
		return false, nil
	}
	return false, models.ErrSubscriptionNotFound
}

func (f *fakeSubRepo) LatestPaidByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return nil, models.ErrNotFound
}

func (f *fakeSubRepo) AppendLog(ctx context.Context, userID *uuid.UUID, event string, payload any) error {
	f.logs = append(f.logs, event)
	return nil
}

type fakePremium struct {
	granted map[uuid.UUID]bool
}

func (f *fakePremium) SetPremium(ctx context.Context, userID uuid.UUID, premium bool) error {
	if f.granted == nil {
		f.granted = map[uuid.UUID]bool{}
	}
	f.granted[userID] = premium
	return nil
}

func (f *fakePremium) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	return f.granted[userID], nil
}

type fakePixGateway struct {
	signatureErr error
	enforced     bool
	payments     map[string]payment.ProviderPayment
}

func (f *fakePixGateway) VerifyWebhookSignature(xSignature, xRequestID, dataID string) error {
	return f.signatureErr
}

func (f *fakePixGateway) SignatureEnforced() bool { return f.enforced }

func (f *fakePixGateway) GetPayment(ctx context.Context, paymentID string) (payment.ProviderPayment, error) {
	p, ok := f.payments[paymentID]
	if !ok {
		return payment.ProviderPayment{}, fmt.Errorf("payment %s not found", paymentID)
	}
	return p, nil
}

type fakeCardGateway struct {
	event stripe.Event
	err   error
	// payment intent id -> checkout session id
	sessions   map[string]string
	sessionErr error
}

func (f *fakeCardGateway) VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error) {
	return f.event, f.err
}

func (f *fakeCardGateway) SessionForPaymentIntent(paymentIntentID string) (string, error) {
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	sessionID, ok := f.sessions[paymentIntentID]
	if !ok {
		return "", fmt.Errorf("payment intent %s has no checkout session: %w", paymentIntentID, models.ErrNotFound)
	}
	return sessionID, nil
}

type webhookFixture struct {
	handler *Handler
	repo    *fakeSubRepo
	premium *fakePremium
	pix     *fakePixGateway
	card    *fakeCardGateway
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	repo := newFakeSubRepo()
	premium := &fakePremium{}
	pix := &fakePixGateway{enforced: true, payments: map[string]payment.ProviderPayment{}}
	card := &fakeCardGateway{}

	subs := subscription.NewService(repo, premium, nil, nil, nil, subscription.ServiceConfig{}, logger.Nop())

	h := NewHandler(HandlerDeps{
		Auth:   auth.NewService(nil, "test-secret", time.Hour, logger.Nop()),
		Subs:   subs,
		Pix:    pix,
		Card:   card,
		Logger: logger.Nop(),
	})
	return &webhookFixture{handler: h, repo: repo, premium: premium, pix: pix, card: card}
}

func (f *webhookFixture) seedPending(provider, providerPaymentID string) *models.Subscription {
	sub := &models.Subscription{
		UserID:            uuid.New(),
		PlanID:            "premium_monthly",
		AmountCents:       3900,
		Provider:          provider,
		ProviderPaymentID: providerPaymentID,
		PaymentMethod:     "pix",
		Status:            models.StatusPending,
	}
	f.repo.Create(context.Background(), sub)
	return sub
}

func postWebhook(t *testing.T, h *Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhookIgnoresNonPaymentEvents(t *testing.T) {
	f := newWebhookFixture(t)

	rec := postWebhook(t, f.handler, "/webhooks/payment", map[string]any{
		"type": "plan", "data": map[string]string{"id": "123"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	f.pix.signatureErr = fmt.Errorf("webhook signature mismatch")

	rec := postWebhook(t, f.handler, "/webhooks/payment", map[string]any{
		"type": "payment", "data": map[string]string{"id": "123"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentWebhookApprovedGrantsPremium(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedPending("mercadopago", "555001")
	f.pix.payments["555001"] = payment.ProviderPayment{
		ID: "555001", Status: "approved", Amount: 39, PaymentMethodID: "pix",
	}

	rec := postWebhook(t, f.handler, "/webhooks/payment", map[string]any{
		"type": "payment", "data": map[string]string{"id": "555001"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome subscription.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Changed)
	assert.True(t, outcome.PremiumGranted)
	assert.True(t, f.premium.granted[sub.UserID])

	// Redelivery is a no-op and still a 200.
	rec = postWebhook(t, f.handler, "/webhooks/payment", map[string]any{
		"type": "payment", "data": map[string]string{"id": "555001"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.False(t, outcome.Changed)
}

func TestPaymentWebhookOrphanIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	f.pix.payments["999999"] = payment.ProviderPayment{ID: "999999", Status: "approved"}

	rec := postWebhook(t, f.handler, "/webhooks/payment", map[string]any{
		"type": "payment", "data": map[string]string{"id": "999999"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome subscription.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Orphan)
	assert.Contains(t, f.repo.logs, "webhook_received_orphan")
}

func TestPaymentWebhookLookupFailureIsRetryable(t *testing.T) {
	f := newWebhookFixture(t)

	rec := postWebhook(t, f.handler, "/webhooks/payment", map[string]any{
		"type": "payment", "data": map[string]string{"id": "404404"},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStripeWebhookCompletedSession(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedPending("stripe", "cs_test_123")
	f.card.event = stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": "cs_test_123"}`)},
	}

	rec := postWebhook(t, f.handler, "/webhooks/stripe", map[string]string{"ignored": "body"})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome subscription.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.PremiumGranted)
	assert.True(t, f.premium.granted[sub.UserID])
}

func TestStripeWebhookChargeRefundResolvesSession(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedPending("stripe", "cs_test_123")
	sub.Status = models.StatusPaid

	// Refund events carry the charge object, not the session the
	// subscription is keyed by.
	f.card.sessions = map[string]string{"pi_3abc": "cs_test_123"}
	f.card.event = stripe.Event{
		Type: "charge.refunded",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": "ch_3abc", "payment_intent": "pi_3abc", "refunded": true}`)},
	}

	rec := postWebhook(t, f.handler, "/webhooks/stripe", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome subscription.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Changed)
	assert.False(t, outcome.Orphan)
	assert.Equal(t, models.StatusRefunded, outcome.Status)
	assert.Equal(t, sub.ID, outcome.SubscriptionID)

	stored, err := f.repo.GetByProviderPaymentID(context.Background(), "stripe", "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, stored.Status)
}

func TestStripeWebhookChargeWithoutSessionIsOrphan(t *testing.T) {
	f := newWebhookFixture(t)
	f.card.sessions = map[string]string{}
	f.card.event = stripe.Event{
		Type: "charge.refunded",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": "ch_other", "payment_intent": "pi_other"}`)},
	}

	rec := postWebhook(t, f.handler, "/webhooks/stripe", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome subscription.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Orphan)
}

func TestStripeWebhookSessionLookupFailureIsRetryable(t *testing.T) {
	f := newWebhookFixture(t)
	f.card.sessionErr = fmt.Errorf("stripe api unavailable")
	f.card.event = stripe.Event{
		Type: "charge.refunded",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": "ch_3abc", "payment_intent": "pi_3abc"}`)},
	}

	rec := postWebhook(t, f.handler, "/webhooks/stripe", map[string]string{})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStripeWebhookUnmappedEventIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	f.card.event = stripe.Event{
		Type: "payment_intent.created",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": "pi_123"}`)},
	}

	rec := postWebhook(t, f.handler, "/webhooks/stripe", map[string]string{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestStripeWebhookBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	f.card.err = fmt.Errorf("signature verification failed")

	rec := postWebhook(t, f.handler, "/webhooks/stripe", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	rec := httptest.NewRecorder()
	f.handler.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidInput, http.StatusBadRequest},
		{models.ErrUnauthenticated, http.StatusUnauthorized},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrSubscriptionNotFound, http.StatusNotFound},
		{models.ErrConflict, http.StatusConflict},
		{models.ErrPersistenceConflict, http.StatusConflict},
		{models.ErrMalformedResponse, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFromError(fmt.Errorf("wrapped: %w", tc.err)))
	}
}
