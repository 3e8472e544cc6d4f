package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/macrofit/macrofit-api/internal/models"
	"github.com/macrofit/macrofit-api/internal/payment"
	"github.com/macrofit/macrofit-api/pkg/logger"
)

// --- Mocks ---

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockRepo) GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*models.Subscription, error) {
	args := m.Called(ctx, provider, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *mockRepo) TransitionStatus(ctx context.Context, id uuid.UUID, to models.SubscriptionStatus, from []models.SubscriptionStatus) (bool, error) {
	args := m.Called(ctx, id, to, from)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) LatestPaidByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *mockRepo) AppendLog(ctx context.Context, userID *uuid.UUID, event string, payload any) error {
	args := m.Called(ctx, userID, event, payload)
	return args.Error(0)
}

type mockPremium struct {
	mock.Mock
}

func (m *mockPremium) SetPremium(ctx context.Context, userID uuid.UUID, premium bool) error {
	args := m.Called(ctx, userID, premium)
	return args.Error(0)
}

func (m *mockPremium) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockNotifier struct {
	messages []string
}

func (m *mockNotifier) Notify(_ context.Context, message string) {
	m.messages = append(m.messages, message)
}

func newTestService(repo *mockRepo, premium *mockPremium, notifier Notifier) *Service {
	return NewService(repo, premium, nil, nil, notifier, ServiceConfig{}, logger.Nop())
}

func pendingSub(userID uuid.UUID) *models.Subscription {
	return &models.Subscription{
		ID:                uuid.New(),
		UserID:            userID,
		PlanID:            "premium_monthly",
		AmountCents:       3900,
		Provider:          "mercadopago",
		ProviderPaymentID: "12345",
		PaymentMethod:     "pix",
		Status:            models.StatusPending,
	}
}

// --- Tests ---

func TestApplyApprovedGrantsPremiumOnce(t *testing.T) {
	userID := uuid.New()
	sub := pendingSub(userID)

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "12345").Return(sub, nil)
	repo.On("TransitionStatus", mock.Anything, sub.ID, models.StatusPaid, []models.SubscriptionStatus{models.StatusPending}).Return(true, nil)
	premium.On("SetPremium", mock.Anything, userID, true).Return(nil).Once()
	repo.On("AppendLog", mock.Anything, &userID, "webhook_received", mock.Anything).Return(nil)

	outcome, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "12345", "approved", nil)
	require.NoError(t, err)

	assert.True(t, outcome.Changed)
	assert.True(t, outcome.PremiumGranted)
	assert.Equal(t, models.StatusPending, outcome.Previous)
	assert.Equal(t, models.StatusPaid, outcome.Status)

	repo.AssertExpectations(t)
	premium.AssertExpectations(t)
}

func TestApplyApprovedReplayIsNoOp(t *testing.T) {
	userID := uuid.New()
	sub := pendingSub(userID)
	sub.Status = models.StatusPaid

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "12345").Return(sub, nil)

	outcome, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "12345", "approved", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Changed)
	assert.False(t, outcome.PremiumGranted)
	assert.Equal(t, models.StatusPaid, outcome.Status)

	// No transition, no premium call, no audit row for the replay.
	repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	premium.AssertNotCalled(t, "SetPremium", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyRejectedFailsPending(t *testing.T) {
	userID := uuid.New()
	sub := pendingSub(userID)

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "12345").Return(sub, nil)
	repo.On("TransitionStatus", mock.Anything, sub.ID, models.StatusFailed, []models.SubscriptionStatus{models.StatusPending}).Return(true, nil)
	repo.On("AppendLog", mock.Anything, &userID, "webhook_received", mock.Anything).Return(nil)

	outcome, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "12345", "rejected", nil)
	require.NoError(t, err)

	assert.True(t, outcome.Changed)
	assert.Equal(t, models.StatusFailed, outcome.Status)
	premium.AssertNotCalled(t, "SetPremium", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyApprovedToFailedIsAbsorbed(t *testing.T) {
	userID := uuid.New()
	sub := pendingSub(userID)
	sub.Status = models.StatusFailed

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "12345").Return(sub, nil)

	outcome, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "12345", "approved", nil)
	require.NoError(t, err)

	assert.False(t, outcome.Changed)
	assert.Equal(t, models.StatusFailed, outcome.Status)
	premium.AssertNotCalled(t, "SetPremium", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyOrphanWebhookIsAcknowledged(t *testing.T) {
	repo := new(mockRepo)
	premium := new(mockPremium)
	notifier := &mockNotifier{}
	svc := newTestService(repo, premium, notifier)

	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "99999").Return(nil, models.ErrSubscriptionNotFound)
	repo.On("AppendLog", mock.Anything, (*uuid.UUID)(nil), "webhook_received_orphan", mock.Anything).Return(nil)

	outcome, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "99999", "approved", map[string]string{"id": "99999"})
	require.NoError(t, err)

	assert.True(t, outcome.Orphan)
	assert.Len(t, notifier.messages, 1)
	repo.AssertExpectations(t)
}

func TestApplyUnknownStatusLeavesStateUnchanged(t *testing.T) {
	userID := uuid.New()
	sub := pendingSub(userID)

	repo := new(mockRepo)
	premium := new(mockPremium)
	notifier := &mockNotifier{}
	svc := newTestService(repo, premium, notifier)

	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "12345").Return(sub, nil)
	repo.On("AppendLog", mock.Anything, &userID, "webhook_unknown_status", mock.Anything).Return(nil)

	outcome, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "12345", "under_review", nil)
	require.NoError(t, err)

	assert.True(t, outcome.UnknownStatus)
	assert.False(t, outcome.Changed)
	assert.Equal(t, models.StatusPending, outcome.Status)
	assert.Len(t, notifier.messages, 1)
	repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyLostRaceToConcurrentDelivery(t *testing.T) {
	userID := uuid.New()
	sub := pendingSub(userID)

	raced := *sub
	raced.Status = models.StatusPaid

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "12345").Return(sub, nil)
	repo.On("TransitionStatus", mock.Anything, sub.ID, models.StatusPaid, mock.Anything).Return(false, nil)
	repo.On("GetByID", mock.Anything, sub.ID).Return(&raced, nil)

	outcome, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "12345", "approved", nil)
	require.NoError(t, err)

	// The other delivery won; this one must not double-grant.
	assert.False(t, outcome.Changed)
	premium.AssertNotCalled(t, "SetPremium", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPersistenceConflictAfterRetry(t *testing.T) {
	userID := uuid.New()
	sub := pendingSub(userID)

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	// CAS keeps failing while reads keep claiming the transition is still
	// possible: give up after one retry.
	repo.On("GetByProviderPaymentID", mock.Anything, "mercadopago", "12345").Return(sub, nil)
	repo.On("TransitionStatus", mock.Anything, sub.ID, models.StatusPaid, mock.Anything).Return(false, nil).Twice()
	repo.On("GetByID", mock.Anything, sub.ID).Return(sub, nil).Twice()

	_, err := svc.ApplyProviderStatus(context.Background(), "mercadopago", "12345", "approved", nil)
	assert.True(t, errors.Is(err, models.ErrPersistenceConflict), "got %v", err)
}

func TestCreatePixPayment(t *testing.T) {
	userID := uuid.New()

	repo := new(mockRepo)
	premium := new(mockPremium)
	pix := &stubPixGateway{charge: &payment.PixCharge{
		ProviderPaymentID: "777",
		QRCode:            "qr-data",
		QRCodeBase64:      "cXItZGF0YQ==",
	}}
	svc := NewService(repo, premium, pix, nil, nil, ServiceConfig{NotificationURL: "https://app/api/webhooks/payment"}, logger.Nop())

	repo.On("Create", mock.Anything, mock.MatchedBy(func(sub *models.Subscription) bool {
		return sub.UserID == userID &&
			sub.Provider == "mercadopago" &&
			sub.ProviderPaymentID == "777" &&
			sub.Status == models.StatusPending &&
			sub.AmountCents == 3900
	})).Return(nil)
	repo.On("AppendLog", mock.Anything, &userID, "payment_created", mock.Anything).Return(nil)

	res, err := svc.CreatePixPayment(context.Background(), CreatePaymentParams{
		UserID: userID,
		Email:  "user@macrofit.com",
		Name:   "User",
		PlanID: "premium_monthly",
	})
	require.NoError(t, err)
	assert.Equal(t, "qr-data", res.Charge.QRCode)
	assert.Equal(t, int64(3900), pix.gotParams.AmountCents)
	assert.Equal(t, "https://app/api/webhooks/payment", pix.gotParams.NotificationURL)
	repo.AssertExpectations(t)
}

func TestCreateCardPaymentChargesTheSelectedPlan(t *testing.T) {
	userID := uuid.New()

	repo := new(mockRepo)
	premium := new(mockPremium)
	card := &stubCardGateway{sessionID: "cs_test_901", checkoutURL: "https://checkout.stripe.com/pay/cs_test_901"}
	svc := NewService(repo, premium, nil, card, nil, ServiceConfig{
		SuccessURL: "https://app/payment/success",
		CancelURL:  "https://app/payment/cancel",
	}, logger.Nop())

	repo.On("Create", mock.Anything, mock.MatchedBy(func(sub *models.Subscription) bool {
		return sub.UserID == userID &&
			sub.Provider == "stripe" &&
			sub.ProviderPaymentID == "cs_test_901" &&
			sub.PaymentMethod == "card" &&
			sub.Status == models.StatusPending &&
			sub.AmountCents == 39900
	})).Return(nil)
	repo.On("AppendLog", mock.Anything, &userID, "payment_created", mock.Anything).Return(nil)

	res, err := svc.CreateCardPayment(context.Background(), CreatePaymentParams{
		UserID: userID,
		Email:  "user@macrofit.com",
		Name:   "User",
		PlanID: "premium_yearly",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_901", res.CheckoutURL)

	// The checkout session is priced from the selected plan, not a fixed
	// preconfigured price.
	assert.Equal(t, int64(39900), card.gotParams.AmountCents)
	assert.Equal(t, "BRL", card.gotParams.Currency)
	assert.Equal(t, "Premium Anual", card.gotParams.ProductName)
	assert.Equal(t, userID.String(), card.gotParams.ClientReference)
	assert.Equal(t, "https://app/payment/success", card.gotParams.SuccessURL)
	repo.AssertExpectations(t)
}

func TestCreatePaymentUnknownPlan(t *testing.T) {
	svc := newTestService(new(mockRepo), new(mockPremium), nil)

	_, err := svc.CreatePixPayment(context.Background(), CreatePaymentParams{
		UserID: uuid.New(),
		PlanID: "gold_plated",
	})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestEntitlement(t *testing.T) {
	userID := uuid.New()
	paid := pendingSub(userID)
	paid.Status = models.StatusPaid

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	premium.On("IsPremium", mock.Anything, userID).Return(true, nil)
	repo.On("LatestPaidByUser", mock.Anything, userID).Return(paid, nil)

	ent, err := svc.Entitlement(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ent.IsPremium)
	assert.Equal(t, paid, ent.LatestPaidSubscription)
}

func TestEntitlementNoPaidSubscription(t *testing.T) {
	userID := uuid.New()

	repo := new(mockRepo)
	premium := new(mockPremium)
	svc := newTestService(repo, premium, nil)

	premium.On("IsPremium", mock.Anything, userID).Return(false, nil)
	repo.On("LatestPaidByUser", mock.Anything, userID).Return(nil, models.ErrNotFound)

	ent, err := svc.Entitlement(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ent.IsPremium)
	assert.Nil(t, ent.LatestPaidSubscription)
}

type stubPixGateway struct {
	charge    *payment.PixCharge
	gotParams payment.PixParams
}

func (s *stubPixGateway) CreatePix(_ context.Context, p payment.PixParams) (*payment.PixCharge, error) {
	s.gotParams = p
	return s.charge, nil
}

type stubCardGateway struct {
	sessionID   string
	checkoutURL string
	gotParams   payment.CheckoutParams
}

func (s *stubCardGateway) CreateCheckoutSession(p payment.CheckoutParams) (string, string, error) {
	s.gotParams = p
	return s.sessionID, s.checkoutURL, nil
}
