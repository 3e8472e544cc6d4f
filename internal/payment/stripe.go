package payment

import (
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/macrofit/macrofit-api/internal/models"
)

// StripeClient handles the card flow: a hosted Checkout session plus webhook
// verification. PIX goes through Mercado Pago instead.
type StripeClient struct {
	secretKey     string
	publicKey     string
	webhookSecret string
}

func NewStripeClient(cfg struct {
	SecretKey  string
	PublicKey  string
	WebhookKey string
}) *StripeClient {
	// Set the secret key for backend operations
	stripe.Key = cfg.SecretKey

	return &StripeClient{
		secretKey:     cfg.SecretKey,
		publicKey:     cfg.PublicKey,
		webhookSecret: cfg.WebhookKey,
	}
}

// CheckoutParams describes one purchase. The price is built inline from the
// plan catalog, so every plan is purchasable without a per-plan Stripe price
// object.
type CheckoutParams struct {
	ClientReference string
	ProductName     string
	AmountCents     int64
	Currency        string
	SuccessURL      string
	CancelURL       string
}

// CreateCheckoutSession returns the session ID and the hosted checkout URL.
// ClientReference ties the session back to our subscription record.
func (s *StripeClient) CreateCheckoutSession(p CheckoutParams) (string, string, error) {
	if stripe.Key != s.secretKey {
		stripe.Key = s.secretKey
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(p.Currency)),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.ClientReference),
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.ID, sess.URL, nil
}

// SessionForPaymentIntent resolves the Checkout session a charge belongs to.
// Charge and dispute events identify the payment by payment intent, while
// subscriptions are keyed by session id. Returns ErrNotFound when no session
// matches, which callers treat as an orphan rather than a transport failure.
func (s *StripeClient) SessionForPaymentIntent(paymentIntentID string) (string, error) {
	if stripe.Key != s.secretKey {
		stripe.Key = s.secretKey
	}

	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	iter := session.List(params)
	for iter.Next() {
		return iter.CheckoutSession().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to list sessions for payment intent %s: %w", paymentIntentID, err)
	}
	return "", fmt.Errorf("payment intent %s has no checkout session: %w", paymentIntentID, models.ErrNotFound)
}

// VerifyWebhookSignature validates and parses a Stripe webhook payload.
func (s *StripeClient) VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("webhook secret is not configured")
	}
	return webhook.ConstructEvent(payload, sig, s.webhookSecret)
}

// TranslateStripeEvent maps a Stripe event type onto the provider status
// vocabulary the state machine normalizes (the Mercado Pago one, which is
// the canonical wire vocabulary here). Unmapped events return ok=false and
// are acknowledged without state change.
func TranslateStripeEvent(eventType string) (providerStatus string, ok bool) {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return "approved", true
	case "checkout.session.async_payment_failed":
		return "rejected", true
	case "checkout.session.expired":
		return "cancelled", true
	case "charge.refunded":
		return "refunded", true
	case "charge.dispute.created":
		return "charged_back", true
	default:
		return "", false
	}
}
