package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v72"

	"github.com/macrofit/macrofit-api/internal/models"
	"github.com/macrofit/macrofit-api/internal/payment"
)

const maxWebhookBody = int64(64 << 10)

// PixWebhookGateway is the Mercado Pago surface the webhook route needs:
// signature verification plus the authoritative payment lookup. Webhook
// bodies only carry the payment id; the status always comes from the API.
type PixWebhookGateway interface {
	VerifyWebhookSignature(xSignature, xRequestID, dataID string) error
	SignatureEnforced() bool
	GetPayment(ctx context.Context, paymentID string) (payment.ProviderPayment, error)
}

// CardWebhookGateway verifies Stripe webhook payloads and resolves charges
// back to the Checkout session the subscription is keyed by.
type CardWebhookGateway interface {
	VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error)
	SessionForPaymentIntent(paymentIntentID string) (string, error)
}

type mercadoPagoNotification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// handlePaymentWebhook receives Mercado Pago notifications. Everything that
// is not a payment event, and every orphan or unknown status, is
// acknowledged with 200 so the provider stops retrying; only transport and
// persistence failures get a retryable status.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var notif mercadoPagoNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid notification body")
		return
	}
	if notif.Data.ID == "" {
		notif.Data.ID = r.URL.Query().Get("data.id")
	}
	if notif.Type == "" {
		notif.Type = r.URL.Query().Get("type")
	}

	if notif.Type != "payment" {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if notif.Data.ID == "" {
		respondWithError(w, http.StatusBadRequest, "missing payment id")
		return
	}

	if err := h.pix.VerifyWebhookSignature(
		r.Header.Get("x-signature"), r.Header.Get("x-request-id"), notif.Data.ID,
	); err != nil {
		h.logger.Warn("Rejected payment webhook", "error", err)
		respondWithError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}
	if !h.pix.SignatureEnforced() {
		h.logger.Warn("Payment webhook accepted without signature check; no secret configured")
	}

	providerPayment, err := h.pix.GetPayment(r.Context(), notif.Data.ID)
	if err != nil {
		// A failed lookup is retryable; the provider will redeliver.
		h.logger.Error("Payment lookup failed", "payment_id", notif.Data.ID, "error", err)
		respondWithError(w, http.StatusBadGateway, "payment lookup failed")
		return
	}

	outcome, err := h.subs.ApplyProviderStatus(
		r.Context(), "mercadopago", providerPayment.ID, providerPayment.Status, providerPayment,
	)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, outcome)
}

// handleStripeWebhook receives card events. Stripe's event vocabulary is
// translated onto the provider status vocabulary before hitting the same
// state machine as PIX.
func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event, err := h.card.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Rejected stripe webhook", "error", err)
		respondWithError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	providerStatus, ok := payment.TranslateStripeEvent(string(event.Type))
	if !ok {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var object struct {
		ID            string `json:"id"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil || object.ID == "" {
		respondWithError(w, http.StatusBadRequest, "event object has no id")
		return
	}

	// checkout.session.* events carry the session itself; charge and dispute
	// events carry a ch_/dp_ object, so the session the subscription is
	// keyed by has to be resolved through the payment intent.
	providerPaymentID := object.ID
	if strings.HasPrefix(string(event.Type), "charge.") {
		if object.PaymentIntent == "" {
			respondWithError(w, http.StatusBadRequest, "charge event has no payment intent")
			return
		}
		sessionID, err := h.card.SessionForPaymentIntent(object.PaymentIntent)
		switch {
		case err == nil:
			providerPaymentID = sessionID
		case errors.Is(err, models.ErrNotFound):
			// Not one of our checkouts; the orphan path audits and acks it.
			h.logger.Warn("Charge without checkout session", "payment_intent", object.PaymentIntent)
		default:
			h.logger.Error("Checkout session lookup failed", "payment_intent", object.PaymentIntent, "error", err)
			respondWithError(w, http.StatusBadGateway, "session lookup failed")
			return
		}
	}

	outcome, err := h.subs.ApplyProviderStatus(
		r.Context(), "stripe", providerPaymentID, providerStatus, json.RawMessage(event.Data.Raw),
	)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, outcome)
}
