package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
)

// ProviderPayment is the provider-agnostic view of a payment lookup, the
// only thing the subscription state machine consumes.
type ProviderPayment struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	StatusDetail    string  `json:"status_detail"`
	Amount          float64 `json:"amount"`
	PaymentMethodID string  `json:"payment_method_id"`
}

// PixCharge carries everything the frontend needs to render a PIX checkout.
type PixCharge struct {
	ProviderPaymentID string    `json:"provider_payment_id"`
	QRCode            string    `json:"qr_code"`
	QRCodeBase64      string    `json:"qr_code_base64"`
	TicketURL         string    `json:"ticket_url"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// PIX charges expire after 30 minutes, matching the checkout UI countdown.
const pixExpiry = 30 * time.Minute

type MercadoPagoClient struct {
	payments      mppayment.Client
	webhookSecret string
}

func NewMercadoPagoClient(accessToken, webhookSecret string) (*MercadoPagoClient, error) {
	cfg, err := mpconfig.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mercado pago client: %w", err)
	}
	return &MercadoPagoClient{
		payments:      mppayment.NewClient(cfg),
		webhookSecret: webhookSecret,
	}, nil
}

type PixParams struct {
	AmountCents       int64
	Description       string
	PayerEmail        string
	PayerFirstName    string
	ExternalReference string
	NotificationURL   string
}

// CreatePix creates a PIX payment and returns the QR code material.
func (c *MercadoPagoClient) CreatePix(ctx context.Context, p PixParams) (*PixCharge, error) {
	resp, err := c.payments.Create(ctx, mppayment.Request{
		TransactionAmount: float64(p.AmountCents) / 100,
		Description:       p.Description,
		PaymentMethodID:   "pix",
		Payer: &mppayment.PayerRequest{
			Email:     p.PayerEmail,
			FirstName: p.PayerFirstName,
		},
		ExternalReference: p.ExternalReference,
		NotificationURL:   p.NotificationURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pix payment: %w", err)
	}

	return &PixCharge{
		ProviderPaymentID: strconv.Itoa(resp.ID),
		QRCode:            resp.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:      resp.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:         resp.PointOfInteraction.TransactionData.TicketURL,
		ExpiresAt:         time.Now().Add(pixExpiry),
	}, nil
}

// GetPayment looks up a payment by the id reported in a webhook.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (ProviderPayment, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return ProviderPayment{}, fmt.Errorf("invalid mercado pago payment id %q: %w", paymentID, err)
	}

	resp, err := c.payments.Get(ctx, id)
	if err != nil {
		return ProviderPayment{}, fmt.Errorf("failed to fetch payment %d: %w", id, err)
	}

	return ProviderPayment{
		ID:              strconv.Itoa(resp.ID),
		Status:          resp.Status,
		StatusDetail:    resp.StatusDetail,
		Amount:          resp.TransactionAmount,
		PaymentMethodID: resp.PaymentMethodID,
	}, nil
}

// VerifyWebhookSignature checks the x-signature header against the keyed
// manifest Mercado Pago documents: "id:<data.id>;request-id:<x-request-id>;
// ts:<ts>;" signed with HMAC-SHA256. An empty configured secret skips the
// check so local development without a secret still works; callers log that
// case.
func (c *MercadoPagoClient) VerifyWebhookSignature(xSignature, xRequestID, dataID string) error {
	if c.webhookSecret == "" {
		return nil
	}
	return verifySignature(c.webhookSecret, xSignature, xRequestID, dataID)
}

// SignatureEnforced reports whether a webhook secret is configured.
func (c *MercadoPagoClient) SignatureEnforced() bool {
	return c.webhookSecret != ""
}

func verifySignature(secret, xSignature, xRequestID, dataID string) error {
	if xSignature == "" || xRequestID == "" {
		return fmt.Errorf("missing webhook signature headers")
	}

	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("malformed x-signature header")
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), xRequestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return fmt.Errorf("webhook signature mismatch")
	}
	return nil
}
