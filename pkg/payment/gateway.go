package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Gateway defines the interface for payment providers.
type Gateway interface {
	// CreatePaymentLink requests a checkout link for the given amount.
	CreatePaymentLink(ctx context.Context, amount int64, description, returnURL, cancelURL string) (*LinkResult, error)
	// VerifyWebhook checks the signature attached to a webhook delivery.
	VerifyWebhook(data WebhookData, signature string) bool
	// Name identifies the provider; it is recorded as the payment method.
	Name() string
}

// Gateway-reported link statuses.
const (
	LinkStatusPending   = "PENDING"
	LinkStatusPaid      = "PAID"
	LinkStatusCancelled = "CANCELLED"
)

// LinkRequest is the body of an outbound payment-link request.
type LinkRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

// CanonicalString builds the string the request signature covers. Field
// order is fixed by the gateway: amount, cancelUrl, description, orderCode,
// returnUrl.
func (r *LinkRequest) CanonicalString() (string, error) {
	return CanonicalString(
		Field{Key: "amount", Value: strconv.FormatInt(r.Amount, 10)},
		Field{Key: "cancelUrl", Value: r.CancelURL},
		Field{Key: "description", Value: r.Description},
		Field{Key: "orderCode", Value: strconv.FormatInt(r.OrderCode, 10)},
		Field{Key: "returnUrl", Value: r.ReturnURL},
	)
}

// LinkResult is what the gateway returned for a created link.
type LinkResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	QRCode      string `json:"qrCode"`
	Status      string `json:"status"`
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
}

// WebhookPayload is the envelope the gateway posts to the webhook endpoint.
type WebhookPayload struct {
	Data      WebhookData `json:"data" validate:"required"`
	Signature string      `json:"signature" validate:"required"`
}

// WebhookData reports the outcome of a payment.
type WebhookData struct {
	OrderCode           int64  `json:"orderCode" validate:"required"`
	Amount              int64  `json:"amount"`
	Description         string `json:"description"`
	TransactionDateTime string `json:"transactionDateTime"`
	Reference           string `json:"reference"`
	Status              string `json:"status" validate:"required"`
	PaymentMethod       string `json:"paymentMethod,omitempty"`
}

// CanonicalString builds the string the webhook signature covers, fields in
// ascending key order.
func (d *WebhookData) CanonicalString() (string, error) {
	return CanonicalString(
		Field{Key: "amount", Value: strconv.FormatInt(d.Amount, 10)},
		Field{Key: "description", Value: d.Description},
		Field{Key: "orderCode", Value: strconv.FormatInt(d.OrderCode, 10)},
		Field{Key: "reference", Value: d.Reference},
		Field{Key: "status", Value: d.Status},
		Field{Key: "transactionDateTime", Value: d.TransactionDateTime},
	)
}

// TransactionTime parses TransactionDateTime. The gateway sends RFC 3339 or
// "2006-01-02 15:04:05" in the given location.
func (d *WebhookData) TransactionTime(loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, d.TransactionDateTime); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateTime, d.TransactionDateTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid transactionDateTime %q: %w", d.TransactionDateTime, err)
	}
	return t, nil
}

// SignWebhook computes the signature a gateway would attach to data.
func SignWebhook(data WebhookData, checksumKey string) (string, error) {
	canonical, err := data.CanonicalString()
	if err != nil {
		return "", err
	}
	return Sign(canonical, checksumKey)
}

func verifyWebhook(data WebhookData, signature, checksumKey string) bool {
	canonical, err := data.CanonicalString()
	if err != nil {
		return false
	}
	ok, err := Verify(canonical, signature, checksumKey)
	return err == nil && ok
}

// MockGateway issues local checkout links without calling a provider. It
// signs and verifies like the real client, so webhooks can be replayed
// against it in development.
type MockGateway struct {
	checksumKey string
	baseURL     string
	codes       *OrderCodeGenerator
}

func NewMockGateway(checksumKey, baseURL string, codes *OrderCodeGenerator) *MockGateway {
	return &MockGateway{checksumKey: checksumKey, baseURL: baseURL, codes: codes}
}

func (g *MockGateway) CreatePaymentLink(ctx context.Context, amount int64, description, returnURL, cancelURL string) (*LinkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code := g.codes.Next()
	return &LinkResult{
		CheckoutURL: fmt.Sprintf("%s/pay/%d", g.baseURL, code),
		QRCode:      fmt.Sprintf("MOCK|%d|%d", code, amount),
		Status:      LinkStatusPending,
		OrderCode:   code,
		Amount:      amount,
	}, nil
}

func (g *MockGateway) VerifyWebhook(data WebhookData, signature string) bool {
	return verifyWebhook(data, signature, g.checksumKey)
}

func (g *MockGateway) Name() string {
	return "mock"
}
