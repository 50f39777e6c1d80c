package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrGatewayRequestFailed     = errors.New("payment gateway request failed")
	ErrGatewayResponseMalformed = errors.New("payment gateway response malformed")
)

// maxResponseBody caps how much of a gateway response is read.
const maxResponseBody = 1 << 20

// Config holds the gateway credentials. It is passed to NewClient and never
// read from the environment by this package.
type Config struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string
	Timeout     time.Duration
	Provider    string
}

// RequestError describes a non-2xx answer from the gateway.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrGatewayRequestFailed, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return ErrGatewayRequestFailed
}

// Client calls the payment gateway over HTTP.
type Client struct {
	cfg   Config
	http  *http.Client
	codes *OrderCodeGenerator
}

// NewClient creates a gateway client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, codes *OrderCodeGenerator, httpClient *http.Client) (*Client, error) {
	if cfg.ClientID == "" || cfg.APIKey == "" || cfg.ChecksumKey == "" {
		return nil, errors.New("payment gateway client id, api key and checksum key are required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("payment gateway base url is required")
	}
	if codes == nil {
		return nil, errors.New("order code generator is required")
	}
	if cfg.Provider == "" {
		cfg.Provider = "gateway"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: httpClient, codes: codes}, nil
}

type linkResponse struct {
	Code string      `json:"code"`
	Desc string      `json:"desc"`
	Data *LinkResult `json:"data"`
}

// CreatePaymentLink signs and submits a payment-link request.
func (c *Client) CreatePaymentLink(ctx context.Context, amount int64, description, returnURL, cancelURL string) (*LinkResult, error) {
	req := LinkRequest{
		OrderCode:   c.codes.Next(),
		Amount:      amount,
		Description: description,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	}

	canonical, err := req.CanonicalString()
	if err != nil {
		return nil, err
	}
	req.Signature, err = Sign(canonical, c.cfg.ChecksumKey)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.cfg.ClientID)
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", ErrGatewayRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed linkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayResponseMalformed, err)
	}
	if parsed.Data == nil || parsed.Data.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: missing data.checkoutUrl (code=%s desc=%s)", ErrGatewayResponseMalformed, parsed.Code, parsed.Desc)
	}

	result := *parsed.Data
	if result.OrderCode == 0 {
		result.OrderCode = req.OrderCode
	}
	if result.Amount == 0 {
		result.Amount = req.Amount
	}
	return &result, nil
}

// VerifyWebhook checks a webhook signature with the checksum key.
func (c *Client) VerifyWebhook(data WebhookData, signature string) bool {
	return verifyWebhook(data, signature, c.cfg.ChecksumKey)
}

func (c *Client) Name() string {
	return c.cfg.Provider
}
