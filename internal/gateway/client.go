// Package gateway is the HTTP client for the card payment gateway.
package gateway

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

	"github.com/shopspring/decimal"

	"github.com/0gfoundation/0g-storefront/internal/metrics"
	"github.com/0gfoundation/0g-storefront/internal/payment"
)

// PaymentPath is the card payment endpoint relative to the base URL.
const PaymentPath = "/payment/auth"

const statusSuccess = "success"

var ErrDeclined = errors.New("payment declined")

// DeclinedError is a well-formed gateway answer with status other than
// "success".
type DeclinedError struct {
	Code    string
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s (%s)", e.Message, e.Code)
}

func (e *DeclinedError) Is(target error) bool { return target == ErrDeclined }

// Credentials identify the merchant to the gateway.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// NonceSource hands out a fresh nonce per request. payment.NonceIssuer
// satisfies it.
type NonceSource interface {
	Issue(ctx context.Context) (string, error)
}

// PaymentResult is the gateway's answer to a successful payment.
type PaymentResult struct {
	Status         string          `json:"status"`
	PaymentID      string          `json:"paymentId"`
	ConversationID string          `json:"conversationId"`
	PaidPrice      decimal.Decimal `json:"paidPrice"`
	ErrorCode      string          `json:"errorCode"`
	ErrorMessage   string          `json:"errorMessage"`
}

// Client is an authenticated gateway REST client.
type Client struct {
	baseURL string
	creds   Credentials
	signer  payment.Signer
	nonces  NonceSource
	http    *http.Client
}

func NewClient(baseURL string, creds Credentials, signer payment.Signer, nonces NonceSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		signer:  signer,
		nonces:  nonces,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreatePayment signs and submits req. Nothing is retried: a payment call
// that timed out may still have been charged.
func (c *Client) CreatePayment(ctx context.Context, req *payment.PaymentRequest) (*PaymentResult, error) {
	start := time.Now()
	res, err := c.createPayment(ctx, req)
	metrics.GatewayLatency.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.GatewayRequests.WithLabelValues("success").Inc()
	case errors.Is(err, ErrDeclined):
		metrics.GatewayRequests.WithLabelValues("declined").Inc()
	default:
		metrics.GatewayRequests.WithLabelValues("error").Inc()
	}
	return res, err
}

func (c *Client) createPayment(ctx context.Context, req *payment.PaymentRequest) (*PaymentResult, error) {
	nonce, err := c.nonces.Issue(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue nonce: %w", err)
	}
	signed, err := c.signer.Sign(c.creds.APIKey, c.creds.SecretKey, nonce, req.Payload())
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, PaymentPath, signed)
	if err != nil {
		return nil, fmt.Errorf("gateway CreatePayment: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway CreatePayment: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway CreatePayment %s: status %d", req.ConversationID, resp.StatusCode)
	}

	var out PaymentResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gateway CreatePayment: decode: %w", err)
	}
	if out.Status != statusSuccess {
		return nil, &DeclinedError{Code: out.ErrorCode, Message: out.ErrorMessage}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, signed *payment.Signed) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(signed.Body))
	if err != nil {
		return nil, err
	}
	signed.Apply(req.Header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }
