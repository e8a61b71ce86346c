package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cleanmatch/service-booking/internal/domain/booking"
)

// Config holds the payment provider endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PaymentClient implements booking.PaymentGateway against the provider's JSON API.
type PaymentClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewPaymentClient creates a PaymentClient. A zero timeout defaults to 15s.
func NewPaymentClient(cfg Config, logger *zap.Logger) *PaymentClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaymentClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type authorizeBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type refundBody struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type transferBody struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Destination string            `json:"destination"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type providerResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Authorize charges the host and returns the provider payment id.
func (c *PaymentClient) Authorize(ctx context.Context, req booking.AuthorizeRequest) (string, error) {
	return c.post(ctx, "/v1/payments", req.IdempotencyKey, authorizeBody{
		Amount:   req.Amount,
		Currency: strings.ToLower(req.Currency),
		Customer: req.PayerRef,
		Metadata: req.Metadata,
	})
}

// Refund returns money to the host. A zero amount refunds the whole payment.
func (c *PaymentClient) Refund(ctx context.Context, req booking.RefundRequest) (string, error) {
	return c.post(ctx, "/v1/refunds", req.IdempotencyKey, refundBody{
		PaymentID: req.ProviderPaymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
}

// Transfer pays the cleaner and returns the provider transfer id.
func (c *PaymentClient) Transfer(ctx context.Context, req booking.TransferRequest) (string, error) {
	return c.post(ctx, "/v1/transfers", req.IdempotencyKey, transferBody{
		Amount:      req.Amount,
		Currency:    strings.ToLower(req.Currency),
		Destination: req.PayeeAccountRef,
		Metadata:    req.Metadata,
	})
}

func (c *PaymentClient) post(ctx context.Context, path, idempotencyKey string, payload any) (string, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("payment: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("payment: read response: %w", err)
	}

	var pr providerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("payment: unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if pr.Error != nil {
		return "", fmt.Errorf("payment: provider error %s: %s", pr.Error.Code, pr.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("payment: unexpected status %d", resp.StatusCode)
	}
	if pr.ID == "" {
		return "", fmt.Errorf("payment: provider returned no id (raw: %s)", body)
	}

	c.logger.Debug("payment provider call succeeded",
		zap.String("path", path),
		zap.String("idempotency_key", idempotencyKey),
		zap.String("provider_id", pr.ID),
	)
	return pr.ID, nil
}
