package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"course-entitlement-platform/internal/domain/ports/adapter"
)

// Ensure ProcessorClient implements adapter.PaymentProcessor
var _ adapter.PaymentProcessor = (*ProcessorClient)(nil)

// ProcessorClient implements the payment processor port over its REST API.
type ProcessorClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewProcessorClient(baseURL, apiKey string) *ProcessorClient {
	return &ProcessorClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ProcessorClient) Name() string { return "processor" }

type subscriptionResponse struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	LatestInvoice     struct {
		Charge string `json:"charge"`
	} `json:"latest_invoice"`
}

func (c *ProcessorClient) FetchSubscription(ctx context.Context, subscriptionID string) (adapter.SubscriptionState, error) {
	var resp subscriptionResponse
	if err := c.get(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID), &resp); err != nil {
		return adapter.SubscriptionState{}, err
	}
	return adapter.SubscriptionState{
		ID:                resp.ID,
		CustomerID:        resp.Customer,
		Status:            resp.Status,
		PeriodEnd:         time.Unix(resp.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: resp.CancelAtPeriodEnd,
	}, nil
}

func (c *ProcessorClient) LatestChargeForSubscription(ctx context.Context, subscriptionID string) (string, error) {
	var resp subscriptionResponse
	if err := c.get(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID)+"?expand=latest_invoice", &resp); err != nil {
		return "", err
	}
	if resp.LatestInvoice.Charge == "" {
		return "", fmt.Errorf("subscription %s has no refundable charge", subscriptionID)
	}
	return resp.LatestInvoice.Charge, nil
}

type refundResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
	Created int64  `json:"created"`
}

func (c *ProcessorClient) RefundCharge(ctx context.Context, chargeID, reason string) (adapter.RefundResult, error) {
	body := map[string]any{"charge": chargeID}
	if reason != "" {
		body["reason"] = reason
	}
	var resp refundResponse
	if err := c.post(ctx, "/v1/refunds", body, &resp); err != nil {
		return adapter.RefundResult{}, err
	}
	return adapter.RefundResult{
		ID:         resp.ID,
		Status:     resp.Status,
		AmountCent: resp.Amount,
		RefundedAt: time.Unix(resp.Created, 0),
	}, nil
}

func (c *ProcessorClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, nil)
}

func (c *ProcessorClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *ProcessorClient) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *ProcessorClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("processor error: status %d, body: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}
