package borzo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	ProductionBaseURL = "https://robot-in.borzodelivery.com/api/business/1.6"
	SandboxBaseURL    = "https://robotapitest-in.borzodelivery.com/api/business/1.6"

	createOrderPath = "/create-order"
)

// Client is the Borzo API client with automatic retry on transient
// failures. The auth token comes from configuration, never from call
// sites.
type Client struct {
	authToken   string
	baseURL     string
	httpClient  *http.Client
	logger      *zap.Logger
	retryPolicy *RetryPolicy
}

// ClientConfig holds configuration for the Borzo client.
type ClientConfig struct {
	AuthToken      string
	IsSandbox      bool
	Logger         *zap.Logger
	RetryPolicy    *RetryPolicy
	RequestTimeout time.Duration
}

// NewClient creates a new Borzo API client.
func NewClient(cfg *ClientConfig) *Client {
	baseURL := ProductionBaseURL
	if cfg.IsSandbox {
		baseURL = SandboxBaseURL
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retryPolicy := cfg.RetryPolicy
	if retryPolicy == nil {
		retryPolicy = DefaultRetryPolicy()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		authToken: cfg.AuthToken,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:      logger,
		retryPolicy: retryPolicy,
	}
}

// CreateOrder books a delivery with at least a pickup and a drop point.
func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if len(req.Points) < 2 {
		return nil, fmt.Errorf("%w: at least 2 points (pickup and drop) are required", ErrInvalidRequest)
	}

	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, createOrderPath, req, &resp); err != nil {
		return nil, err
	}
	if !resp.IsSuccessful {
		return nil, fmt.Errorf("%w: order was not accepted", ErrInvalidRequest)
	}

	c.logger.Info("Borzo order created",
		zap.Int64("order_id", resp.Order.OrderID),
		zap.String("tracking_number", resp.Order.TrackingNumber),
	)
	return &resp.Order, nil
}

// do executes one API call with the retry policy applied.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		lastErr = c.doOnce(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}
		if !c.retryPolicy.ShouldRetry(lastErr, attempt) {
			return lastErr
		}
		c.logger.Warn("Retrying Borzo request",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if !c.retryPolicy.WaitForRetry(ctx, attempt) {
			return ctx.Err()
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-DV-Auth-Token", c.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
