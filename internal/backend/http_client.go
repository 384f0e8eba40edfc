package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
)

// DefaultTimeout bounds each backend request.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx backend response. Transport errors stay plain
// wrapped errors; callers distinguish the two with errors.As.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error %d: %s", e.StatusCode, e.Message)
}

// HTTPClient implements API over the platform REST surface.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	token   string
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithAuthToken sets the bearer token attached to every request.
func WithAuthToken(token string) Option {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// NewHTTPClient creates a new platform API client.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify interface compliance at compile time.
var _ API = (*HTTPClient)(nil)

// Invest creates or upserts an investment record keyed by txHash.
func (c *HTTPClient) Invest(ctx context.Context, req *InvestRequest) (*domain.InvestmentRecord, error) {
	var record domain.InvestmentRecord
	if err := c.post(ctx, "/investments/invest", "/investments/invest", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// InitializePayment starts a gateway charge.
func (c *HTTPClient) InitializePayment(ctx context.Context, req *InitializePaymentRequest) (*InitializePaymentResponse, error) {
	var resp InitializePaymentResponse
	if err := c.post(ctx, "/payments/initialize", "/payments/initialize", req, &resp); err != nil {
		return nil, err
	}
	if resp.Reference == "" {
		return nil, fmt.Errorf("payment initialization returned no reference")
	}
	return &resp, nil
}

// VerifyPayment queries the charge status for a provider reference.
func (c *HTTPClient) VerifyPayment(ctx context.Context, txRef string) (*VerifyPaymentResponse, error) {
	var resp VerifyPaymentResponse
	if err := c.post(ctx, "/payments/verify/"+url.PathEscape(txRef), "/payments/verify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WalletInvest settles against the investor's platform wallet balance.
func (c *HTTPClient) WalletInvest(ctx context.Context, req *WalletInvestRequest) (*WalletInvestResponse, error) {
	var resp WalletInvestResponse
	if err := c.post(ctx, "/wallet/invest", "/wallet/invest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post performs a single JSON POST. No automatic retry: retry policy
// belongs to the calling component, which knows whether the operation is
// safe to re-issue. endpoint is the path with variable segments stripped,
// used as the latency metric label.
func (c *HTTPClient) post(ctx context.Context, path, endpoint string, body, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordBackendLatency(endpoint, time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an
// error body, falling back to the raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(body)
}
