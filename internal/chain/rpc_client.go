package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
	"crowdfund-settlement/internal/wallet"
)

// Default configuration values.
const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxRetries          = 3
	DefaultRetryDelay          = 1 * time.Second
	DefaultMaxDelay            = 10 * time.Second
	DefaultBackoffMult         = 2.0
	DefaultReceiptPollInterval = 2 * time.Second
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0 against an escrow
// chain node.
type HTTPClient struct {
	endpoint            string
	client              *http.Client
	maxRetries          int
	retryDelay          time.Duration
	maxDelay            time.Duration
	backoffMult         float64
	receiptPollInterval time.Duration
	requestID           atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for read calls.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithReceiptPollInterval sets the interval between receipt lookups while
// waiting for finality.
func WithReceiptPollInterval(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.receiptPollInterval = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new escrow JSON-RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:            endpoint,
		client:              &http.Client{Timeout: DefaultTimeout},
		maxRetries:          DefaultMaxRetries,
		retryDelay:          DefaultRetryDelay,
		maxDelay:            DefaultMaxDelay,
		backoffMult:         DefaultBackoffMult,
		receiptPollInterval: DefaultReceiptPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify interface compliance at compile time.
var _ Client = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// depositPayload is the canonical deposit call body the wallet signs.
type depositPayload struct {
	ProjectID string  `json:"projectId"`
	Amount    float64 `json:"amount"`
	From      string  `json:"from"`
}

// receiptResult is the wire form of a transaction receipt. A null result
// means the transaction is not yet finalized.
type receiptResult struct {
	TxHash      string `json:"txHash"`
	BlockNumber int64  `json:"blockNumber"`
	Status      string `json:"status"` // "success" | "reverted"
	Revert      string `json:"revert,omitempty"`
}

// projectResult is the wire form of escrow_getProject.
type projectResult struct {
	ProjectID    string  `json:"projectId"`
	Creator      string  `json:"creator"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	TargetAmount float64 `json:"targetAmount"`
	RaisedAmount float64 `json:"raisedAmount"`
	Deadline     int64   `json:"deadline"`
	Status       string  `json:"status"`
}

// Deposit signs and broadcasts a deposit call. The broadcast is issued
// exactly once: an ambiguous transport failure is returned to the caller
// rather than retried, so a lost-response transaction is never duplicated.
func (c *HTTPClient) Deposit(ctx context.Context, signer wallet.Signer, projectID string, amount float64) (string, error) {
	if signer == nil || !signer.Connected() {
		return "", domain.ErrWalletNotConnected
	}

	payload := depositPayload{
		ProjectID: projectID,
		Amount:    amount,
		From:      signer.Address(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal deposit payload: %w", err)
	}

	digest := sha256.Sum256(body)
	sig, err := signer.Sign(ctx, digest[:])
	if err != nil {
		// Wallet rejection passes through unchanged so the submitter can
		// classify it as user-recoverable.
		return "", err
	}

	var txHash string
	params := []interface{}{payload, hex.EncodeToString(sig)}
	if err := c.callOnce(ctx, "escrow_deposit", params, &txHash); err != nil {
		return "", err
	}
	if txHash == "" {
		return "", fmt.Errorf("escrow_deposit returned empty tx hash")
	}
	return txHash, nil
}

// WaitForReceipt blocks until the node reports a finalized receipt for
// txHash or ctx is cancelled. Lookups are spaced by the configured poll
// interval; a null result means not yet finalized.
func (c *HTTPClient) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	ticker := time.NewTicker(c.receiptPollInterval)
	defer ticker.Stop()

	for {
		var result *receiptResult
		err := c.call(ctx, "escrow_getReceipt", []interface{}{txHash}, &result)
		if err == nil && result != nil {
			return &Receipt{
				TxHash:      result.TxHash,
				BlockNumber: result.BlockNumber,
				Success:     result.Status == "success",
				Revert:      result.Revert,
			}, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetProject reads the authoritative on-chain project state.
func (c *HTTPClient) GetProject(ctx context.Context, projectID string) (*domain.ProjectState, error) {
	var result *projectResult
	if err := c.call(ctx, "escrow_getProject", []interface{}{projectID}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("project %s not found on chain", projectID)
	}

	return &domain.ProjectState{
		ProjectID:    result.ProjectID,
		Creator:      result.Creator,
		Title:        result.Title,
		Description:  result.Description,
		TargetAmount: result.TargetAmount,
		RaisedAmount: result.RaisedAmount,
		Deadline:     result.Deadline,
		Status:       domain.ProjectStatus(result.Status),
	}, nil
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Used for reads only; writes go through callOnce.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.callOnce(ctx, method, params, result)
		if err == nil {
			return nil
		}
		lastErr = err

		// RPC-level errors are not transient; don't retry them.
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return err
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", method, c.maxRetries+1, lastErr)
}

// callOnce performs a single JSON-RPC call with no retry.
func (c *HTTPClient) callOnce(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}
