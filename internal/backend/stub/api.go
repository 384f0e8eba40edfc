// Package stub provides an in-memory platform API for testing.
package stub

import (
	"context"
	"errors"
	"sync"
	"time"

	"crowdfund-settlement/internal/backend"
	"crowdfund-settlement/internal/domain"

	"github.com/google/uuid"
)

// API implements backend.API for testing. Invest is idempotent by txHash,
// matching the real backend's upsert-by-reference contract.
type API struct {
	mu sync.Mutex

	// records holds investment records keyed by reference (txHash); records
	// without a reference are keyed by investment ID.
	records map[string]*domain.InvestmentRecord

	// payments holds initialized charges keyed by provider reference.
	payments map[string]*backend.InitializePaymentResponse

	// verifyStatuses scripts VerifyPayment responses per reference. Each
	// call consumes one entry; the last entry repeats once exhausted.
	verifyStatuses map[string][]string

	// PaymentLink, when set, is returned from InitializePayment to force
	// the hosted-redirect path.
	PaymentLink string

	// InvestErr fails Invest calls when set.
	InvestErr error
	// InitializeErr fails InitializePayment calls when set.
	InitializeErr error

	investCalls int
	verifyCalls map[string]int
}

// New creates a new stub API.
func New() *API {
	return &API{
		records:        make(map[string]*domain.InvestmentRecord),
		payments:       make(map[string]*backend.InitializePaymentResponse),
		verifyStatuses: make(map[string][]string),
		verifyCalls:    make(map[string]int),
	}
}

// Verify interface compliance at compile time.
var _ backend.API = (*API)(nil)

// Invest upserts an investment record keyed by txHash.
func (a *API) Invest(_ context.Context, req *backend.InvestRequest) (*domain.InvestmentRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.investCalls++
	if a.InvestErr != nil {
		return nil, a.InvestErr
	}

	key := req.TxHash
	if key == "" {
		key = uuid.New().String()
	}
	if existing, ok := a.records[key]; ok {
		recordCopy := *existing
		return &recordCopy, nil
	}

	record := &domain.InvestmentRecord{
		InvestmentID: uuid.New().String(),
		ProjectID:    req.ProjectID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Reference:    req.TxHash,
		Status:       domain.InvestmentPending,
		CreatedAt:    time.Now().UnixMilli(),
	}
	a.records[key] = record

	recordCopy := *record
	return &recordCopy, nil
}

// InvestCalls returns how many Invest calls were received.
func (a *API) InvestCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.investCalls
}

// Records returns all stored investment records.
func (a *API) Records() []*domain.InvestmentRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*domain.InvestmentRecord
	for _, r := range a.records {
		recordCopy := *r
		out = append(out, &recordCopy)
	}
	return out
}

// InitializePayment registers a charge under a fresh provider reference.
func (a *API) InitializePayment(_ context.Context, req *backend.InitializePaymentRequest) (*backend.InitializePaymentResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.InitializeErr != nil {
		return nil, a.InitializeErr
	}
	if req.Amount <= 0 {
		return nil, &backend.APIError{StatusCode: 400, Message: "invalid amount"}
	}

	resp := &backend.InitializePaymentResponse{
		TransactionID: uuid.New().String(),
		Reference:     "ref-" + uuid.New().String()[:8],
		PaymentLink:   a.PaymentLink,
		Status:        backend.PaymentPending,
	}
	a.payments[resp.Reference] = resp
	return resp, nil
}

// ScriptVerify sets the sequence of statuses VerifyPayment returns for a
// reference. The last status repeats once the script is exhausted.
func (a *API) ScriptVerify(txRef string, statuses ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifyStatuses[txRef] = statuses
}

// VerifyPayment returns the next scripted status for the reference, or
// pending when nothing is scripted.
func (a *API) VerifyPayment(_ context.Context, txRef string) (*backend.VerifyPaymentResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.verifyCalls[txRef]++
	script := a.verifyStatuses[txRef]
	if len(script) == 0 {
		return &backend.VerifyPaymentResponse{Status: backend.PaymentPending}, nil
	}

	status := script[0]
	if len(script) > 1 {
		a.verifyStatuses[txRef] = script[1:]
	}

	resp := &backend.VerifyPaymentResponse{Status: status}
	if status == backend.PaymentSuccessful {
		resp.Transaction = &backend.GatewayTransaction{Reference: txRef}
	}
	return resp, nil
}

// VerifyCalls returns how many VerifyPayment calls the reference received.
func (a *API) VerifyCalls(txRef string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verifyCalls[txRef]
}

// WalletInvest succeeds for positive amounts.
func (a *API) WalletInvest(_ context.Context, req *backend.WalletInvestRequest) (*backend.WalletInvestResponse, error) {
	if req.Amount <= 0 {
		return nil, errors.New("invalid amount")
	}
	return &backend.WalletInvestResponse{
		TransactionID: uuid.New().String(),
		Status:        backend.PaymentSuccessful,
	}, nil
}
