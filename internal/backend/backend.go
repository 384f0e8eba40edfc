// Package backend is the client for the platform REST API: payment
// initialization and verification, and investment record upserts.
package backend

import (
	"context"

	"crowdfund-settlement/internal/domain"
)

// API defines the platform backend surface consumed by the settlement
// pipeline.
type API interface {
	// Invest creates or upserts an investment record. When txHash is
	// present the backend treats it as the idempotency key: two calls with
	// the same reference yield one logical record.
	Invest(ctx context.Context, req *InvestRequest) (*domain.InvestmentRecord, error)

	// InitializePayment starts a gateway charge and returns the provider
	// reference plus an optional hosted payment link.
	InitializePayment(ctx context.Context, req *InitializePaymentRequest) (*InitializePaymentResponse, error)

	// VerifyPayment queries the gateway charge status by provider
	// reference.
	VerifyPayment(ctx context.Context, txRef string) (*VerifyPaymentResponse, error)

	// WalletInvest settles against the investor's platform wallet balance.
	// No external confirmation hop: a successful response is the
	// confirmation.
	WalletInvest(ctx context.Context, req *WalletInvestRequest) (*WalletInvestResponse, error)
}

// InvestRequest is the body of POST /investments/invest.
type InvestRequest struct {
	ProjectID string  `json:"projectId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	TxHash    string  `json:"txHash,omitempty"`
}

// InitializePaymentRequest is the body of POST /payments/initialize.
type InitializePaymentRequest struct {
	Amount              float64 `json:"amount"`
	Currency            string  `json:"currency"`
	Email               string  `json:"email,omitempty"`
	PhoneNumber         string  `json:"phoneNumber,omitempty"`
	PaymentMethod       string  `json:"paymentMethod"`
	MobileMoneyProvider string  `json:"mobileMoneyProvider,omitempty"`
	ProjectID           string  `json:"projectId"`
	RedirectURL         string  `json:"redirectUrl"`
}

// InitializePaymentResponse is the result of payment initialization.
type InitializePaymentResponse struct {
	TransactionID string `json:"transactionId"`
	PaymentLink   string `json:"paymentLink,omitempty"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
}

// Gateway charge statuses returned by VerifyPayment.
const (
	PaymentSuccessful = "successful"
	PaymentFailed     = "failed"
	PaymentPending    = "pending"
)

// VerifyPaymentResponse is the result of POST /payments/verify/:txRef.
type VerifyPaymentResponse struct {
	Status      string              `json:"status"`
	Transaction *GatewayTransaction `json:"transaction,omitempty"`
}

// GatewayTransaction describes the provider-side charge.
type GatewayTransaction struct {
	TransactionID string  `json:"transactionId"`
	Reference     string  `json:"reference"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// WalletInvestRequest is the body of POST /wallet/invest.
type WalletInvestRequest struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	ProjectID string  `json:"projectId"`
}

// WalletInvestResponse is the result of a wallet-balance settlement.
type WalletInvestResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}
