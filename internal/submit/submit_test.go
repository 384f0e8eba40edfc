package submit

import (
	"context"
	"errors"
	"testing"

	backendstub "crowdfund-settlement/internal/backend/stub"
	chainstub "crowdfund-settlement/internal/chain/stub"
	"crowdfund-settlement/internal/channel"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage/memory"
	"crowdfund-settlement/internal/wallet"
)

func newTestSubmitter() (*Submitter, *chainstub.Client, *backendstub.API, *memory.ReferenceJournal) {
	chainClient := chainstub.NewClient()
	api := backendstub.New()
	journal := memory.NewReferenceJournal()
	s := NewSubmitter(chainClient, api, journal, Options{
		RedirectURL: "https://app.example/payments/return",
		Now:         func() int64 { return 1704067200000 },
	})
	return s, chainClient, api, journal
}

func onChainCommitment() *domain.Commitment {
	c := domain.NewCommitment("proj-1", 1.5, "ETH")
	c.Channel = domain.ChannelOnChain
	c.TermsOK = true
	return c
}

func gatewayCommitment() *domain.Commitment {
	c := domain.NewCommitment("proj-1", 5000, "UGX")
	c.Channel = domain.ChannelGateway
	c.TermsOK = true
	c.Phone = "256700000000"
	c.Method = domain.GatewayMethodMobileMoney
	c.Provider = domain.MobileMoneyMTN
	return c
}

func TestDispatch_OnChain(t *testing.T) {
	s, chainClient, _, journal := newTestSubmitter()
	ctx := context.Background()

	signer := wallet.NewStubSigner("0xinvestor")
	c := onChainCommitment()
	sel := &channel.Selection{Channel: domain.ChannelOnChain, InvestorAddr: "0xinvestor"}

	result, err := s.Dispatch(ctx, c, sel, signer)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Ref.Reference == "" {
		t.Fatal("expected a transaction hash reference")
	}
	if result.Ref.Channel != domain.ChannelOnChain {
		t.Errorf("channel = %s, want ON_CHAIN", result.Ref.Channel)
	}
	if result.Ref.InvestorAddr != "0xinvestor" {
		t.Errorf("investor = %s, want 0xinvestor", result.Ref.InvestorAddr)
	}
	if result.PaymentLink != "" || result.Confirmed {
		t.Error("on-chain dispatch must not carry a payment link or immediate confirmation")
	}
	if chainClient.DepositCount() != 1 {
		t.Errorf("deposit count = %d, want 1", chainClient.DepositCount())
	}

	// The reference is journaled under the commitment
	got, err := journal.GetByCommitment(ctx, c.CommitmentID)
	if err != nil {
		t.Fatalf("journal lookup failed: %v", err)
	}
	if got.Reference != result.Ref.Reference {
		t.Errorf("journaled %s, dispatched %s", got.Reference, result.Ref.Reference)
	}
}

func TestDispatch_OnChainWalletRejection(t *testing.T) {
	s, chainClient, _, journal := newTestSubmitter()
	ctx := context.Background()

	signer := wallet.NewStubSigner("0xinvestor")
	signer.Reject = true
	c := onChainCommitment()
	sel := &channel.Selection{Channel: domain.ChannelOnChain, InvestorAddr: "0xinvestor"}

	_, err := s.Dispatch(ctx, c, sel, signer)
	if !errors.Is(err, domain.ErrWalletRejected) {
		t.Fatalf("expected ErrWalletRejected, got %v", err)
	}
	if domain.CategoryOf(err) != domain.FailureSubmission {
		t.Errorf("category = %s, want SUBMISSION", domain.CategoryOf(err))
	}

	// Nothing was broadcast, nothing journaled: safe to retry
	if chainClient.DepositCount() != 0 {
		t.Errorf("deposit count = %d, want 0", chainClient.DepositCount())
	}
	if _, err := journal.GetByCommitment(ctx, c.CommitmentID); err == nil {
		t.Error("rejected dispatch must not be journaled")
	}
}

func TestDispatch_Gateway(t *testing.T) {
	s, _, api, _ := newTestSubmitter()
	ctx := context.Background()

	api.PaymentLink = "https://pay.example/hosted/xyz"
	c := gatewayCommitment()
	sel := &channel.Selection{
		Channel:  domain.ChannelGateway,
		Method:   domain.GatewayMethodMobileMoney,
		Provider: domain.MobileMoneyMTN,
	}

	result, err := s.Dispatch(ctx, c, sel, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Ref.Reference == "" {
		t.Fatal("expected a provider reference")
	}
	if result.PaymentLink != "https://pay.example/hosted/xyz" {
		t.Errorf("payment link = %q", result.PaymentLink)
	}
	if result.Confirmed {
		t.Error("gateway dispatch is never confirmed at submission time")
	}
}

func TestDispatch_GatewayInitializationError(t *testing.T) {
	s, _, api, journal := newTestSubmitter()
	ctx := context.Background()

	api.InitializeErr = errors.New("503 service unavailable")
	c := gatewayCommitment()
	sel := &channel.Selection{Channel: domain.ChannelGateway, Method: domain.GatewayMethodMobileMoney, Provider: domain.MobileMoneyMTN}

	_, err := s.Dispatch(ctx, c, sel, nil)
	if domain.CategoryOf(err) != domain.FailureSubmission {
		t.Fatalf("category = %s, want SUBMISSION", domain.CategoryOf(err))
	}
	if _, err := journal.GetByCommitment(ctx, c.CommitmentID); err == nil {
		t.Error("failed initialization must not be journaled")
	}
}

func TestDispatch_WalletBalanceConfirmsImmediately(t *testing.T) {
	s, _, _, _ := newTestSubmitter()
	ctx := context.Background()

	c := domain.NewCommitment("proj-1", 100, "USD")
	c.Channel = domain.ChannelWalletBalance
	c.TermsOK = true
	sel := &channel.Selection{Channel: domain.ChannelWalletBalance}

	result, err := s.Dispatch(ctx, c, sel, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !result.Confirmed {
		t.Error("wallet-balance settlement must be confirmed by the backend response")
	}
	if result.Ref.Reference == "" {
		t.Error("expected a transaction reference")
	}
}

func TestDispatch_NeverResubmitsDispatchedCommitment(t *testing.T) {
	s, chainClient, _, _ := newTestSubmitter()
	ctx := context.Background()

	signer := wallet.NewStubSigner("0xinvestor")
	c := onChainCommitment()
	sel := &channel.Selection{Channel: domain.ChannelOnChain, InvestorAddr: "0xinvestor"}

	if _, err := s.Dispatch(ctx, c, sel, signer); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}

	_, err := s.Dispatch(ctx, c, sel, signer)
	if !errors.Is(err, domain.ErrAlreadyDispatched) {
		t.Fatalf("expected ErrAlreadyDispatched, got %v", err)
	}
	if chainClient.DepositCount() != 1 {
		t.Errorf("deposit count = %d, want exactly 1", chainClient.DepositCount())
	}
}
