// Package submit dispatches a selected commitment to its settlement
// channel and journals the resulting external reference. Exactly one
// external write is attempted per commitment; ambiguous failures are never
// retried automatically.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"crowdfund-settlement/internal/backend"
	"crowdfund-settlement/internal/chain"
	"crowdfund-settlement/internal/channel"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
	"crowdfund-settlement/internal/storage"
	"crowdfund-settlement/internal/wallet"
)

// Result is the outcome of a successful dispatch.
type Result struct {
	Ref *domain.ExternalReference

	// PaymentLink, when non-empty, is the hosted payment page the flow
	// must redirect to. Confirmation then resumes on the return page, not
	// in-process.
	PaymentLink string

	// Confirmed is set for the wallet-balance channel, whose backend
	// response is itself the confirmation.
	Confirmed bool
}

// Options configures the submitter.
type Options struct {
	// RedirectURL is the client-chosen return URL passed to gateway
	// payment initialization.
	RedirectURL string

	Logger *log.Logger

	// Now overrides the dispatch timestamp source. Defaults to wall clock.
	Now func() int64
}

// Submitter dispatches commitments per channel.
type Submitter struct {
	chain   chain.Client
	api     backend.API
	journal storage.ReferenceJournal

	redirectURL string
	logger      *log.Logger
	now         func() int64
}

// NewSubmitter creates a submitter over the chain client, backend API and
// reference journal.
func NewSubmitter(chainClient chain.Client, api backend.API, journal storage.ReferenceJournal, opts Options) *Submitter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Submitter{
		chain:       chainClient,
		api:         api,
		journal:     journal,
		redirectURL: opts.RedirectURL,
		logger:      logger,
		now:         now,
	}
}

// Dispatch performs the single external write for a validated commitment
// and journals the returned reference. A commitment whose reference is
// already journaled is rejected with ErrAlreadyDispatched: the journal is
// what enforces "never re-submit a reference known dispatched" across
// retries and restarts.
func (s *Submitter) Dispatch(ctx context.Context, c *domain.Commitment, sel *channel.Selection, signer wallet.Signer) (*Result, error) {
	if existing, err := s.journal.GetByCommitment(ctx, c.CommitmentID); err == nil {
		s.logger.Printf("[submit] commitment %s already dispatched as %s", c.CommitmentID, existing.Reference)
		return nil, domain.NewFlowError(domain.FailureSubmission, domain.ErrAlreadyDispatched)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NewFlowError(domain.FailureSubmission, fmt.Errorf("check journal: %w", err))
	}

	var result *Result
	var err error
	switch sel.Channel {
	case domain.ChannelOnChain:
		result, err = s.dispatchOnChain(ctx, c, sel, signer)
	case domain.ChannelGateway:
		result, err = s.dispatchGateway(ctx, c, sel)
	case domain.ChannelWalletBalance:
		result, err = s.dispatchWalletBalance(ctx, c)
	default:
		return nil, domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrChannelInvalid)
	}
	if err != nil {
		return nil, err
	}

	if err := s.journal.Insert(ctx, result.Ref); err != nil {
		// The external write has already happened. A journal failure here
		// must not trigger a re-submission; surface it as ambiguous.
		s.logger.Printf("[submit] WARNING: reference %s dispatched but not journaled: %v", result.Ref.Reference, err)
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, domain.NewFlowError(domain.FailureAmbiguous,
				fmt.Errorf("journal reference %s: %w", result.Ref.Reference, err))
		}
	}

	observability.RecordSubmission(string(sel.Channel))
	s.logger.Printf("[submit] dispatched commitment %s via %s, reference %s",
		c.CommitmentID, sel.Channel, result.Ref.Reference)
	return result, nil
}

// dispatchOnChain signs and broadcasts the escrow deposit. The transaction
// hash is a submission reference, not a confirmation.
func (s *Submitter) dispatchOnChain(ctx context.Context, c *domain.Commitment, sel *channel.Selection, signer wallet.Signer) (*Result, error) {
	txHash, err := s.chain.Deposit(ctx, signer, c.ProjectID, c.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrWalletRejected) {
			// User closed or rejected the signature prompt. Nothing was
			// broadcast; return to the selector.
			return nil, domain.NewFlowError(domain.FailureSubmission, err)
		}
		return nil, domain.NewFlowError(domain.FailureSubmission, fmt.Errorf("broadcast deposit: %w", err))
	}

	return &Result{Ref: s.newRef(c, domain.ChannelOnChain, txHash, sel.InvestorAddr)}, nil
}

// dispatchGateway initializes a gateway charge. When the provider returns a
// hosted payment link the flow must redirect; confirmation then happens on
// the return page.
func (s *Submitter) dispatchGateway(ctx context.Context, c *domain.Commitment, sel *channel.Selection) (*Result, error) {
	resp, err := s.api.InitializePayment(ctx, &backend.InitializePaymentRequest{
		Amount:              c.Amount,
		Currency:            c.Currency,
		Email:               c.Email,
		PhoneNumber:         c.Phone,
		PaymentMethod:       string(sel.Method),
		MobileMoneyProvider: string(sel.Provider),
		ProjectID:           c.ProjectID,
		RedirectURL:         s.redirectURL,
	})
	if err != nil {
		return nil, domain.NewFlowError(domain.FailureSubmission, fmt.Errorf("initialize payment: %w", err))
	}

	return &Result{
		Ref:         s.newRef(c, domain.ChannelGateway, resp.Reference, ""),
		PaymentLink: resp.PaymentLink,
	}, nil
}

// dispatchWalletBalance settles against the platform wallet balance. There
// is no external confirmation hop, so the result is already confirmed.
func (s *Submitter) dispatchWalletBalance(ctx context.Context, c *domain.Commitment) (*Result, error) {
	resp, err := s.api.WalletInvest(ctx, &backend.WalletInvestRequest{
		Amount:    c.Amount,
		Currency:  c.Currency,
		ProjectID: c.ProjectID,
	})
	if err != nil {
		return nil, domain.NewFlowError(domain.FailureSubmission, fmt.Errorf("wallet invest: %w", err))
	}

	return &Result{
		Ref:       s.newRef(c, domain.ChannelWalletBalance, resp.TransactionID, ""),
		Confirmed: true,
	}, nil
}

func (s *Submitter) newRef(c *domain.Commitment, ch domain.Channel, reference, investorAddr string) *domain.ExternalReference {
	return &domain.ExternalReference{
		CommitmentID: c.CommitmentID,
		ProjectID:    c.ProjectID,
		Channel:      ch,
		Reference:    reference,
		Amount:       c.Amount,
		Currency:     c.Currency,
		InvestorAddr: investorAddr,
		DispatchedAt: s.now(),
	}
}
