// Package confirm waits for the external system to finalize a dispatched
// settlement. Both channels hide behind a single Awaiter interface
// returning a tri-state outcome, so downstream logic is channel-agnostic.
//
// The watcher never reports a confirmed outcome without a positive signal
// from the external system. Ambiguity (poll ceiling, network drop during a
// receipt wait) is a distinct outcome, never coerced to failure.
package confirm

import (
	"context"
	"fmt"
	"log"
	"time"

	"crowdfund-settlement/internal/backend"
	"crowdfund-settlement/internal/chain"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
)

// Await policy for the gateway status poll: one verify every PollInterval,
// up to PollMaxAttempts, roughly five minutes in total.
const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 30
)

// Awaiter resolves a dispatched reference to a confirmation outcome.
type Awaiter interface {
	// Await blocks until the external system reports an outcome or the
	// policy bound is reached. The returned error carries detail for the
	// Failed and Ambiguous outcomes; it is nil for Confirmed.
	Await(ctx context.Context, ref *domain.ExternalReference) (domain.Outcome, error)
}

// ReceiptAwaiter confirms on-chain settlements by blocking on the chain
// client's wait-for-receipt primitive.
type ReceiptAwaiter struct {
	client chain.Client
	logger *log.Logger
}

// NewReceiptAwaiter creates an awaiter over the chain client.
func NewReceiptAwaiter(client chain.Client, logger *log.Logger) *ReceiptAwaiter {
	if logger == nil {
		logger = log.Default()
	}
	return &ReceiptAwaiter{client: client, logger: logger}
}

// Verify interface compliance at compile time.
var _ Awaiter = (*ReceiptAwaiter)(nil)

// Await blocks until the transaction is finalized. A network drop during
// the wait resolves Ambiguous: the transaction may still confirm.
func (a *ReceiptAwaiter) Await(ctx context.Context, ref *domain.ExternalReference) (domain.Outcome, error) {
	receipt, err := a.client.WaitForReceipt(ctx, ref.Reference)
	if err != nil {
		a.logger.Printf("[confirm] receipt wait for %s interrupted: %v", ref.Reference, err)
		return domain.OutcomeAmbiguous,
			domain.NewFlowError(domain.FailureAmbiguous,
				fmt.Errorf("%w: %v", domain.ErrOutcomeUnknown, err))
	}
	if !receipt.Success {
		return domain.OutcomeFailed,
			domain.NewFlowError(domain.FailureSubmission,
				fmt.Errorf("%w: transaction reverted: %s", domain.ErrConfirmationFailed, receipt.Revert))
	}
	return domain.OutcomeConfirmed, nil
}

// PollAwaiter confirms gateway settlements by polling the verify endpoint
// at a fixed interval up to a fixed attempt ceiling.
type PollAwaiter struct {
	api         backend.API
	interval    time.Duration
	maxAttempts int
	logger      *log.Logger
}

// PollOptions configures a PollAwaiter.
type PollOptions struct {
	Interval    time.Duration // defaults to DefaultPollInterval
	MaxAttempts int           // defaults to DefaultPollMaxAttempts
	Logger      *log.Logger
}

// NewPollAwaiter creates an awaiter over the backend verify endpoint.
func NewPollAwaiter(api backend.API, opts PollOptions) *PollAwaiter {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PollAwaiter{api: api, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Verify interface compliance at compile time.
var _ Awaiter = (*PollAwaiter)(nil)

// Await polls the gateway status until it reports successful or failed, or
// the attempt ceiling is exhausted. Ceiling exhaustion resolves Ambiguous:
// the user checks transaction history, the flow must not claim failure.
// Transport errors on individual polls consume an attempt and continue.
func (a *PollAwaiter) Await(ctx context.Context, ref *domain.ExternalReference) (domain.Outcome, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		resp, err := a.api.VerifyPayment(ctx, ref.Reference)
		if err != nil {
			a.logger.Printf("[confirm] verify %s attempt %d/%d failed: %v",
				ref.Reference, attempt, a.maxAttempts, err)
		} else {
			switch resp.Status {
			case backend.PaymentSuccessful:
				observability.RecordPollAttempts(attempt)
				return domain.OutcomeConfirmed, nil
			case backend.PaymentFailed:
				observability.RecordPollAttempts(attempt)
				return domain.OutcomeFailed,
					domain.NewFlowError(domain.FailureSubmission,
						fmt.Errorf("%w: gateway reported failed", domain.ErrConfirmationFailed))
			}
			// pending or unknown status: keep polling
		}

		if attempt == a.maxAttempts {
			break
		}
		select {
		case <-time.After(a.interval):
		case <-ctx.Done():
			return domain.OutcomeAmbiguous,
				domain.NewFlowError(domain.FailureAmbiguous,
					fmt.Errorf("%w: %v", domain.ErrOutcomeUnknown, ctx.Err()))
		}
	}

	observability.RecordPollAttempts(a.maxAttempts)
	return domain.OutcomeAmbiguous,
		domain.NewFlowError(domain.FailureAmbiguous, domain.ErrOutcomeUnknown)
}

// Watcher selects the awaiter for a reference's channel.
type Watcher struct {
	receipt *ReceiptAwaiter
	poll    *PollAwaiter
}

// NewWatcher creates a watcher holding both channel strategies.
func NewWatcher(receipt *ReceiptAwaiter, poll *PollAwaiter) *Watcher {
	return &Watcher{receipt: receipt, poll: poll}
}

// Await resolves the reference with the strategy its channel requires. The
// wallet-balance channel has no external confirmation hop; its submission
// response was the confirmation, so it confirms immediately here.
func (w *Watcher) Await(ctx context.Context, ref *domain.ExternalReference) (domain.Outcome, error) {
	start := time.Now()
	var outcome domain.Outcome
	var err error

	switch ref.Channel {
	case domain.ChannelOnChain:
		outcome, err = w.receipt.Await(ctx, ref)
	case domain.ChannelGateway:
		outcome, err = w.poll.Await(ctx, ref)
	case domain.ChannelWalletBalance:
		outcome, err = domain.OutcomeConfirmed, nil
	default:
		return domain.OutcomeFailed,
			domain.NewFlowError(domain.FailureSubmission, domain.ErrChannelInvalid)
	}

	observability.RecordConfirmation(string(ref.Channel), string(outcome), time.Since(start).Seconds())
	return outcome, err
}
