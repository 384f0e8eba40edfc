// Package flow drives one commitment through the settlement pipeline:
// intake validation, channel selection, dispatch, external confirmation
// and backend reconciliation. Steps are strictly sequential within one
// commitment; the event synchronizer runs independently and only meets the
// flow at the cache.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"crowdfund-settlement/internal/channel"
	"crowdfund-settlement/internal/commitment"
	"crowdfund-settlement/internal/confirm"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/observability"
	"crowdfund-settlement/internal/reconcile"
	"crowdfund-settlement/internal/storage"
	"crowdfund-settlement/internal/submit"
	"crowdfund-settlement/internal/wallet"
)

// ErrCancelNotOffered is returned when cancellation is requested after
// dispatch. Closing the flow is disabled during the confirmation wait so a
// submitted-but-unconfirmed transaction never drops out of the user's
// sight.
var ErrCancelNotOffered = errors.New("cancellation not offered after dispatch")

// ErrUnknownFlow is returned when no state exists for a flow ID.
var ErrUnknownFlow = errors.New("unknown flow")

// ErrUnknownReference is returned when a return-page reference matches no
// journaled dispatch.
var ErrUnknownReference = errors.New("reference was never dispatched by this client")

// State is the snapshot of one settlement flow. The flow ID is the
// commitment ID.
type State struct {
	ID     string
	Status domain.SettlementStatus

	// Reference is set once dispatch succeeded.
	Reference *domain.ExternalReference

	// RedirectURL, when non-empty, is the hosted payment page the browser
	// must navigate to. The in-page flow is suspended; it resumes on the
	// return page via Resume.
	RedirectURL string

	// Record and Caveat are set after reconciliation.
	Record *domain.InvestmentRecord
	Caveat bool

	// LastError holds the most recent category-tagged failure.
	LastError string
}

// Pipeline owns the settlement state machine.
type Pipeline struct {
	intake     *commitment.Intake
	selector   *channel.Selector
	submitter  *submit.Submitter
	watcher    *confirm.Watcher
	reconciler *reconcile.Reconciler
	journal    storage.ReferenceJournal
	logger     *log.Logger

	mu     sync.Mutex
	states map[string]*State
}

// NewPipeline wires the settlement pipeline.
func NewPipeline(
	intake *commitment.Intake,
	selector *channel.Selector,
	submitter *submit.Submitter,
	watcher *confirm.Watcher,
	reconciler *reconcile.Reconciler,
	journal storage.ReferenceJournal,
	logger *log.Logger,
) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		intake:     intake,
		selector:   selector,
		submitter:  submitter,
		watcher:    watcher,
		reconciler: reconciler,
		journal:    journal,
		logger:     logger,
		states:     make(map[string]*State),
	}
}

// Run drives a commitment from intake to a terminal or suspended state.
//
// Validation failures surface before any state is registered: an abandoned
// or rejected commitment leaves no trace. After dispatch the state machine
// advances AWAITING_CONFIRMATION → CONFIRMED_EXTERNALLY → RECONCILED, or
// suspends with a redirect URL for hosted gateway payments.
func (p *Pipeline) Run(ctx context.Context, c *domain.Commitment, signer wallet.Signer) (*State, error) {
	if err := p.intake.Validate(c); err != nil {
		observability.RecordFlowFailure(string(domain.CategoryOf(err)))
		return nil, err
	}
	sel, err := p.selector.Select(c)
	if err != nil {
		observability.RecordFlowFailure(string(domain.CategoryOf(err)))
		return nil, err
	}

	state := p.register(c.CommitmentID)

	result, err := p.submitter.Dispatch(ctx, c, sel, signer)
	if err != nil {
		// Nothing external changed (or, for the ambiguous journal case,
		// nothing retryable): the state stays PENDING_SUBMIT.
		p.fail(state, err)
		return p.snapshot(state.ID), err
	}
	p.advance(state, domain.StatusAwaitingConfirmation, func(s *State) {
		s.Reference = result.Ref
	})

	if result.PaymentLink != "" {
		// Hosted payment: control leaves the process entirely. The return
		// page resumes from query parameters alone.
		p.advance(state, "", func(s *State) { s.RedirectURL = result.PaymentLink })
		p.logger.Printf("[flow] %s suspended for hosted payment", state.ID)
		return p.snapshot(state.ID), nil
	}

	return p.confirmAndReconcile(ctx, state, result.Ref)
}

// Resume re-enters the confirmation step from a gateway return page. It is
// a function of the returned query parameters plus the journal lookup; no
// in-memory commitment survives the redirect.
func (p *Pipeline) Resume(ctx context.Context, txRef, transactionID string) (*State, error) {
	reference := txRef
	if reference == "" {
		reference = transactionID
	}
	if reference == "" {
		return nil, domain.NewFlowError(domain.FailureUserRecoverable,
			errors.New("return page carried no transaction reference"))
	}

	ref, err := p.journal.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NewFlowError(domain.FailureUserRecoverable, ErrUnknownReference)
		}
		return nil, domain.NewFlowError(domain.FailureAmbiguous, fmt.Errorf("journal lookup: %w", err))
	}

	state := p.register(ref.CommitmentID)
	p.advance(state, domain.StatusAwaitingConfirmation, func(s *State) {
		s.Reference = ref
	})
	p.logger.Printf("[flow] %s resumed from return page (ref %s)", state.ID, reference)

	return p.confirmAndReconcile(ctx, state, ref)
}

// Cancel abandons a flow. Permitted only before dispatch; a cancelled flow
// leaves no trace.
func (p *Pipeline) Cancel(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.states[id]
	if !ok {
		return nil
	}
	if state.Status != domain.StatusPendingSubmit {
		return ErrCancelNotOffered
	}
	delete(p.states, id)
	return nil
}

// Get returns a snapshot of the flow state.
func (p *Pipeline) Get(id string) (*State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.states[id]
	if !ok {
		return nil, false
	}
	stateCopy := *state
	return &stateCopy, true
}

// confirmAndReconcile awaits the external outcome and, on confirmation,
// reconciles with the backend.
func (p *Pipeline) confirmAndReconcile(ctx context.Context, state *State, ref *domain.ExternalReference) (*State, error) {
	outcome, err := p.watcher.Await(ctx, ref)
	switch outcome {
	case domain.OutcomeConfirmed:
		p.advance(state, domain.StatusConfirmedExternally, nil)

	case domain.OutcomeFailed:
		p.advance(state, domain.StatusFailed, nil)
		p.fail(state, err)
		return p.snapshot(state.ID), err

	default:
		// Ambiguous: neither confirmed nor failed. The status stays
		// AWAITING_CONFIRMATION and the user checks transaction history.
		p.fail(state, err)
		return p.snapshot(state.ID), err
	}

	result, err := p.reconciler.Reconcile(ctx, ref)
	if err != nil {
		p.fail(state, err)
		return p.snapshot(state.ID), err
	}
	p.advance(state, domain.StatusReconciled, func(s *State) {
		s.Record = result.Record
		s.Caveat = result.Caveat
	})
	p.logger.Printf("[flow] %s reconciled (caveat=%t)", state.ID, result.Caveat)
	return p.snapshot(state.ID), nil
}

func (p *Pipeline) register(id string) *State {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.states[id]; ok {
		return existing
	}
	state := &State{ID: id, Status: domain.StatusPendingSubmit}
	p.states[id] = state
	return state
}

// advance moves the state machine. An empty status mutates fields without
// a transition.
func (p *Pipeline) advance(state *State, next domain.SettlementStatus, mutate func(*State)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if next != "" && state.Status.CanTransitionTo(next) {
		state.Status = next
	}
	if mutate != nil {
		mutate(state)
	}
}

func (p *Pipeline) fail(state *State, err error) {
	if err == nil {
		return
	}
	category := domain.CategoryOf(err)
	observability.RecordFlowFailure(string(category))

	p.mu.Lock()
	state.LastError = err.Error()
	p.mu.Unlock()
}

func (p *Pipeline) snapshot(id string) *State {
	state, _ := p.Get(id)
	return state
}
