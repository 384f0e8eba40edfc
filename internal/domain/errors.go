package domain

import "errors"

// Failure taxonomy for the settlement flow. Every external-call failure is
// translated into one of these categories at the component boundary before
// it reaches a caller; raw transport errors never surface unwrapped.
type FailureCategory string

const (
	// FailureUserRecoverable: invalid input, unaccepted terms, wallet not
	// connected. No external call was made; return to the relevant step.
	FailureUserRecoverable FailureCategory = "USER_RECOVERABLE"

	// FailureSubmission: wallet rejected the signature or gateway
	// initialization failed. No external state changed; safe to retry.
	FailureSubmission FailureCategory = "SUBMISSION"

	// FailureAmbiguous: confirmation could not be obtained within policy
	// bounds. Explicitly distinct from a failed settlement.
	FailureAmbiguous FailureCategory = "AMBIGUOUS_OUTCOME"

	// FailureReconcile: the external settlement succeeded but the backend
	// upsert failed. Reported as success-with-caveat, never as a failed
	// investment.
	FailureReconcile FailureCategory = "RECONCILE"
)

// Sentinel errors for user-recoverable conditions.
var (
	ErrAmountNotPositive  = errors.New("amount must be positive")
	ErrAmountBelowMinimum = errors.New("amount below platform minimum")
	ErrTermsNotAccepted   = errors.New("terms must be accepted")
	ErrProjectRequired    = errors.New("project id is required")
	ErrCurrencyRequired   = errors.New("currency is required")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrContactRequired    = errors.New("email or phone number is required")
	ErrPhoneRequired      = errors.New("phone number is required for mobile money")
	ErrProviderRequired   = errors.New("mobile money provider is required")
	ErrChannelInvalid     = errors.New("invalid settlement channel")
)

// Sentinel errors for submission and confirmation.
var (
	ErrWalletRejected     = errors.New("wallet rejected the transaction")
	ErrAlreadyDispatched  = errors.New("commitment already dispatched")
	ErrConfirmationFailed = errors.New("external system reported failure")
	ErrOutcomeUnknown     = errors.New("confirmation outcome unknown; check transaction history")
)

// FlowError wraps an underlying error with its failure category.
type FlowError struct {
	Category FailureCategory
	Err      error
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	return string(e.Category) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *FlowError) Unwrap() error {
	return e.Err
}

// NewFlowError wraps err with the given category.
func NewFlowError(category FailureCategory, err error) *FlowError {
	return &FlowError{Category: category, Err: err}
}

// CategoryOf extracts the failure category from err, or empty string if
// err carries none.
func CategoryOf(err error) FailureCategory {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}
