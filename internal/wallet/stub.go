package wallet

import (
	"context"
	"crypto/sha256"
	"time"

	"crowdfund-settlement/internal/domain"
)

// StubSigner implements Signer for testing.
type StubSigner struct {
	Addr         string
	Disconnected bool
	Reject       bool          // simulate the user closing the prompt
	ApproveAfter time.Duration // simulate user think time
}

// NewStubSigner creates a connected stub signer for the given address.
func NewStubSigner(addr string) *StubSigner {
	return &StubSigner{Addr: addr}
}

// Connected reports whether a wallet session is active.
func (s *StubSigner) Connected() bool {
	return !s.Disconnected
}

// Address returns the stub account address.
func (s *StubSigner) Address() string {
	return s.Addr
}

// Sign returns a deterministic fake signature, or ErrWalletRejected when
// configured to simulate user rejection.
func (s *StubSigner) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if s.ApproveAfter > 0 {
		select {
		case <-time.After(s.ApproveAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Reject {
		return nil, domain.ErrWalletRejected
	}

	sig := sha256.Sum256(append([]byte(s.Addr), digest...))
	return sig[:], nil
}

// Verify interface compliance at compile time.
var _ Signer = (*StubSigner)(nil)
