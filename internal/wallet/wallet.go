// Package wallet models the investor's wallet connection and signing
// capability. The signature prompt is user-interactive: an unbounded wait
// that the user can cancel by closing the prompt.
package wallet

import "context"

// Signer is the wallet-side capability required by the on-chain channel.
type Signer interface {
	// Connected reports whether a wallet session is active.
	Connected() bool

	// Address returns the connected account address.
	Address() string

	// Sign asks the wallet to sign a deposit digest. Blocks until the user
	// approves, the user rejects (domain.ErrWalletRejected), or ctx is
	// cancelled.
	Sign(ctx context.Context, digest []byte) ([]byte, error)
}
