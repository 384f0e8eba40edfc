// Package chain provides clients for the crowdfunding escrow contract:
// a JSON-RPC HTTP client for deposits, receipts and project reads, and a
// WebSocket client for contract event subscriptions.
package chain

import (
	"context"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/wallet"
)

// Client defines the escrow contract HTTP interface.
type Client interface {
	// Deposit signs and broadcasts a deposit(projectId, amount) call with
	// the commitment amount as the value transferred. Returns the
	// transaction hash as soon as the node accepts the broadcast; this is
	// a submission reference, not a confirmation.
	Deposit(ctx context.Context, signer wallet.Signer, projectID string, amount float64) (string, error)

	// WaitForReceipt blocks until the transaction identified by txHash is
	// finalized and returns its receipt. The wait is bounded by chain
	// finality and ctx, not by this client.
	WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// GetProject reads the authoritative on-chain project state.
	GetProject(ctx context.Context, projectID string) (*domain.ProjectState, error)
}

// Receipt is the finalized result of a broadcast transaction.
type Receipt struct {
	TxHash      string
	BlockNumber int64
	Success     bool
	Revert      string // revert reason when Success is false
}
