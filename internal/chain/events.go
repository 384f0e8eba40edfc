package chain

import (
	"context"

	"crowdfund-settlement/internal/domain"
)

// EventClient defines the escrow contract WebSocket subscription interface.
type EventClient interface {
	// SubscribeEvents subscribes to escrow contract events matching the
	// filter. The returned channel stays open across reconnects and is
	// closed when the client is closed.
	SubscribeEvents(ctx context.Context, filter EventFilter) (<-chan domain.ChainEvent, error)

	// Close closes the WebSocket connection and all subscriptions.
	Close() error
}

// EventFilter selects which contract events a subscription receives.
type EventFilter struct {
	// Kinds limits the subscription to these event classes. Empty means
	// all four escrow event classes.
	Kinds []domain.EventKind

	// Projects limits the subscription to these on-chain project IDs.
	// Empty means all projects.
	Projects []string
}
