// Package stub provides in-memory chain clients for testing.
package stub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"crowdfund-settlement/internal/chain"
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/wallet"
)

// ErrNotFound is returned when a project is not known to the stub.
var ErrNotFound = errors.New("not found")

// Client implements chain.Client for testing. Receipts must be seeded (or
// published via PublishReceipt) before WaitForReceipt resolves.
type Client struct {
	mu       sync.Mutex
	receipts map[string]*chain.Receipt
	waiters  map[string][]chan *chain.Receipt
	projects map[string]*domain.ProjectState

	// DepositErr, when set, fails every Deposit call.
	DepositErr error

	depositCount atomic.Int64
}

// NewClient creates a new stub chain client.
func NewClient() *Client {
	return &Client{
		receipts: make(map[string]*chain.Receipt),
		waiters:  make(map[string][]chan *chain.Receipt),
		projects: make(map[string]*domain.ProjectState),
	}
}

// Verify interface compliance at compile time.
var _ chain.Client = (*Client)(nil)

// Deposit signs via the provided signer and returns a deterministic tx
// hash derived from the call parameters.
func (c *Client) Deposit(ctx context.Context, signer wallet.Signer, projectID string, amount float64) (string, error) {
	if signer == nil || !signer.Connected() {
		return "", domain.ErrWalletNotConnected
	}

	digest := sha256.Sum256([]byte(fmt.Sprintf("%s|%f|%s", projectID, amount, signer.Address())))
	if _, err := signer.Sign(ctx, digest[:]); err != nil {
		return "", err
	}
	if c.DepositErr != nil {
		return "", c.DepositErr
	}

	c.depositCount.Add(1)
	return "0x" + hex.EncodeToString(digest[:]), nil
}

// DepositCount returns how many deposits were broadcast.
func (c *Client) DepositCount() int64 {
	return c.depositCount.Load()
}

// PublishReceipt makes a receipt available, releasing any WaitForReceipt
// callers blocked on the hash.
func (c *Client) PublishReceipt(r *chain.Receipt) {
	c.mu.Lock()
	c.receipts[r.TxHash] = r
	waiters := c.waiters[r.TxHash]
	delete(c.waiters, r.TxHash)
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- r
	}
}

// WaitForReceipt blocks until a receipt for txHash is published or ctx is
// cancelled.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	c.mu.Lock()
	if r, ok := c.receipts[txHash]; ok {
		c.mu.Unlock()
		return r, nil
	}
	ch := make(chan *chain.Receipt, 1)
	c.waiters[txHash] = append(c.waiters[txHash], ch)
	c.mu.Unlock()

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetProject seeds the on-chain project state.
func (c *Client) SetProject(p *domain.ProjectState) {
	c.mu.Lock()
	c.projects[p.ProjectID] = p
	c.mu.Unlock()
}

// GetProject reads the seeded project state.
func (c *Client) GetProject(_ context.Context, projectID string) (*domain.ProjectState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	stateCopy := *p
	return &stateCopy, nil
}

// EventClient implements chain.EventClient for testing. Events pushed via
// Publish are fanned out to every subscriber whose filter matches.
type EventClient struct {
	mu     sync.Mutex
	subs   []eventSub
	closed bool

	onReconnect func()
}

type eventSub struct {
	filter chain.EventFilter
	ch     chan domain.ChainEvent
}

// NewEventClient creates a new stub event client.
func NewEventClient() *EventClient {
	return &EventClient{}
}

// Verify interface compliance at compile time.
var _ chain.EventClient = (*EventClient)(nil)

// SubscribeEvents registers a subscriber for matching events.
func (c *EventClient) SubscribeEvents(_ context.Context, filter chain.EventFilter) (<-chan domain.ChainEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("client closed")
	}

	ch := make(chan domain.ChainEvent, 100)
	c.subs = append(c.subs, eventSub{filter: filter, ch: ch})
	return ch, nil
}

// Publish delivers an event to every matching subscriber.
func (c *EventClient) Publish(event domain.ChainEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	for _, sub := range c.subs {
		if matches(sub.filter, event) {
			sub.ch <- event
		}
	}
}

// OnReconnect registers the reconnect hook, mirroring chain.WSClient.
func (c *EventClient) OnReconnect(fn func()) {
	c.mu.Lock()
	c.onReconnect = fn
	c.mu.Unlock()
}

// SimulateReconnect fires the registered reconnect hook.
func (c *EventClient) SimulateReconnect() {
	c.mu.Lock()
	fn := c.onReconnect
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close closes all subscriber channels.
func (c *EventClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, sub := range c.subs {
		close(sub.ch)
	}
	c.subs = nil
	return nil
}

// matches reports whether an event passes a subscription filter.
func matches(filter chain.EventFilter, event domain.ChainEvent) bool {
	if len(filter.Kinds) > 0 {
		found := false
		for _, k := range filter.Kinds {
			if k == event.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Projects) > 0 {
		found := false
		for _, p := range filter.Projects {
			if p == event.ProjectID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
