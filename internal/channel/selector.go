// Package channel selects exactly one settlement channel for a validated
// commitment. Pure decision logic: no side effects, validation errors are
// surfaced to the caller.
package channel

import (
	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/wallet"
)

// Selection is the resolved settlement path for one commitment.
type Selection struct {
	Channel domain.Channel

	// On-chain path
	InvestorAddr string

	// Gateway path
	Method   domain.GatewayMethod
	Provider domain.MobileMoneyProvider
}

// Selector resolves the settlement channel from the project's declared
// payment method and the user's choice.
type Selector struct {
	signer wallet.Signer
}

// NewSelector creates a selector. signer may be nil when no wallet session
// exists; the on-chain channel then suspends at the connect-wallet state.
func NewSelector(signer wallet.Signer) *Selector {
	return &Selector{signer: signer}
}

// Select validates the commitment's channel choice and returns exactly one
// selection. All errors are user-recoverable: the flow returns to the
// relevant step and no external call has been made.
func (s *Selector) Select(c *domain.Commitment) (*Selection, error) {
	switch c.Channel {
	case domain.ChannelOnChain:
		if s.signer == nil || !s.signer.Connected() {
			return nil, domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrWalletNotConnected)
		}
		return &Selection{
			Channel:      domain.ChannelOnChain,
			InvestorAddr: s.signer.Address(),
		}, nil

	case domain.ChannelGateway:
		if c.Email == "" && c.Phone == "" {
			return nil, domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrContactRequired)
		}
		method := c.Method
		if method == "" {
			method = domain.GatewayMethodCard
		}
		if !method.IsValid() {
			return nil, domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrChannelInvalid)
		}
		if method == domain.GatewayMethodMobileMoney {
			if c.Phone == "" {
				return nil, domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrPhoneRequired)
			}
			if !c.Provider.IsValid() {
				return nil, domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrProviderRequired)
			}
		}
		return &Selection{
			Channel:  domain.ChannelGateway,
			Method:   method,
			Provider: c.Provider,
		}, nil

	case domain.ChannelWalletBalance:
		return &Selection{Channel: domain.ChannelWalletBalance}, nil
	}

	return nil, domain.NewFlowError(domain.FailureUserRecoverable, domain.ErrChannelInvalid)
}
