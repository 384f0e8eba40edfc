package domain

import "github.com/google/uuid"

// Channel represents the settlement channel for a commitment.
type Channel string

const (
	ChannelOnChain Channel = "ON_CHAIN"
	ChannelGateway Channel = "GATEWAY"
	// ChannelWalletBalance settles against the investor's platform wallet
	// balance. No external chain or gateway hop; the backend response is
	// itself the confirmation.
	ChannelWalletBalance Channel = "WALLET_BALANCE"
)

// String returns the string representation of Channel.
func (c Channel) String() string {
	return string(c)
}

// IsValid checks if the channel is a valid value.
func (c Channel) IsValid() bool {
	return c == ChannelOnChain || c == ChannelGateway || c == ChannelWalletBalance
}

// GatewayMethod represents the payment-gateway sub-channel.
type GatewayMethod string

const (
	GatewayMethodCard        GatewayMethod = "card"
	GatewayMethodMobileMoney GatewayMethod = "mobile_money"
)

// IsValid checks if the gateway method is a valid value.
func (m GatewayMethod) IsValid() bool {
	return m == GatewayMethodCard || m == GatewayMethodMobileMoney
}

// MobileMoneyProvider identifies the mobile-money operator for
// GatewayMethodMobileMoney payments.
type MobileMoneyProvider string

const (
	MobileMoneyMTN    MobileMoneyProvider = "mtn"
	MobileMoneyAirtel MobileMoneyProvider = "airtel"
)

// IsValid checks if the provider is a valid value.
func (p MobileMoneyProvider) IsValid() bool {
	return p == MobileMoneyMTN || p == MobileMoneyAirtel
}

// Commitment is the ephemeral, client-owned record of a user's intent to
// invest. It exists only for the duration of one settlement flow and is
// never persisted independently.
type Commitment struct {
	CommitmentID string  // uuid, assigned at intake
	ProjectID    string  // target project identifier
	Amount       float64 // positive decimal in Currency units
	Currency     string  // asset unit, e.g. "UGX", "ETH"
	Channel      Channel // chosen settlement channel
	TermsOK      bool    // terms-accepted flag

	// Gateway contact details. Email or Phone is required for the gateway
	// channel; Phone and Provider are required for mobile money.
	Email    string
	Phone    string
	Method   GatewayMethod
	Provider MobileMoneyProvider

	// InvestorAddr is the connected wallet address for the on-chain channel.
	InvestorAddr string
}

// NewCommitment creates a commitment with a fresh commitment ID.
func NewCommitment(projectID string, amount float64, currency string) *Commitment {
	return &Commitment{
		CommitmentID: uuid.New().String(),
		ProjectID:    projectID,
		Amount:       amount,
		Currency:     currency,
	}
}
