package popa

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultAllocationPercentage is the share of a period's ticket allocation
// an account must have bought to claim that period's collectible.
const DefaultAllocationPercentage = 10

// Config holds the gate roles and claim terms.
type Config struct {
	Owner                common.Address `json:"owner"`
	Minter               common.Address `json:"minter"`
	CompetitionFactory   common.Address `json:"competitionFactory"`
	ClaimPayment         *big.Int       `json:"claimPayment"`
	AllocationPercentage uint64         `json:"allocationPercentage"`
}

func (c *Config) normalize() {
	if c.ClaimPayment == nil {
		c.ClaimPayment = big.NewInt(0)
	}
}

// Deployment links a period to its collectible collection.
type Deployment struct {
	PeriodID   uint64         `json:"periodId"`
	Collection common.Address `json:"collection"`
	Exists     bool           `json:"exists"`
}

// Claim tracks one account's collectible for one period.
type Claim struct {
	Claimed bool   `json:"claimed"`
	Minted  bool   `json:"minted"`
	TokenID uint64 `json:"tokenId"`
}
