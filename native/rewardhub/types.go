package rewardhub

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "zizyhub/native/common"
)

// Config holds the hub roles. ChainID identifies the chain this hub pays
// out on; rewards tagged with any other chain are settled elsewhere.
type Config struct {
	Owner         common.Address `json:"owner"`
	RewardDefiner common.Address `json:"rewardDefiner"`
	ChainID       uint64         `json:"chainId"`
	NextRewardID  uint64         `json:"nextRewardId"`
}

// Reward is a competition or airdrop reward record. PeriodID and
// CompetitionID are zero for airdrops.
type Reward struct {
	ID            uint64                  `json:"id"`
	PeriodID      uint64                  `json:"periodId"`
	CompetitionID uint64                  `json:"competitionId"`
	ChainID       uint64                  `json:"chainId"`
	Type          nativecommon.RewardType `json:"rewardType"`
	Address       common.Address          `json:"rewardAddress"`
	Amount        *big.Int                `json:"amount"`
	TokenID       uint64                  `json:"tokenId"`
	IsClaimed     bool                    `json:"isClaimed"`
	Exists        bool                    `json:"exists"`
}

func (r *Reward) normalize() {
	if r.Amount == nil {
		r.Amount = big.NewInt(0)
	}
}

// RewardSpec is the definer supplied part of a reward.
type RewardSpec struct {
	ChainID uint64
	Type    nativecommon.RewardType
	Address common.Address
	Amount  *big.Int
	TokenID uint64
}
