package stakerewards

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "zizyhub/native/common"
)

const secondsPerDay = 86400

// Config holds the engine roles and the chain rewards are paid on locally.
type Config struct {
	Owner         common.Address `json:"owner"`
	RewardDefiner common.Address `json:"rewardDefiner"`
	ChainID       uint64         `json:"chainId"`
}

// Mode selects how an account's reward amount is derived.
type Mode uint8

const (
	// ModeUnset marks a reward whose asset has not been configured yet.
	ModeUnset Mode = iota
	// ModeTiered pays the first matching tier amount, optionally vested.
	ModeTiered
	// ModePercentage pays a percentage of the account's stake average.
	ModePercentage
)

func (m Mode) String() string {
	switch m {
	case ModeTiered:
		return "tiered"
	case ModePercentage:
		return "percentage"
	default:
		return "unset"
	}
}

// Tier maps an inclusive stake average band to a reward amount.
type Tier struct {
	StakeMin     *big.Int `json:"stakeMin"`
	StakeMax     *big.Int `json:"stakeMax"`
	RewardAmount *big.Int `json:"rewardAmount"`
}

func (t Tier) matches(average *big.Int) bool {
	return t.StakeMin.Cmp(average) <= 0 && average.Cmp(t.StakeMax) <= 0
}

// Reward is the assembled configuration of one reward id. Pieces are set
// independently; Completed reports whether they add up to a claimable reward.
type Reward struct {
	ID           uint64                  `json:"id"`
	HasVesting   bool                    `json:"hasVesting"`
	VestingStart uint64                  `json:"vestingStart"`
	IntervalDays uint64                  `json:"intervalDays"`
	SliceCount   uint64                  `json:"sliceCount"`
	SnapshotMin  uint64                  `json:"snapshotMin"`
	SnapshotMax  uint64                  `json:"snapshotMax"`
	Tiers        []Tier                  `json:"tiers"`
	Mode         Mode                    `json:"mode"`
	ChainID      uint64                  `json:"chainId"`
	Type         nativecommon.RewardType `json:"rewardType"`
	Address      common.Address          `json:"contractAddress"`
	Total        *big.Int                `json:"total"`
	Percentage   uint64                  `json:"percentage"`
	Distributed  *big.Int                `json:"distributed"`
	ClaimCount   uint64                  `json:"claimCount"`
	Exists       bool                    `json:"exists"`
}

func (r *Reward) normalize() {
	if r.Total == nil {
		r.Total = big.NewInt(0)
	}
	if r.Distributed == nil {
		r.Distributed = big.NewInt(0)
	}
	for i := range r.Tiers {
		if r.Tiers[i].StakeMin == nil {
			r.Tiers[i].StakeMin = big.NewInt(0)
		}
		if r.Tiers[i].StakeMax == nil {
			r.Tiers[i].StakeMax = big.NewInt(0)
		}
		if r.Tiers[i].RewardAmount == nil {
			r.Tiers[i].RewardAmount = big.NewInt(0)
		}
	}
}

// Slices returns how many parts the reward is paid in.
func (r *Reward) Slices() uint64 {
	if r.HasVesting && r.Mode == ModeTiered {
		return r.SliceCount
	}
	return 1
}

// UnlockTime returns the unix time slice index becomes claimable.
func (r *Reward) UnlockTime(index uint64) uint64 {
	if !r.HasVesting || r.Mode != ModeTiered {
		return 0
	}
	return r.VestingStart + index*r.IntervalDays*secondsPerDay
}

// Completed reports whether the reward has every piece it needs to be claimed.
func (r *Reward) Completed() bool {
	if r == nil || !r.Exists {
		return false
	}
	if r.SnapshotMin > r.SnapshotMax {
		return false
	}
	if !nativecommon.IsPositive(r.Total) {
		return false
	}
	switch r.Mode {
	case ModeTiered:
		if len(r.Tiers) == 0 {
			return false
		}
		if r.HasVesting && (r.SliceCount == 0 || r.IntervalDays == 0) {
			return false
		}
		return r.Type.Valid()
	case ModePercentage:
		return r.Percentage > 0 && r.Percentage <= 100
	default:
		return false
	}
}

// Remaining returns the part of the pool not yet distributed.
func (r *Reward) Remaining() *big.Int {
	left := new(big.Int).Sub(r.Total, r.Distributed)
	if left.Sign() < 0 {
		return big.NewInt(0)
	}
	return left
}

// AccountReward is one materialized slice of an account's reward.
type AccountReward struct {
	Amount          *big.Int                `json:"amount"`
	BoostPercentage uint64                  `json:"boostPercentage"`
	Type            nativecommon.RewardType `json:"rewardType"`
	ChainID         uint64                  `json:"chainId"`
	Address         common.Address          `json:"contractAddress"`
	UnlockTime      uint64                  `json:"unlockTime"`
	IsClaimed       bool                    `json:"isClaimed"`
	Exists          bool                    `json:"exists"`
}

func (a *AccountReward) normalize() {
	if a.Amount == nil {
		a.Amount = big.NewInt(0)
	}
}

// BoosterType selects the condition an account must meet for a boost.
type BoosterType uint8

const (
	// BoosterHoldingCollectible requires holding at least one token of a collection.
	BoosterHoldingCollectible BoosterType = iota
	// BoosterStakingBalance requires a stake balance of at least Amount.
	BoosterStakingBalance
)

// Valid reports whether t is a known booster type.
func (t BoosterType) Valid() bool {
	return t == BoosterHoldingCollectible || t == BoosterStakingBalance
}

// Booster adds BoostPercentage to qualifying accounts' rewards.
type Booster struct {
	ID              uint64         `json:"id"`
	Type            BoosterType    `json:"boosterType"`
	ContractAddress common.Address `json:"contractAddress"`
	Amount          *big.Int       `json:"amount"`
	BoostPercentage uint64         `json:"boostPercentage"`
	Exists          bool           `json:"exists"`
}

func (b *Booster) normalize() {
	if b.Amount == nil {
		b.Amount = big.NewInt(0)
	}
}
