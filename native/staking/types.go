package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	secondsPerDay = 24 * 60 * 60

	// MaxCoolingPercentage bounds the unstake fee.
	MaxCoolingPercentage = 25
	// MaxStakeFeePercentage bounds the stake fee.
	MaxStakeFeePercentage = 5
)

// Config holds the ledger roles and fee settings.
type Config struct {
	Owner              common.Address `json:"owner"`
	StakeToken         common.Address `json:"stakeToken"`
	FeeAddress         common.Address `json:"feeAddress"`
	CompetitionFactory common.Address `json:"competitionFactory"`
	LockModerator      common.Address `json:"lockModerator"`
	StakeFeePercentage uint64         `json:"stakeFeePercentage"`
	CoolingPercentage  uint64         `json:"coolingPercentage"`
	// CoolingDelay and CoolestDelay are offsets from period start in seconds.
	CoolingDelay uint64   `json:"coolingDelay"`
	CoolestDelay uint64   `json:"coolestDelay"`
	SnapshotID   uint64   `json:"snapshotId"`
	ActivePeriod uint64   `json:"activePeriod"`
	TotalStaked  *big.Int `json:"totalStaked"`
}

// Account is the per-staker record.
type Account struct {
	Balance             *big.Int `json:"balance"`
	LastSnapshotID      uint64   `json:"lastSnapshotId"`
	LastActivityBalance *big.Int `json:"lastActivityBalance"`
	Exists              bool     `json:"exists"`
	Locked              bool     `json:"locked"`
}

// Checkpoint is the balance an account carried into snapshot Epoch.
type Checkpoint struct {
	Epoch   uint64
	Balance *big.Int
}

// PeriodRange is the span of snapshots taken while a period was active.
type PeriodRange struct {
	Min    uint64 `json:"min"`
	Max    uint64 `json:"max"`
	Exists bool   `json:"exists"`
}

// PeriodAverage caches an account's stake average for a period.
type PeriodAverage struct {
	Average      *big.Int `json:"average"`
	IsCalculated bool     `json:"isCalculated"`
}

// Period is the part of a competition period the ledger reads.
type Period struct {
	ID                 uint64
	StartTime          uint64
	EndTime            uint64
	TicketBuyStartTime uint64
	TicketBuyEndTime   uint64
}

// InBuyWindow reports whether now falls in the ticket buy window.
func (p *Period) InBuyWindow(now int64) bool {
	if p == nil || now < 0 {
		return false
	}
	ts := uint64(now)
	return ts >= p.TicketBuyStartTime && ts <= p.TicketBuyEndTime
}
