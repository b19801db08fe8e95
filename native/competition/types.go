package competition

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/staking"
)

// Config holds the registry roles and counters.
type Config struct {
	Owner                 common.Address `json:"owner"`
	PaymentReceiver       common.Address `json:"paymentReceiver"`
	TicketMinter          common.Address `json:"ticketMinter"`
	ActivePeriod          uint64         `json:"activePeriod"`
	TotalCompetitionCount uint64         `json:"totalCompetitionCount"`
}

// Period is a competition round. Over is never stored: it is derived from
// the clock and the active period on every read.
type Period struct {
	ID                 uint64   `json:"id"`
	StartTime          uint64   `json:"startTime"`
	EndTime            uint64   `json:"endTime"`
	TicketBuyStartTime uint64   `json:"ticketBuyStartTime"`
	TicketBuyEndTime   uint64   `json:"ticketBuyEndTime"`
	CompetitionIDs     []uint64 `json:"competitionIds"`
	Activated          bool     `json:"activated"`
	Exists             bool     `json:"exists"`
}

// PeriodView is the read model returned to callers.
type PeriodView struct {
	Period
	CompetitionCount uint64 `json:"competitionCount"`
	IsOver           bool   `json:"isOver"`
	IsActive         bool   `json:"isActive"`
}

func (p *Period) window() *staking.Period {
	return &staking.Period{
		ID:                 p.ID,
		StartTime:          p.StartTime,
		EndTime:            p.EndTime,
		TicketBuyStartTime: p.TicketBuyStartTime,
		TicketBuyEndTime:   p.TicketBuyEndTime,
	}
}

// Tier maps a stake average range to a ticket allocation. Bounds are inclusive.
type Tier struct {
	Min        *big.Int `json:"min"`
	Max        *big.Int `json:"max"`
	Allocation uint64   `json:"allocation"`
}

func (t Tier) matches(average *big.Int) bool {
	return t.Min.Cmp(average) <= 0 && average.Cmp(t.Max) <= 0
}

// Competition belongs to a period and sells tickets on its own ledger.
type Competition struct {
	PeriodID    uint64         `json:"periodId"`
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Ticket      common.Address `json:"ticket"`
	SellToken   common.Address `json:"sellToken"`
	TicketPrice *big.Int       `json:"ticketPrice"`
	SnapshotMin uint64         `json:"snapshotMin"`
	SnapshotMax uint64         `json:"snapshotMax"`
	TicketSold  uint64         `json:"ticketSold"`
	Tiers       []Tier         `json:"tiers"`
	Exists      bool           `json:"exists"`
}

func (c *Competition) paymentConfigured() bool {
	return c.TicketPrice != nil && c.TicketPrice.Sign() > 0 && c.SellToken != (common.Address{})
}

// Purchase counts the tickets an account bought and had minted in one competition.
type Purchase struct {
	Bought uint64 `json:"bought"`
	Minted uint64 `json:"minted"`
}

// Allocation is the derived buy limit of an account.
type Allocation struct {
	HasAllocation bool   `json:"hasAllocation"`
	Max           uint64 `json:"max"`
	Bought        uint64 `json:"bought"`
}
