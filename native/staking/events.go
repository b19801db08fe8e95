package staking

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
)

const (
	EventTypeStaked               = "staking.staked"
	EventTypeUnstaked             = "staking.unstaked"
	EventTypeSnapshotTaken        = "staking.snapshot.taken"
	EventTypeFeeReceiverUpdated   = "staking.fee_receiver.updated"
	EventTypeCoolingOffUpdated    = "staking.cooling_off.updated"
	EventTypeStakeFeeUpdated      = "staking.stake_fee.updated"
	EventTypeLockModeratorUpdated = "staking.lock_moderator.updated"
	EventTypeFactoryUpdated       = "staking.competition_factory.updated"
	EventTypeAccountLocked        = "staking.account.locked"
	EventTypeAccountUnlocked      = "staking.account.unlocked"
	EventTypeAverageCalculated    = "staking.period.average_calculated"
)

func (e *Engine) emit(kind string, attrs map[string]string) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}

func stakeEvent(kind string, account common.Address, amount, fee *big.Int, snapshotID uint64) (string, map[string]string) {
	return kind, map[string]string{
		"account":    account.Hex(),
		"amount":     amount.String(),
		"fee":        fee.String(),
		"snapshotId": strconv.FormatUint(snapshotID, 10),
	}
}

func snapshotEvent(id, periodID uint64) (string, map[string]string) {
	return EventTypeSnapshotTaken, map[string]string{
		"snapshotId": strconv.FormatUint(id, 10),
		"periodId":   strconv.FormatUint(periodID, 10),
	}
}

func addressEvent(kind, field string, addr common.Address) (string, map[string]string) {
	return kind, map[string]string{field: addr.Hex()}
}
