package stakerewards

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
)

const (
	EventTypeRewardConfigUpdated     = "stakerewards.reward.config_updated"
	EventTypeRewardTiersUpdated      = "stakerewards.reward.tiers_updated"
	EventTypeRewardAssetUpdated      = "stakerewards.reward.asset_updated"
	EventTypeRewardClaimed           = "stakerewards.reward.claimed"
	EventTypeRewardClaimedCrossChain = "stakerewards.reward.claimed_cross_chain"
	EventTypeBoosterUpdated          = "stakerewards.booster.updated"
	EventTypeBoosterRemoved          = "stakerewards.booster.removed"
	EventTypeRewardDefinerUpdated    = "stakerewards.reward_definer.updated"
)

func (e *Engine) emit(kind string, attrs map[string]string) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}

func rewardAttributes(r *Reward) map[string]string {
	return map[string]string{
		"rewardId":        strconv.FormatUint(r.ID, 10),
		"mode":            r.Mode.String(),
		"chainId":         strconv.FormatUint(r.ChainID, 10),
		"rewardType":      r.Type.String(),
		"contractAddress": r.Address.Hex(),
		"total":           r.Total.String(),
	}
}

// claimAttributes mirrors the reward hub claim payload so the settlement
// worker reads both with one decoder.
func claimAttributes(account common.Address, rewardID, index uint64, slice *AccountReward) map[string]string {
	return map[string]string{
		"account":       account.Hex(),
		"rewardId":      strconv.FormatUint(rewardID, 10),
		"vestingIndex":  strconv.FormatUint(index, 10),
		"chainId":       strconv.FormatUint(slice.ChainID, 10),
		"rewardType":    slice.Type.String(),
		"rewardAddress": slice.Address.Hex(),
		"amount":        slice.Amount.String(),
		"tokenId":       "0",
	}
}

func boosterAttributes(b *Booster) map[string]string {
	return map[string]string{
		"boosterId":       strconv.FormatUint(b.ID, 10),
		"boosterType":     strconv.FormatUint(uint64(b.Type), 10),
		"contractAddress": b.ContractAddress.Hex(),
		"amount":          b.Amount.String(),
		"boostPercentage": strconv.FormatUint(b.BoostPercentage, 10),
	}
}
