package rewardhub

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
)

const (
	EventTypeCompetitionRewardSet         = "rewardhub.competition.reward_set"
	EventTypeCompetitionRewardUpdated     = "rewardhub.competition.reward_updated"
	EventTypeCompetitionClaimed           = "rewardhub.competition.claimed"
	EventTypeCompetitionClaimedCrossChain = "rewardhub.competition.claimed_cross_chain"
	EventTypeAirdropRewardSet             = "rewardhub.airdrop.reward_set"
	EventTypeAirdropRewardRemoved         = "rewardhub.airdrop.reward_removed"
	EventTypeAirdropClaimed               = "rewardhub.airdrop.claimed"
	EventTypeAirdropClaimedCrossChain     = "rewardhub.airdrop.claimed_cross_chain"
	EventTypeRewardDefinerUpdated         = "rewardhub.reward_definer.updated"
)

func (h *Hub) emit(kind string, attrs map[string]string) {
	if h.emitter == nil {
		return
	}
	h.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}

// rewardAttributes carries everything a settlement worker needs to pay a
// reward on its target chain.
func rewardAttributes(account common.Address, r *Reward) map[string]string {
	return map[string]string{
		"account":       account.Hex(),
		"rewardId":      strconv.FormatUint(r.ID, 10),
		"chainId":       strconv.FormatUint(r.ChainID, 10),
		"rewardType":    r.Type.String(),
		"rewardAddress": r.Address.Hex(),
		"amount":        r.Amount.String(),
		"tokenId":       strconv.FormatUint(r.TokenID, 10),
	}
}

func competitionAttributes(account, ticket common.Address, ticketID uint64, r *Reward) map[string]string {
	attrs := rewardAttributes(account, r)
	attrs["periodId"] = strconv.FormatUint(r.PeriodID, 10)
	attrs["competitionId"] = strconv.FormatUint(r.CompetitionID, 10)
	attrs["ticket"] = ticket.Hex()
	attrs["ticketId"] = strconv.FormatUint(ticketID, 10)
	return attrs
}

func airdropAttributes(account common.Address, campaignID, index uint64, r *Reward) map[string]string {
	attrs := rewardAttributes(account, r)
	attrs["campaignId"] = strconv.FormatUint(campaignID, 10)
	attrs["index"] = strconv.FormatUint(index, 10)
	return attrs
}
