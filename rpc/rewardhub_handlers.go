package rpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "zizyhub/native/common"
	"zizyhub/native/rewardhub"
)

type rewardSpecParams struct {
	ChainID uint64 `json:"chainId"`
	Type    string `json:"rewardType"`
	Address string `json:"rewardAddress,omitempty"`
	Amount  string `json:"amount,omitempty"`
	TokenID uint64 `json:"tokenId,omitempty"`
}

type competitionRewardParams struct {
	PeriodID      uint64            `json:"periodId"`
	CompetitionID uint64            `json:"competitionId"`
	Ticket        string            `json:"ticket"`
	TicketID      uint64            `json:"ticketId,omitempty"`
	Reward        *rewardSpecParams `json:"reward,omitempty"`
	ChainID       uint64            `json:"chainId,omitempty"`
	Token         string            `json:"token,omitempty"`
	TicketIDs     []uint64          `json:"ticketIds,omitempty"`
	Amounts       []string          `json:"amounts,omitempty"`
}

type airdropParams struct {
	CampaignID uint64            `json:"campaignId"`
	Account    string            `json:"account,omitempty"`
	Index      uint64            `json:"index,omitempty"`
	Reward     *rewardSpecParams `json:"reward,omitempty"`
	ChainID    uint64            `json:"chainId,omitempty"`
	Token      string            `json:"token,omitempty"`
	Accounts   []string          `json:"accounts,omitempty"`
	Amounts    []string          `json:"amounts,omitempty"`
	All        bool              `json:"all,omitempty"`
}

type rewardResult struct {
	ID            uint64 `json:"id"`
	PeriodID      uint64 `json:"periodId,omitempty"`
	CompetitionID uint64 `json:"competitionId,omitempty"`
	ChainID       uint64 `json:"chainId"`
	Type          string `json:"rewardType"`
	Address       string `json:"rewardAddress"`
	Amount        string `json:"amount"`
	TokenID       uint64 `json:"tokenId"`
	Claimed       bool   `json:"isClaimed"`
}

func rewardResultFrom(r *rewardhub.Reward) rewardResult {
	return rewardResult{
		ID:            r.ID,
		PeriodID:      r.PeriodID,
		CompetitionID: r.CompetitionID,
		ChainID:       r.ChainID,
		Type:          r.Type.String(),
		Address:       r.Address.Hex(),
		Amount:        formatAmount(r.Amount),
		TokenID:       r.TokenID,
		Claimed:       r.IsClaimed,
	}
}

func (p *rewardSpecParams) spec() (rewardhub.RewardSpec, error) {
	if p == nil {
		return rewardhub.RewardSpec{}, invalidParams("reward is required")
	}
	kind, err := nativecommon.ParseRewardType(p.Type)
	if err != nil {
		return rewardhub.RewardSpec{}, invalidParams(err.Error())
	}
	addr, err := parseOptionalAddress("reward", p.Address)
	if err != nil {
		return rewardhub.RewardSpec{}, err
	}
	spec := rewardhub.RewardSpec{ChainID: p.ChainID, Type: kind, Address: addr, TokenID: p.TokenID}
	if kind != nativecommon.RewardNFT {
		if spec.Amount, err = parseAmount(p.Amount); err != nil {
			return rewardhub.RewardSpec{}, err
		}
	}
	return spec, nil
}

func (s *Server) registerRewardHubMethods() {
	s.register("rewardhub_config", "rewardhub", false, s.handleRewardHubConfig)
	s.register("rewardhub_competitionReward", "rewardhub", false, s.handleGetCompetitionReward)
	s.register("rewardhub_airdropReward", "rewardhub", false, s.handleGetAirdropReward)
	s.register("rewardhub_airdropRewardCount", "rewardhub", false, s.handleAirdropRewardCount)

	s.register("rewardhub_setRewardDefiner", "rewardhub", true, s.handleSetHubRewardDefiner)
	s.register("rewardhub_setCompetitionReward", "rewardhub", true, s.handleSetCompetitionReward)
	s.register("rewardhub_setCompetitionRewardBatch", "rewardhub", true, s.handleSetCompetitionRewardBatch)
	s.register("rewardhub_setAirdropReward", "rewardhub", true, s.handleSetAirdropReward)
	s.register("rewardhub_setAirdropRewardBatch", "rewardhub", true, s.handleSetAirdropRewardBatch)
	s.register("rewardhub_removeAirdropReward", "rewardhub", true, s.handleRemoveAirdropReward)
	s.register("rewardhub_claimCompetitionReward", "rewardhub", true, s.handleClaimCompetitionReward)
	s.register("rewardhub_claimAirdropReward", "rewardhub", true, s.handleClaimAirdropReward)
	s.registerTreasuryMethods("rewardhub", "rewardhub", s.node.RewardHub().Treasury)
}

func (s *Server) handleRewardHubConfig(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	return view(s, s.node.RewardHub().Config)
}

func (s *Server) handleGetCompetitionReward(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionRewardParams](raw)
	if err != nil {
		return nil, err
	}
	ticket, err := parseAddress("ticket", params.Ticket)
	if err != nil {
		return nil, err
	}
	reward, err := view(s, func() (*rewardhub.Reward, error) {
		return s.node.RewardHub().CompetitionReward(ticket, params.TicketID)
	})
	if err != nil {
		return nil, err
	}
	return rewardResultFrom(reward), nil
}

func (s *Server) handleGetAirdropReward(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[airdropParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	reward, err := view(s, func() (*rewardhub.Reward, error) {
		return s.node.RewardHub().AirdropReward(account, params.CampaignID, params.Index)
	})
	if err != nil {
		return nil, err
	}
	return rewardResultFrom(reward), nil
}

func (s *Server) handleAirdropRewardCount(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[airdropParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	type counts struct {
		Total     uint64 `json:"total"`
		Unclaimed uint64 `json:"unclaimed"`
	}
	return view(s, func() (counts, error) {
		var out counts
		var err error
		if out.Total, err = s.node.RewardHub().AirdropRewardCount(account, params.CampaignID); err != nil {
			return out, err
		}
		out.Unclaimed, err = s.node.RewardHub().UnclaimedAirdropRewardCount(account, params.CampaignID)
		return out, err
	})
}

func (s *Server) handleSetHubRewardDefiner(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
		return s.node.RewardHub().SetRewardDefiner(caller, addr)
	})
}

func (s *Server) handleSetCompetitionReward(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionRewardParams](raw)
	if err != nil {
		return nil, err
	}
	ticket, err := parseAddress("ticket", params.Ticket)
	if err != nil {
		return nil, err
	}
	spec, err := params.Reward.spec()
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.RewardHub().SetCompetitionReward(caller, params.PeriodID, params.CompetitionID, ticket, params.TicketID, spec)
	}); err != nil {
		return nil, err
	}
	return s.handleGetCompetitionReward(ctx, caller, raw)
}

// handleSetCompetitionRewardBatch defines token rewards when token is given,
// native rewards otherwise.
func (s *Server) handleSetCompetitionRewardBatch(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionRewardParams](raw)
	if err != nil {
		return nil, err
	}
	ticket, err := parseAddress("ticket", params.Ticket)
	if err != nil {
		return nil, err
	}
	token, err := parseOptionalAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	amounts, err := parseQuantities(params.Amounts)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, caller, func() error {
		hub := s.node.RewardHub()
		if token == (common.Address{}) {
			return hub.SetCompetitionNativeRewardBatch(caller, params.PeriodID, params.CompetitionID, ticket, params.ChainID, params.TicketIDs, amounts)
		}
		return hub.SetCompetitionTokenRewardBatch(caller, params.PeriodID, params.CompetitionID, ticket, params.ChainID, token, params.TicketIDs, amounts)
	})
	if err != nil {
		return nil, err
	}
	return map[string]int{"defined": len(params.TicketIDs)}, nil
}

func (s *Server) handleSetAirdropReward(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[airdropParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	spec, err := params.Reward.spec()
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.RewardHub().SetAirdropReward(caller, account, params.CampaignID, spec)
	}); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSetAirdropRewardBatch(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[airdropParams](raw)
	if err != nil {
		return nil, err
	}
	accounts, err := parseAddresses("account", params.Accounts)
	if err != nil {
		return nil, err
	}
	token, err := parseOptionalAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	amounts, err := parseQuantities(params.Amounts)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, caller, func() error {
		hub := s.node.RewardHub()
		if token == (common.Address{}) {
			return hub.SetAirdropNativeRewardBatch(caller, params.CampaignID, params.ChainID, accounts, amounts)
		}
		return hub.SetAirdropTokenRewardBatch(caller, params.CampaignID, token, params.ChainID, accounts, amounts)
	})
	if err != nil {
		return nil, err
	}
	return map[string]int{"defined": len(accounts)}, nil
}

func (s *Server) handleRemoveAirdropReward(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[airdropParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.RewardHub().RemoveAirdropReward(caller, account, params.CampaignID, params.Index)
	}); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleClaimCompetitionReward(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionRewardParams](raw)
	if err != nil {
		return nil, err
	}
	ticket, err := parseAddress("ticket", params.Ticket)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.RewardHub().ClaimCompetitionReward(caller, ticket, params.TicketID)
	}); err != nil {
		return nil, err
	}
	return s.handleGetCompetitionReward(ctx, caller, raw)
}

// handleClaimAirdropReward claims one entry, or every unclaimed entry of the
// campaign when all is set.
func (s *Server) handleClaimAirdropReward(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[airdropParams](raw)
	if err != nil {
		return nil, err
	}
	claimed := 0
	err = s.mutate(ctx, caller, func() error {
		if params.All {
			var err error
			claimed, err = s.node.RewardHub().ClaimAllAirdropRewards(caller, params.CampaignID)
			return err
		}
		claimed = 1
		return s.node.RewardHub().ClaimAirdropReward(caller, params.CampaignID, params.Index)
	})
	if err != nil {
		return nil, err
	}
	return map[string]int{"claimed": claimed}, nil
}
