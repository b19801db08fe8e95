package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/stakerewards"
)

type tierParams struct {
	StakeMin     string `json:"stakeMin"`
	StakeMax     string `json:"stakeMax"`
	RewardAmount string `json:"rewardAmount"`
}

type stakeRewardParams struct {
	ID           uint64       `json:"id"`
	HasVesting   bool         `json:"hasVesting,omitempty"`
	VestingStart uint64       `json:"vestingStart,omitempty"`
	IntervalDays uint64       `json:"intervalDays,omitempty"`
	SliceCount   uint64       `json:"sliceCount,omitempty"`
	SnapshotMin  uint64       `json:"snapshotMin,omitempty"`
	SnapshotMax  uint64       `json:"snapshotMax,omitempty"`
	Tiers        []tierParams `json:"tiers,omitempty"`
	Kind         string       `json:"kind,omitempty"`
	ChainID      uint64       `json:"chainId,omitempty"`
	Token        string       `json:"token,omitempty"`
	Total        string       `json:"total,omitempty"`
	Percentage   uint64       `json:"percentage,omitempty"`
	Account      string       `json:"account,omitempty"`
	Index        uint64       `json:"index,omitempty"`
}

type boosterParams struct {
	ID         uint64 `json:"id"`
	Type       string `json:"boosterType,omitempty"`
	Contract   string `json:"contractAddress,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Percentage uint64 `json:"boostPercentage,omitempty"`
}

type accountRewardResult struct {
	Amount          string `json:"amount"`
	BoostPercentage uint64 `json:"boostPercentage"`
	Type            string `json:"rewardType"`
	ChainID         uint64 `json:"chainId"`
	Address         string `json:"contractAddress"`
	UnlockTime      uint64 `json:"unlockTime"`
	Claimed         bool   `json:"isClaimed"`
	Claimable       bool   `json:"claimable"`
}

func parseBoosterType(s string) (stakerewards.BoosterType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "collectible", "nft":
		return stakerewards.BoosterHoldingCollectible, nil
	case "staking", "stake":
		return stakerewards.BoosterStakingBalance, nil
	}
	return 0, invalidParams("boosterType must be collectible or staking")
}

func (s *Server) registerStakeRewardsMethods() {
	s.register("stakerewards_config", "stakerewards", false, s.handleStakeRewardsConfig)
	s.register("stakerewards_reward", "stakerewards", false, s.handleStakeReward)
	s.register("stakerewards_accountReward", "stakerewards", false, s.handleAccountReward)
	s.register("stakerewards_booster", "stakerewards", false, s.handleBooster)
	s.register("stakerewards_snapshotsAverage", "stakerewards", false, s.handleStakeSnapshotsAverage)
	s.register("stakerewards_rewardTier", "stakerewards", false, s.handleRewardTier)
	s.register("stakerewards_boostPercentage", "stakerewards", false, s.handleBoostPercentage)

	s.register("stakerewards_setRewardDefiner", "stakerewards", true, s.handleSetStakeRewardDefiner)
	s.register("stakerewards_setRewardConfig", "stakerewards", true, s.handleSetRewardConfig)
	s.register("stakerewards_setRewardTiers", "stakerewards", true, s.handleSetRewardTiers)
	s.register("stakerewards_setRewardAsset", "stakerewards", true, s.handleSetRewardAsset)
	s.register("stakerewards_setBooster", "stakerewards", true, s.handleSetBooster)
	s.register("stakerewards_removeBooster", "stakerewards", true, s.handleRemoveBooster)
	s.register("stakerewards_claim", "stakerewards", true, s.handleClaimStakeReward)
	s.registerTreasuryMethods("stakerewards", "stakerewards", s.node.StakeRewards().Treasury)
}

func (s *Server) handleStakeRewardsConfig(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	return view(s, s.node.StakeRewards().Config)
}

func (s *Server) handleStakeReward(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	type result struct {
		*stakerewards.Reward
		Complete bool `json:"complete"`
	}
	return view(s, func() (result, error) {
		engine := s.node.StakeRewards()
		reward, err := engine.Reward(params.ID)
		if err != nil {
			return result{}, err
		}
		complete, err := engine.IsRewardConfigsCompleted(params.ID)
		return result{Reward: reward, Complete: complete}, err
	})
}

func (s *Server) handleAccountReward(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	return view(s, func() (accountRewardResult, error) {
		engine := s.node.StakeRewards()
		ar, err := engine.AccountReward(account, params.ID, params.Index)
		if err != nil {
			return accountRewardResult{}, err
		}
		claimable, err := engine.IsRewardClaimable(account, params.ID, params.Index)
		if err != nil {
			return accountRewardResult{}, err
		}
		return accountRewardResult{
			Amount:          formatAmount(ar.Amount),
			BoostPercentage: ar.BoostPercentage,
			Type:            ar.Type.String(),
			ChainID:         ar.ChainID,
			Address:         ar.Address.Hex(),
			UnlockTime:      ar.UnlockTime,
			Claimed:         ar.IsClaimed,
			Claimable:       claimable,
		}, nil
	})
}

func (s *Server) handleBooster(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[boosterParams](raw)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*stakerewards.Booster, error) { return s.node.StakeRewards().Booster(params.ID) })
}

func (s *Server) handleStakeSnapshotsAverage(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	avg, err := view(s, func() (*big.Int, error) {
		return s.node.StakeRewards().SnapshotsAverageCalculation(account, params.SnapshotMin, params.SnapshotMax)
	})
	if err != nil {
		return nil, err
	}
	return averageResult{Average: formatAmount(avg), Calculated: true}, nil
}

func (s *Server) handleSetStakeRewardDefiner(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
		return s.node.StakeRewards().SetRewardDefiner(caller, addr)
	})
}

func (s *Server) handleSetRewardConfig(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	return s.stakeRewardMutation(ctx, caller, params.ID, func() error {
		return s.node.StakeRewards().SetRewardConfig(caller, params.ID, params.HasVesting, params.VestingStart,
			params.IntervalDays, params.SliceCount, params.SnapshotMin, params.SnapshotMax)
	})
}

func (s *Server) handleSetRewardTiers(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	tiers := make([]stakerewards.Tier, len(params.Tiers))
	for i, t := range params.Tiers {
		if tiers[i].StakeMin, err = parseQuantity(t.StakeMin); err != nil {
			return nil, err
		}
		if tiers[i].StakeMax, err = parseQuantity(t.StakeMax); err != nil {
			return nil, err
		}
		if tiers[i].RewardAmount, err = parseQuantity(t.RewardAmount); err != nil {
			return nil, err
		}
	}
	return s.stakeRewardMutation(ctx, caller, params.ID, func() error {
		return s.node.StakeRewards().SetRewardTiers(caller, params.ID, tiers)
	})
}

// handleSetRewardAsset selects the payout mode: token, native or percentage.
func (s *Server) handleSetRewardAsset(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	var apply func() error
	engine := s.node.StakeRewards()
	switch strings.ToLower(strings.TrimSpace(params.Kind)) {
	case "token":
		token, err := parseAddress("token", params.Token)
		if err != nil {
			return nil, err
		}
		total, err := parseAmount(params.Total)
		if err != nil {
			return nil, err
		}
		apply = func() error { return engine.SetTokenReward(caller, params.ID, params.ChainID, token, total) }
	case "native":
		total, err := parseAmount(params.Total)
		if err != nil {
			return nil, err
		}
		apply = func() error { return engine.SetNativeReward(caller, params.ID, params.ChainID, total) }
	case "percentage":
		token, err := parseAddress("token", params.Token)
		if err != nil {
			return nil, err
		}
		ceiling, err := parseAmount(params.Total)
		if err != nil {
			return nil, err
		}
		apply = func() error {
			return engine.SetStakePercentageReward(caller, params.ID, token, ceiling, params.Percentage)
		}
	default:
		return nil, invalidParams("kind must be token, native or percentage")
	}
	return s.stakeRewardMutation(ctx, caller, params.ID, apply)
}

func (s *Server) stakeRewardMutation(ctx context.Context, caller common.Address, id uint64, fn func() error) (interface{}, error) {
	if err := s.mutate(ctx, caller, fn); err != nil {
		return nil, err
	}
	return view(s, func() (*stakerewards.Reward, error) { return s.node.StakeRewards().Reward(id) })
}

func (s *Server) handleSetBooster(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[boosterParams](raw)
	if err != nil {
		return nil, err
	}
	kind, err := parseBoosterType(params.Type)
	if err != nil {
		return nil, err
	}
	contract, err := parseOptionalAddress("contract", params.Contract)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	if strings.TrimSpace(params.Amount) != "" {
		if amount, err = parseQuantity(params.Amount); err != nil {
			return nil, err
		}
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.StakeRewards().SetBooster(caller, params.ID, kind, contract, amount, params.Percentage)
	}); err != nil {
		return nil, err
	}
	return view(s, func() (*stakerewards.Booster, error) { return s.node.StakeRewards().Booster(params.ID) })
}

func (s *Server) handleRemoveBooster(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[boosterParams](raw)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.StakeRewards().RemoveBooster(caller, params.ID)
	}); err != nil {
		return nil, err
	}
	count, err := view(s, s.node.StakeRewards().BoosterCount)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"boosterCount": count}, nil
}

func (s *Server) handleClaimStakeReward(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.StakeRewards().ClaimReward(caller, params.ID, params.Index)
	}); err != nil {
		return nil, err
	}
	params.Account = caller.Hex()
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return s.handleAccountReward(ctx, caller, []json.RawMessage{data})
}

type rewardTierResult struct {
	Tier  tierParams `json:"tier"`
	Count uint64     `json:"count"`
}

func (s *Server) handleRewardTier(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	var out rewardTierResult
	err = s.node.View(func() error {
		engine := s.node.StakeRewards()
		count, err := engine.RewardTierCount(params.ID)
		if err != nil {
			return err
		}
		tier, err := engine.RewardTier(params.ID, params.Index)
		if err != nil {
			return err
		}
		out = rewardTierResult{
			Tier: tierParams{
				StakeMin:     formatAmount(tier.StakeMin),
				StakeMax:     formatAmount(tier.StakeMax),
				RewardAmount: formatAmount(tier.RewardAmount),
			},
			Count: count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// handleBoostPercentage reports the boost an account would receive on a slice.
func (s *Server) handleBoostPercentage(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeRewardParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	pct, err := view(s, func() (uint64, error) {
		return s.node.StakeRewards().AccountBoostPercentage(account, params.ID, params.Index)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"boostPercentage": pct}, nil
}
