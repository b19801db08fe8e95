package rpc

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/staking"
)

type stakeAmountParams struct {
	Amount string `json:"amount"`
}

type stakeAccountParams struct {
	Account    string `json:"account"`
	SnapshotID uint64 `json:"snapshotId,omitempty"`
	PeriodID   uint64 `json:"periodId,omitempty"`
	Min        uint64 `json:"min,omitempty"`
	Max        uint64 `json:"max,omitempty"`
}

type stakingAdminParams struct {
	Address     string  `json:"address,omitempty"`
	Percentage  *uint64 `json:"percentage,omitempty"`
	CoolingDays uint64  `json:"coolingDays,omitempty"`
	CoolestDays uint64  `json:"coolestDays,omitempty"`
}

type stakingAccountResult struct {
	Address             string `json:"address"`
	Balance             string `json:"balance"`
	LastSnapshotID      uint64 `json:"lastSnapshotId"`
	LastActivityBalance string `json:"lastActivityBalance"`
	Locked              bool   `json:"locked"`
}

type unstakePreviewResult struct {
	Fee    string `json:"fee"`
	Payout string `json:"payout"`
}

type averageResult struct {
	Average    string `json:"average"`
	Calculated bool   `json:"calculated"`
}

func (s *Server) registerStakingMethods() {
	s.register("staking_config", "staking", false, s.handleStakingConfig)
	s.register("staking_account", "staking", false, s.handleStakingAccount)
	s.register("staking_previewUnstake", "staking", false, s.handlePreviewUnstake)
	s.register("staking_snapshotId", "staking", false, s.handleSnapshotID)
	s.register("staking_snapshotBalance", "staking", false, s.handleSnapshotBalance)
	s.register("staking_periodSnapshotRange", "staking", false, s.handlePeriodSnapshotRange)
	s.register("staking_snapshotAverage", "staking", false, s.handleSnapshotAverage)
	s.register("staking_periodStakeAverage", "staking", false, s.handlePeriodStakeAverage)

	s.register("staking_stake", "staking", true, s.handleStake)
	s.register("staking_unstake", "staking", true, s.handleUnstake)
	s.register("staking_snapshot", "staking", true, s.handleSnapshot)
	s.register("staking_calculatePeriodStakeAverage", "staking", true, s.handleCalculatePeriodStakeAverage)
	s.register("staking_setFeeAddress", "staking", true, s.handleSetFeeAddress)
	s.register("staking_setLockModerator", "staking", true, s.handleSetLockModerator)
	s.register("staking_setCompetitionFactory", "staking", true, s.handleSetStakingFactory)
	s.register("staking_setStakeFeePercentage", "staking", true, s.handleSetStakeFeePercentage)
	s.register("staking_updateCoolingOffSettings", "staking", true, s.handleUpdateCoolingOff)
	s.register("staking_lock", "staking", true, s.handleLockAccount(true))
	s.register("staking_unlock", "staking", true, s.handleLockAccount(false))
}

func (s *Server) handleStakingConfig(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	return view(s, s.node.Staking().Config)
}

func (s *Server) handleStakingAccount(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAccountParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	acct, err := view(s, func() (*staking.Account, error) { return s.node.Staking().ActivityDetails(addr) })
	if err != nil {
		return nil, err
	}
	return stakingAccountResult{
		Address:             addr.Hex(),
		Balance:             formatAmount(acct.Balance),
		LastSnapshotID:      acct.LastSnapshotID,
		LastActivityBalance: formatAmount(acct.LastActivityBalance),
		Locked:              acct.Locked,
	}, nil
}

func (s *Server) handlePreviewUnstake(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAmountParams](raw)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	var fee, payout *big.Int
	err = s.node.View(func() error {
		var err error
		fee, payout, err = s.node.Staking().CalculateUnstakeAmounts(amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return unstakePreviewResult{Fee: formatAmount(fee), Payout: formatAmount(payout)}, nil
}

func (s *Server) handleSnapshotID(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	id, err := view(s, s.node.Staking().SnapshotID)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"snapshotId": id}, nil
}

func (s *Server) handleSnapshotBalance(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAccountParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	bal, err := view(s, func() (*big.Int, error) {
		return s.node.Staking().SnapshotBalance(addr, params.SnapshotID)
	})
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: addr.Hex(), Balance: formatAmount(bal)}, nil
}

func (s *Server) handlePeriodSnapshotRange(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAccountParams](raw)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*staking.PeriodRange, error) {
		return s.node.Staking().PeriodSnapshotRange(params.PeriodID)
	})
}

func (s *Server) handleSnapshotAverage(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAccountParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	if params.PeriodID != 0 {
		var avg *big.Int
		var calculated bool
		err = s.node.View(func() error {
			var err error
			avg, calculated, err = s.node.Staking().PeriodSnapshotsAverage(addr, params.PeriodID, params.Min, params.Max)
			return err
		})
		if err != nil {
			return nil, err
		}
		return averageResult{Average: formatAmount(avg), Calculated: calculated}, nil
	}
	avg, err := view(s, func() (*big.Int, error) {
		return s.node.Staking().SnapshotAverage(addr, params.Min, params.Max)
	})
	if err != nil {
		return nil, err
	}
	return averageResult{Average: formatAmount(avg)}, nil
}

func (s *Server) handlePeriodStakeAverage(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAccountParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	var avg *big.Int
	var calculated bool
	err = s.node.View(func() error {
		var err error
		avg, calculated, err = s.node.Staking().PeriodStakeAverage(addr, params.PeriodID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return averageResult{Average: formatAmount(avg), Calculated: calculated}, nil
}

func (s *Server) handleStake(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAmountParams](raw)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error { return s.node.Staking().Stake(caller, amount) }); err != nil {
		return nil, err
	}
	return s.handleStakingAccount(ctx, caller, stakeAccountRaw(caller))
}

func (s *Server) handleUnstake(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakeAmountParams](raw)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error { return s.node.Staking().Unstake(caller, amount) }); err != nil {
		return nil, err
	}
	return s.handleStakingAccount(ctx, caller, stakeAccountRaw(caller))
}

func stakeAccountRaw(addr common.Address) []json.RawMessage {
	data, _ := json.Marshal(stakeAccountParams{Account: addr.Hex()})
	return []json.RawMessage{data}
}

func (s *Server) handleSnapshot(ctx context.Context, caller common.Address, _ []json.RawMessage) (interface{}, error) {
	var id uint64
	err := s.mutate(ctx, caller, func() error {
		var err error
		id, err = s.node.Staking().Snapshot()
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"snapshotId": id}, nil
}

func (s *Server) handleCalculatePeriodStakeAverage(ctx context.Context, caller common.Address, _ []json.RawMessage) (interface{}, error) {
	var avg *big.Int
	err := s.mutate(ctx, caller, func() error {
		var err error
		avg, err = s.node.Staking().CalculatePeriodStakeAverage(caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return averageResult{Average: formatAmount(avg), Calculated: true}, nil
}

func (s *Server) adminAddress(ctx context.Context, caller common.Address, raw []json.RawMessage, apply func(common.Address) error) (interface{}, error) {
	params, err := decodeParams[stakingAdminParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("target", params.Address)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error { return apply(addr) }); err != nil {
		return nil, err
	}
	return map[string]string{"address": addr.Hex()}, nil
}

func (s *Server) handleSetFeeAddress(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
		return s.node.Staking().SetFeeAddress(caller, addr)
	})
}

func (s *Server) handleSetLockModerator(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
		return s.node.Staking().SetLockModerator(caller, addr)
	})
}

func (s *Server) handleSetStakingFactory(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
		return s.node.Staking().SetCompetitionFactory(caller, addr)
	})
}

func (s *Server) handleLockAccount(locked bool) handlerFunc {
	return func(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
		return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
			if locked {
				return s.node.Staking().Lock(caller, addr)
			}
			return s.node.Staking().Unlock(caller, addr)
		})
	}
}

func (s *Server) handleSetStakeFeePercentage(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakingAdminParams](raw)
	if err != nil {
		return nil, err
	}
	if params.Percentage == nil {
		return nil, invalidParams("percentage is required")
	}
	pct := *params.Percentage
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Staking().SetStakeFeePercentage(caller, pct)
	}); err != nil {
		return nil, err
	}
	return view(s, s.node.Staking().Config)
}

func (s *Server) handleUpdateCoolingOff(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[stakingAdminParams](raw)
	if err != nil {
		return nil, err
	}
	if params.Percentage == nil {
		return nil, invalidParams("percentage is required")
	}
	pct := *params.Percentage
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Staking().UpdateCoolingOffSettings(caller, pct, params.CoolingDays, params.CoolestDays)
	}); err != nil {
		return nil, err
	}
	return view(s, s.node.Staking().Config)
}
