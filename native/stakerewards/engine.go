package stakerewards

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/treasury"
	"zizyhub/observability/metrics"
)

const moduleName = "stakerewards"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
}

// StakeLedger supplies the balances rewards are computed from.
type StakeLedger interface {
	SnapshotAverage(account common.Address, min, max uint64) (*big.Int, error)
	BalanceOf(addr common.Address) (*big.Int, error)
}

// Assets is the ledger surface rewards are paid through and boosters are
// checked against.
type Assets interface {
	treasury.Assets
	FungibleBalance(token, owner common.Address) (*big.Int, error)
	BalanceOf(collection, owner common.Address) (uint64, error)
}

// Engine computes tiered, vested and percentage stake rewards.
type Engine struct {
	state   engineState
	staking StakeLedger
	assets  Assets
	vault   *treasury.Vault
	emitter events.Emitter
	pauses  nativecommon.PauseView
	metrics *metrics.LedgerMetrics
	guard   nativecommon.ReentrancyGuard
	nowFn   func() int64
}

// NewEngine constructs an engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		metrics: metrics.Ledger(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetStaking configures the staking ledger.
func (e *Engine) SetStaking(ledger StakeLedger) { e.staking = ledger }

// SetAssets configures the asset ledger and the vault drawing on it.
func (e *Engine) SetAssets(assets Assets) {
	e.assets = assets
	e.vault = treasury.New(moduleName, assets, e.owner)
	e.vault.SetEmitter(e.emitter)
}

// SetPauses wires the module pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	if e.vault != nil {
		e.vault.SetEmitter(emitter)
	}
}

// SetNowFunc overrides the clock. Intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

// Address returns the vault account rewards are paid from.
func (e *Engine) Address() common.Address { return nativecommon.ModuleAddress(moduleName) }

// Treasury exposes the owner-only deposit and withdraw surface.
func (e *Engine) Treasury() *treasury.Vault { return e.vault }

func (e *Engine) now() uint64 {
	n := e.nowFn()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.staking == nil || e.vault == nil {
		return ErrNotConfigured
	}
	return nil
}

func (e *Engine) owner() (common.Address, error) {
	cfg, err := e.Config()
	if err != nil {
		return common.Address{}, err
	}
	return cfg.Owner, nil
}

// Config returns the stored configuration.
func (e *Engine) Config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg := new(Config)
	if _, err := e.state.KVGet(configKey, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Initialize sets the owner, the reward definer and the local chain id once.
func (e *Engine) Initialize(owner, definer common.Address, chainID uint64) error {
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	if !nativecommon.IsZeroAddress(cfg.Owner) {
		return ErrAlreadyInitialized
	}
	if nativecommon.IsZeroAddress(owner) || nativecommon.IsZeroAddress(definer) {
		return ErrZeroAddress
	}
	cfg.Owner = owner
	cfg.RewardDefiner = definer
	cfg.ChainID = chainID
	return e.state.KVPut(configKey, cfg)
}

// SetRewardDefiner changes the account allowed to configure rewards.
func (e *Engine) SetRewardDefiner(caller, definer common.Address) error {
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(cfg.Owner) || caller != cfg.Owner {
		return ErrUnauthorized
	}
	if nativecommon.IsZeroAddress(definer) {
		return fmt.Errorf("%w: reward definer", ErrZeroAddress)
	}
	cfg.RewardDefiner = definer
	if err := e.state.KVPut(configKey, cfg); err != nil {
		return err
	}
	e.emit(EventTypeRewardDefinerUpdated, map[string]string{"definer": definer.Hex()})
	return nil
}

func (e *Engine) definerConfig(caller common.Address) (*Config, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if nativecommon.IsZeroAddress(cfg.RewardDefiner) || caller != cfg.RewardDefiner {
		return nil, ErrNotRewardDefiner
	}
	return cfg, nil
}

func (e *Engine) reward(id uint64) (*Reward, error) {
	r := new(Reward)
	if _, err := e.state.KVGet(rewardKey(id), r); err != nil {
		return nil, err
	}
	r.normalize()
	return r, nil
}

// updatable loads reward id for a definer write. Rewards any account has
// claimed are frozen.
func (e *Engine) updatable(caller common.Address, id uint64) (*Config, *Reward, error) {
	cfg, err := e.definerConfig(caller)
	if err != nil {
		return nil, nil, err
	}
	r, err := e.reward(id)
	if err != nil {
		return nil, nil, err
	}
	if r.ClaimCount > 0 {
		return nil, nil, ErrRewardHasClaims
	}
	r.ID = id
	r.Exists = true
	return cfg, r, nil
}

func (e *Engine) putReward(r *Reward, kind string) error {
	if err := e.state.KVPut(rewardKey(r.ID), r); err != nil {
		return err
	}
	e.emit(kind, rewardAttributes(r))
	return nil
}

// SetRewardConfig sets the snapshot range and the vesting schedule of a
// reward. Non-vested rewards ignore the schedule fields.
func (e *Engine) SetRewardConfig(caller common.Address, id uint64, hasVesting bool, vestingStart, intervalDays, sliceCount, snapshotMin, snapshotMax uint64) error {
	_, r, err := e.updatable(caller, id)
	if err != nil {
		return err
	}
	if snapshotMin > snapshotMax {
		return ErrInvalidRange
	}
	if hasVesting && (intervalDays == 0 || sliceCount == 0) {
		return ErrInvalidVesting
	}
	r.HasVesting = hasVesting
	r.VestingStart, r.IntervalDays, r.SliceCount = 0, 0, 0
	if hasVesting {
		r.VestingStart = vestingStart
		r.IntervalDays = intervalDays
		r.SliceCount = sliceCount
	}
	r.SnapshotMin = snapshotMin
	r.SnapshotMax = snapshotMax
	return e.putReward(r, EventTypeRewardConfigUpdated)
}

// SetRewardTiers replaces the tier table of a reward.
func (e *Engine) SetRewardTiers(caller common.Address, id uint64, tiers []Tier) error {
	_, r, err := e.updatable(caller, id)
	if err != nil {
		return err
	}
	if len(tiers) == 0 {
		return ErrEmptyTiers
	}
	table := make([]Tier, 0, len(tiers))
	for i, t := range tiers {
		if t.StakeMin == nil || t.StakeMax == nil || t.StakeMin.Cmp(t.StakeMax) > 0 {
			return fmt.Errorf("%w: tier %d", ErrInvalidTier, i)
		}
		if t.RewardAmount == nil || t.RewardAmount.Sign() < 0 {
			return fmt.Errorf("%w: tier %d", ErrRewardDataIncorrect, i)
		}
		table = append(table, Tier{
			StakeMin:     nativecommon.Clone(t.StakeMin),
			StakeMax:     nativecommon.Clone(t.StakeMax),
			RewardAmount: nativecommon.Clone(t.RewardAmount),
		})
	}
	r.Tiers = table
	return e.putReward(r, EventTypeRewardTiersUpdated)
}

// RewardTier returns tier index of a reward.
func (e *Engine) RewardTier(id, index uint64) (*Tier, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	r, err := e.reward(id)
	if err != nil {
		return nil, err
	}
	if index >= uint64(len(r.Tiers)) {
		return nil, ErrTierIndexOutOfBounds
	}
	t := r.Tiers[index]
	return &t, nil
}

// RewardTierCount returns the number of tiers of a reward.
func (e *Engine) RewardTierCount(id uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	r, err := e.reward(id)
	if err != nil {
		return 0, err
	}
	return uint64(len(r.Tiers)), nil
}

// SetTokenReward pays the tiered reward in token, drawing on a pool of total.
func (e *Engine) SetTokenReward(caller common.Address, id, chainID uint64, token common.Address, total *big.Int) error {
	_, r, err := e.updatable(caller, id)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(token) || !nativecommon.IsPositive(total) {
		return ErrRewardDataIncorrect
	}
	r.Mode = ModeTiered
	r.ChainID = chainID
	r.Type = nativecommon.RewardToken
	r.Address = token
	r.Total = nativecommon.Clone(total)
	r.Percentage = 0
	return e.putReward(r, EventTypeRewardAssetUpdated)
}

// SetNativeReward pays the tiered reward in native coin.
func (e *Engine) SetNativeReward(caller common.Address, id, chainID uint64, total *big.Int) error {
	_, r, err := e.updatable(caller, id)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(total) {
		return ErrRewardDataIncorrect
	}
	r.Mode = ModeTiered
	r.ChainID = chainID
	r.Type = nativecommon.RewardNative
	r.Address = common.Address{}
	r.Total = nativecommon.Clone(total)
	r.Percentage = 0
	return e.putReward(r, EventTypeRewardAssetUpdated)
}

// SetStakePercentageReward pays percentage of each account's stake average
// in token on the local chain, until ceiling is distributed.
func (e *Engine) SetStakePercentageReward(caller common.Address, id uint64, token common.Address, ceiling *big.Int, percentage uint64) error {
	cfg, r, err := e.updatable(caller, id)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(token) || !nativecommon.IsPositive(ceiling) {
		return ErrRewardDataIncorrect
	}
	if percentage == 0 || percentage > 100 {
		return ErrInvalidPercentage
	}
	r.Mode = ModePercentage
	r.ChainID = cfg.ChainID
	r.Type = nativecommon.RewardToken
	r.Address = token
	r.Total = nativecommon.Clone(ceiling)
	r.Percentage = percentage
	return e.putReward(r, EventTypeRewardAssetUpdated)
}

// Reward returns the configuration of id. Unknown ids come back with
// Exists unset.
func (e *Engine) Reward(id uint64) (*Reward, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.reward(id)
}

// IsRewardConfigsCompleted reports whether every piece of reward id is set.
func (e *Engine) IsRewardConfigsCompleted(id uint64) (bool, error) {
	r, err := e.Reward(id)
	if err != nil {
		return false, err
	}
	return r.Completed(), nil
}

// SnapshotsAverageCalculation averages account's stake over [min, max].
func (e *Engine) SnapshotsAverageCalculation(account common.Address, min, max uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.staking.SnapshotAverage(account, min, max)
}

func (e *Engine) slice(account common.Address, id, index uint64) (*AccountReward, error) {
	s := new(AccountReward)
	if _, err := e.state.KVGet(sliceKey(account, id, index), s); err != nil {
		return nil, err
	}
	s.normalize()
	return s, nil
}

// AccountReward returns a materialized slice. Slices are created on the
// account's first claim; before that Exists is unset.
func (e *Engine) AccountReward(account common.Address, id, index uint64) (*AccountReward, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.slice(account, id, index)
}

// baseAmount resolves the account's reward before boosts. No matching tier
// yields zero.
func (e *Engine) baseAmount(account common.Address, r *Reward) (*big.Int, error) {
	average, err := e.staking.SnapshotAverage(account, r.SnapshotMin, r.SnapshotMax)
	if err != nil {
		return nil, err
	}
	if r.Mode == ModePercentage {
		return nativecommon.Percent(average, r.Percentage)
	}
	for _, t := range r.Tiers {
		if t.matches(average) {
			return nativecommon.Clone(t.RewardAmount), nil
		}
	}
	return big.NewInt(0), nil
}

// checkClaim runs the pre-transfer validation shared by IsRewardClaimable
// and ClaimReward.
func (e *Engine) checkClaim(account common.Address, id, index uint64) (*Reward, *AccountReward, error) {
	r, err := e.reward(id)
	if err != nil {
		return nil, nil, err
	}
	if !r.Completed() {
		return nil, nil, ErrConfigsIncomplete
	}
	if index >= r.Slices() {
		return nil, nil, ErrSliceOutOfBounds
	}
	if e.now() < r.UnlockTime(index) {
		return nil, nil, ErrSliceLocked
	}
	s, err := e.slice(account, id, index)
	if err != nil {
		return nil, nil, err
	}
	if s.Exists && s.IsClaimed {
		return nil, nil, ErrAlreadyClaimed
	}
	if !s.Exists && r.Remaining().Sign() == 0 {
		return nil, nil, ErrPoolExhausted
	}
	return r, s, nil
}

// isClaimRejection reports whether err is one of the checkClaim refusals, as
// opposed to a state failure.
func isClaimRejection(err error) bool {
	for _, target := range []error{
		ErrRewardNotFound, ErrConfigsIncomplete, ErrSliceOutOfBounds,
		ErrSliceLocked, ErrAlreadyClaimed, ErrPoolExhausted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRewardClaimable reports whether account can claim slice index now.
func (e *Engine) IsRewardClaimable(account common.Address, id, index uint64) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	r, s, err := e.checkClaim(account, id, index)
	if err != nil {
		if isClaimRejection(err) {
			return false, nil
		}
		return false, err
	}
	if s.Exists {
		return true, nil
	}
	amount, err := e.baseAmount(account, r)
	if err != nil {
		return false, err
	}
	return amount.Sign() > 0, nil
}

func (e *Engine) boosters() ([]Booster, error) {
	var list []Booster
	if err := e.state.KVGetList(boosterListKey, &list); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].normalize()
	}
	return list, nil
}

func indexOfBooster(list []Booster, id uint64) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// SetBooster creates or replaces booster id.
func (e *Engine) SetBooster(caller common.Address, id uint64, kind BoosterType, contract common.Address, amount *big.Int, percentage uint64) error {
	if _, err := e.definerConfig(caller); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidBoosterType, kind)
	}
	if kind == BoosterHoldingCollectible && nativecommon.IsZeroAddress(contract) {
		return ErrMissingBoosterAddress
	}
	if percentage == 0 || percentage > 100 {
		return ErrInvalidBoostPercent
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return ErrRewardDataIncorrect
	}
	list, err := e.boosters()
	if err != nil {
		return err
	}
	b := Booster{
		ID:              id,
		Type:            kind,
		ContractAddress: contract,
		Amount:          nativecommon.Clone(amount),
		BoostPercentage: percentage,
		Exists:          true,
	}
	if i := indexOfBooster(list, id); i >= 0 {
		list[i] = b
	} else {
		list = append(list, b)
	}
	if err := e.state.KVPut(boosterListKey, list); err != nil {
		return err
	}
	e.emit(EventTypeBoosterUpdated, boosterAttributes(&b))
	return nil
}

// Booster returns booster id. Unknown ids come back with Exists unset.
func (e *Engine) Booster(id uint64) (*Booster, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	list, err := e.boosters()
	if err != nil {
		return nil, err
	}
	if i := indexOfBooster(list, id); i >= 0 {
		b := list[i]
		return &b, nil
	}
	return &Booster{ID: id, Amount: big.NewInt(0)}, nil
}

// BoosterIndex returns the position of booster id in the booster list.
func (e *Engine) BoosterIndex(id uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	list, err := e.boosters()
	if err != nil {
		return 0, err
	}
	i := indexOfBooster(list, id)
	if i < 0 {
		return 0, ErrBoosterNotFound
	}
	return uint64(i), nil
}

// BoosterCount returns the number of configured boosters.
func (e *Engine) BoosterCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	list, err := e.boosters()
	if err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

// RemoveBooster deletes booster id, keeping the order of the others.
func (e *Engine) RemoveBooster(caller common.Address, id uint64) error {
	if _, err := e.definerConfig(caller); err != nil {
		return err
	}
	list, err := e.boosters()
	if err != nil {
		return err
	}
	i := indexOfBooster(list, id)
	if i < 0 {
		return ErrBoosterNotFound
	}
	removed := list[i]
	list = append(list[:i], list[i+1:]...)
	if err := e.state.KVPut(boosterListKey, list); err != nil {
		return err
	}
	e.emit(EventTypeBoosterRemoved, boosterAttributes(&removed))
	return nil
}

func (e *Engine) qualifies(account common.Address, b *Booster) (bool, error) {
	switch b.Type {
	case BoosterHoldingCollectible:
		held, err := e.assets.BalanceOf(b.ContractAddress, account)
		if err != nil {
			return false, err
		}
		return held > 0 && new(big.Int).SetUint64(held).Cmp(b.Amount) >= 0, nil
	case BoosterStakingBalance:
		balance, err := e.staking.BalanceOf(account)
		if err != nil {
			return false, err
		}
		return balance.Sign() > 0 && balance.Cmp(b.Amount) >= 0, nil
	default:
		return false, nil
	}
}

func (e *Engine) boostPercentage(account common.Address) (uint64, error) {
	list, err := e.boosters()
	if err != nil {
		return 0, err
	}
	var total uint64
	for i := range list {
		ok, err := e.qualifies(account, &list[i])
		if err != nil {
			return 0, err
		}
		if ok {
			total += list[i].BoostPercentage
		}
	}
	return total, nil
}

// AccountBoostPercentage returns the boost account would receive on slice
// index. A boost is used once: after the slice is materialized it reads zero.
func (e *Engine) AccountBoostPercentage(account common.Address, id, index uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	s, err := e.slice(account, id, index)
	if err != nil {
		return 0, err
	}
	if s.Exists {
		return 0, nil
	}
	return e.boostPercentage(account)
}

// materialize writes every slice of account's reward and reserves the total
// from the pool. The remainder of the split lands on the last slice.
func (e *Engine) materialize(account common.Address, r *Reward) error {
	base, err := e.baseAmount(account, r)
	if err != nil {
		return err
	}
	if base.Sign() == 0 {
		return ErrNothingToClaim
	}
	boost, err := e.boostPercentage(account)
	if err != nil {
		return err
	}
	bonus, err := nativecommon.Percent(base, boost)
	if err != nil {
		return err
	}
	total, err := nativecommon.Add(base, bonus)
	if err != nil {
		return err
	}
	if remaining := r.Remaining(); total.Cmp(remaining) > 0 {
		total = remaining
	}
	if total.Sign() == 0 {
		return ErrPoolExhausted
	}
	n := r.Slices()
	part, rem := new(big.Int).QuoRem(total, new(big.Int).SetUint64(n), new(big.Int))
	for i := uint64(0); i < n; i++ {
		amount := new(big.Int).Set(part)
		if i == n-1 {
			amount.Add(amount, rem)
		}
		s := &AccountReward{
			Amount:          amount,
			BoostPercentage: boost,
			Type:            r.Type,
			ChainID:         r.ChainID,
			Address:         r.Address,
			UnlockTime:      r.UnlockTime(i),
			Exists:          true,
		}
		if err := e.state.KVPut(sliceKey(account, r.ID, i), s); err != nil {
			return err
		}
	}
	r.Distributed.Add(r.Distributed, total)
	return nil
}

// checkFunds fails before any transfer when the vault cannot cover amount.
func (e *Engine) checkFunds(s *AccountReward) error {
	var (
		balance *big.Int
		err     error
	)
	switch s.Type {
	case nativecommon.RewardNative:
		balance, err = e.assets.NativeBalance(e.Address())
	case nativecommon.RewardToken:
		balance, err = e.assets.FungibleBalance(s.Address, e.Address())
	default:
		return fmt.Errorf("%w: %d", nativecommon.ErrUnknownRewardType, s.Type)
	}
	if err != nil {
		return err
	}
	if balance.Cmp(s.Amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, s.Amount)
	}
	return nil
}

// ClaimReward pays slice index of reward id to caller. The first claim of an
// account materializes all of its slices.
func (e *Engine) ClaimReward(caller common.Address, id, index uint64) (err error) {
	defer func() { e.record("claim_reward", err) }()
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	r, s, err := e.checkClaim(caller, id, index)
	if err != nil {
		return err
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	return nativecommon.Atomic(e.state, func() error {
		if !s.Exists {
			if err := e.materialize(caller, r); err != nil {
				return err
			}
			fresh, err := e.slice(caller, id, index)
			if err != nil {
				return err
			}
			s = fresh
		}
		s.IsClaimed = true
		if err := e.state.KVPut(sliceKey(caller, id, index), s); err != nil {
			return err
		}
		r.ClaimCount++
		if err := e.state.KVPut(rewardKey(id), r); err != nil {
			return err
		}
		crossChain := s.ChainID != cfg.ChainID
		if !crossChain && s.Amount.Sign() > 0 {
			if err := e.checkFunds(s); err != nil {
				return err
			}
			if err := e.vault.Send(s.Type, s.Address, caller, s.Amount, 0); err != nil {
				return err
			}
		}
		kind, route := EventTypeRewardClaimed, "local"
		attrs := claimAttributes(caller, id, index, s)
		if crossChain {
			kind, route = EventTypeRewardClaimedCrossChain, "cross_chain"
			if _, err := nativecommon.StageSettlement(e.state, kind, attrs); err != nil {
				return err
			}
		}
		e.metrics.RecordClaim(moduleName, route)
		e.metrics.RecordVestingSlice(id)
		e.emit(kind, attrs)
		return nil
	})
}

func (e *Engine) record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.metrics.RecordOperation(moduleName, op, outcome)
}
