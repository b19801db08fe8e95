package staking

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
	"zizyhub/observability/metrics"
)

const moduleName = "staking"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
}

// Assets is the fungible ledger surface used to move the stake token.
type Assets interface {
	TransferFungible(token, from, to common.Address, amount *big.Int) error
	TransferFungibleFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// PeriodSource exposes the competition periods the fee schedule and the
// average calculation depend on.
type PeriodSource interface {
	PeriodWindow(periodID uint64) (*Period, error)
	PeriodCount() (uint64, error)
}

// Engine is the snapshot based staking ledger.
type Engine struct {
	state   engineState
	assets  Assets
	periods PeriodSource
	emitter events.Emitter
	pauses  nativecommon.PauseView
	metrics *metrics.LedgerMetrics
	guard   nativecommon.ReentrancyGuard
	nowFn   func() int64
}

// NewEngine constructs a staking engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		metrics: metrics.Ledger(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the asset ledger.
func (e *Engine) SetAssets(assets Assets) { e.assets = assets }

// SetPeriods configures the competition period source.
func (e *Engine) SetPeriods(periods PeriodSource) { e.periods = periods }

// SetPauses wires the module pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

// Vault returns the account holding staked tokens.
func (e *Engine) Vault() common.Address { return nativecommon.ModuleAddress(moduleName) }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

// Config returns the stored configuration.
func (e *Engine) Config() (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg := &Config{TotalStaked: big.NewInt(0)}
	if _, err := e.state.KVGet(configKey, cfg); err != nil {
		return nil, err
	}
	if cfg.TotalStaked == nil {
		cfg.TotalStaked = big.NewInt(0)
	}
	return cfg, nil
}

func (e *Engine) putConfig(cfg *Config) error { return e.state.KVPut(configKey, cfg) }

func (e *Engine) ownerConfig(caller common.Address) (*Config, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if nativecommon.IsZeroAddress(cfg.Owner) || caller != cfg.Owner {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

// Initialize sets the owner, the stake token and the fee receiver once.
func (e *Engine) Initialize(owner, stakeToken, feeAddress common.Address) error {
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	if !nativecommon.IsZeroAddress(cfg.Owner) {
		return ErrAlreadyInitialized
	}
	if nativecommon.IsZeroAddress(owner) || nativecommon.IsZeroAddress(stakeToken) || nativecommon.IsZeroAddress(feeAddress) {
		return ErrZeroAddress
	}
	cfg.Owner = owner
	cfg.StakeToken = stakeToken
	cfg.FeeAddress = feeAddress
	return e.putConfig(cfg)
}

// SetFeeAddress changes the fee receiver.
func (e *Engine) SetFeeAddress(caller, fee common.Address) error {
	cfg, err := e.ownerConfig(caller)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(fee) {
		return fmt.Errorf("%w: fee address can not be zero", ErrZeroAddress)
	}
	cfg.FeeAddress = fee
	if err := e.putConfig(cfg); err != nil {
		return err
	}
	e.emit(addressEvent(EventTypeFeeReceiverUpdated, "feeAddress", fee))
	return nil
}

// SetCompetitionFactory sets the account allowed to announce period activations.
func (e *Engine) SetCompetitionFactory(caller, factory common.Address) error {
	cfg, err := e.ownerConfig(caller)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(factory) {
		return fmt.Errorf("%w: competition factory address can not be zero", ErrZeroAddress)
	}
	cfg.CompetitionFactory = factory
	if err := e.putConfig(cfg); err != nil {
		return err
	}
	e.emit(addressEvent(EventTypeFactoryUpdated, "factory", factory))
	return nil
}

// SetLockModerator sets the account allowed to lock stakes.
func (e *Engine) SetLockModerator(caller, moderator common.Address) error {
	cfg, err := e.ownerConfig(caller)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(moderator) {
		return fmt.Errorf("%w: lock moderator cant be zero address", ErrZeroAddress)
	}
	cfg.LockModerator = moderator
	if err := e.putConfig(cfg); err != nil {
		return err
	}
	e.emit(addressEvent(EventTypeLockModeratorUpdated, "moderator", moderator))
	return nil
}

// SetStakeFeePercentage sets the fee charged on stake.
func (e *Engine) SetStakeFeePercentage(caller common.Address, pct uint64) error {
	cfg, err := e.ownerConfig(caller)
	if err != nil {
		return err
	}
	if pct > MaxStakeFeePercentage {
		return ErrFeeOutOfLimits
	}
	cfg.StakeFeePercentage = pct
	if err := e.putConfig(cfg); err != nil {
		return err
	}
	e.emit(EventTypeStakeFeeUpdated, map[string]string{"percentage": strconv.FormatUint(pct, 10)})
	return nil
}

// UpdateCoolingOffSettings configures the unstake fee decay. Delays are given in days.
func (e *Engine) UpdateCoolingOffSettings(caller common.Address, pct, coolingDays, coolestDays uint64) error {
	cfg, err := e.ownerConfig(caller)
	if err != nil {
		return err
	}
	if pct > MaxCoolingPercentage {
		return ErrPercentageLimits
	}
	cfg.CoolingPercentage = pct
	cfg.CoolingDelay = coolingDays * secondsPerDay
	cfg.CoolestDelay = coolestDays * secondsPerDay
	if err := e.putConfig(cfg); err != nil {
		return err
	}
	e.emit(EventTypeCoolingOffUpdated, map[string]string{
		"percentage":   strconv.FormatUint(pct, 10),
		"coolingDelay": strconv.FormatUint(cfg.CoolingDelay, 10),
		"coolestDelay": strconv.FormatUint(cfg.CoolestDelay, 10),
	})
	return nil
}

// Lock blocks unstaking for account.
func (e *Engine) Lock(caller, account common.Address) error {
	return e.setLocked(caller, account, true)
}

// Unlock lifts a lock placed by the moderator.
func (e *Engine) Unlock(caller, account common.Address) error {
	return e.setLocked(caller, account, false)
}

func (e *Engine) setLocked(caller, account common.Address, locked bool) error {
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(cfg.LockModerator) || caller != cfg.LockModerator {
		return ErrNotModerator
	}
	acct, err := e.account(account)
	if err != nil {
		return err
	}
	acct.Locked = locked
	if err := e.state.KVPut(accountKey(account), acct); err != nil {
		return err
	}
	kind := EventTypeAccountUnlocked
	if locked {
		kind = EventTypeAccountLocked
	}
	e.emit(addressEvent(kind, "account", account))
	return nil
}

func (e *Engine) account(addr common.Address) (*Account, error) {
	acct := &Account{Balance: big.NewInt(0), LastActivityBalance: big.NewInt(0)}
	if _, err := e.state.KVGet(accountKey(addr), acct); err != nil {
		return nil, err
	}
	if acct.Balance == nil {
		acct.Balance = big.NewInt(0)
	}
	if acct.LastActivityBalance == nil {
		acct.LastActivityBalance = big.NewInt(0)
	}
	return acct, nil
}

func (e *Engine) checkpoints(addr common.Address) ([]Checkpoint, error) {
	var points []Checkpoint
	if err := e.state.KVGetList(checkpointsKey(addr), &points); err != nil {
		return nil, err
	}
	return points, nil
}

// writeBalance persists a balance change. The change is visible from the
// next snapshot onwards.
func (e *Engine) writeBalance(cfg *Config, addr common.Address, acct *Account) error {
	epoch := cfg.SnapshotID + 1
	points, err := e.checkpoints(addr)
	if err != nil {
		return err
	}
	points = record(points, epoch, acct.Balance)
	if err := e.state.KVPut(checkpointsKey(addr), points); err != nil {
		return err
	}
	acct.Exists = true
	acct.LastSnapshotID = epoch
	acct.LastActivityBalance = new(big.Int).Set(acct.Balance)
	return e.state.KVPut(accountKey(addr), acct)
}

// BalanceOf returns the current staked balance.
func (e *Engine) BalanceOf(addr common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	acct, err := e.account(addr)
	if err != nil {
		return nil, err
	}
	return acct.Balance, nil
}

// ActivityDetails returns the account record.
func (e *Engine) ActivityDetails(addr common.Address) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.account(addr)
}

// Stake pulls amount of the stake token from caller. The allowance must have
// been granted to the staking vault beforehand.
func (e *Engine) Stake(caller common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if err := e.requirePeriod(); err != nil {
		return err
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	cfg, err := e.Config()
	if err != nil {
		return err
	}
	fee := big.NewInt(0)
	if cfg.StakeFeePercentage > 0 {
		if fee, err = nativecommon.Percent(amount, cfg.StakeFeePercentage); err != nil {
			return err
		}
	}
	credited := new(big.Int).Sub(amount, fee)
	return nativecommon.Atomic(e.state, func() error {
		acct, err := e.account(caller)
		if err != nil {
			return err
		}
		if acct.Balance, err = nativecommon.Add(acct.Balance, credited); err != nil {
			return err
		}
		if err := e.writeBalance(cfg, caller, acct); err != nil {
			return err
		}
		if cfg.TotalStaked, err = nativecommon.Add(cfg.TotalStaked, credited); err != nil {
			return err
		}
		if err := e.putConfig(cfg); err != nil {
			return err
		}
		vault := e.Vault()
		if err := e.assets.TransferFungibleFrom(cfg.StakeToken, vault, caller, vault, amount); err != nil {
			return err
		}
		if fee.Sign() > 0 {
			if err := e.assets.TransferFungible(cfg.StakeToken, vault, cfg.FeeAddress, fee); err != nil {
				return err
			}
		}
		e.emit(stakeEvent(EventTypeStaked, caller, credited, fee, acct.LastSnapshotID))
		return nil
	})
}

// Unstake returns amount minus the cooling-off fee to caller.
func (e *Engine) Unstake(caller common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	cfg, err := e.Config()
	if err != nil {
		return err
	}
	acct, err := e.account(caller)
	if err != nil {
		return err
	}
	if acct.Locked {
		return ErrAccountLocked
	}
	if acct.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientStake, acct.Balance, amount)
	}
	fee, remainder, err := e.unstakeAmounts(cfg, amount)
	if err != nil {
		return err
	}
	return nativecommon.Atomic(e.state, func() error {
		acct.Balance = new(big.Int).Sub(acct.Balance, amount)
		if err := e.writeBalance(cfg, caller, acct); err != nil {
			return err
		}
		cfg.TotalStaked = new(big.Int).Sub(cfg.TotalStaked, amount)
		if cfg.TotalStaked.Sign() < 0 {
			cfg.TotalStaked.SetInt64(0)
		}
		if err := e.putConfig(cfg); err != nil {
			return err
		}
		vault := e.Vault()
		if fee.Sign() > 0 {
			if err := e.assets.TransferFungible(cfg.StakeToken, vault, cfg.FeeAddress, fee); err != nil {
				return err
			}
		}
		if remainder.Sign() > 0 {
			if err := e.assets.TransferFungible(cfg.StakeToken, vault, caller, remainder); err != nil {
				return err
			}
		}
		e.emit(stakeEvent(EventTypeUnstaked, caller, remainder, fee, acct.LastSnapshotID))
		return nil
	})
}

// CalculateUnstakeAmounts splits amount into the cooling-off fee and what the
// staker receives.
func (e *Engine) CalculateUnstakeAmounts(amount *big.Int) (*big.Int, *big.Int, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, nil, err
	}
	return e.unstakeAmounts(cfg, amount)
}

// unstakeAmounts applies the decay schedule. Elapsed time is measured from the
// active period start: the full percentage applies up to CoolestDelay, then
// the fee falls linearly to zero at CoolingDelay.
func (e *Engine) unstakeAmounts(cfg *Config, amount *big.Int) (*big.Int, *big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, ErrInvalidAmount
	}
	zero := big.NewInt(0)
	if cfg.ActivePeriod == 0 || cfg.CoolingPercentage == 0 || e.periods == nil {
		return zero, new(big.Int).Set(amount), nil
	}
	period, err := e.periods.PeriodWindow(cfg.ActivePeriod)
	if err != nil {
		return nil, nil, err
	}
	var elapsed uint64
	if now := e.nowFn(); now > 0 && uint64(now) > period.StartTime {
		elapsed = uint64(now) - period.StartTime
	}
	fee := zero
	switch {
	case elapsed <= cfg.CoolestDelay:
		if fee, err = nativecommon.Percent(amount, cfg.CoolingPercentage); err != nil {
			return nil, nil, err
		}
	case elapsed < cfg.CoolingDelay:
		scaled, err := nativecommon.MulUint(amount, cfg.CoolingPercentage)
		if err != nil {
			return nil, nil, err
		}
		window := (cfg.CoolingDelay - cfg.CoolestDelay) * 100
		left := cfg.CoolingDelay - elapsed
		if fee, err = nativecommon.MulDiv(scaled, new(big.Int).SetUint64(left), new(big.Int).SetUint64(window)); err != nil {
			return nil, nil, err
		}
	}
	return fee, new(big.Int).Sub(amount, fee), nil
}

func (e *Engine) requirePeriod() error {
	if e.periods == nil {
		return ErrNoPeriod
	}
	count, err := e.periods.PeriodCount()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNoPeriod
	}
	return nil
}

// Snapshot takes a new global snapshot while a period is active.
func (e *Engine) Snapshot() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	cfg, err := e.Config()
	if err != nil {
		return 0, err
	}
	if cfg.ActivePeriod == 0 {
		return 0, ErrNoActivePeriod
	}
	id, err := e.takeSnapshot(cfg)
	if err != nil {
		return 0, err
	}
	rng, err := e.periodRange(cfg.ActivePeriod)
	if err != nil {
		return 0, err
	}
	rng.Max = id
	if err := e.state.KVPut(periodRangeKey(cfg.ActivePeriod), rng); err != nil {
		return 0, err
	}
	return id, nil
}

func (e *Engine) takeSnapshot(cfg *Config) (uint64, error) {
	cfg.SnapshotID++
	if err := e.putConfig(cfg); err != nil {
		return 0, err
	}
	e.metrics.ObserveSnapshot(cfg.SnapshotID)
	e.emit(snapshotEvent(cfg.SnapshotID, cfg.ActivePeriod))
	return cfg.SnapshotID, nil
}

// SetPeriodID records a period activation. Only the competition factory may
// call it; it takes the activation snapshot and opens the period's range.
func (e *Engine) SetPeriodID(caller common.Address, periodID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(cfg.CompetitionFactory) || caller != cfg.CompetitionFactory {
		return ErrNotFactory
	}
	cfg.ActivePeriod = periodID
	id, err := e.takeSnapshot(cfg)
	if err != nil {
		return err
	}
	return e.state.KVPut(periodRangeKey(periodID), &PeriodRange{Min: id, Max: id, Exists: true})
}

// SnapshotID returns the latest snapshot id.
func (e *Engine) SnapshotID() (uint64, error) {
	cfg, err := e.Config()
	if err != nil {
		return 0, err
	}
	return cfg.SnapshotID, nil
}

// SnapshotBalance returns the balance account held when snapshot id was taken.
func (e *Engine) SnapshotBalance(account common.Address, id uint64) (*big.Int, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if id > cfg.SnapshotID {
		return nil, ErrSnapshotOutOfRange
	}
	points, err := e.checkpoints(account)
	if err != nil {
		return nil, err
	}
	return balanceAt(points, id), nil
}

func (e *Engine) periodRange(periodID uint64) (*PeriodRange, error) {
	rng := new(PeriodRange)
	ok, err := e.state.KVGet(periodRangeKey(periodID), rng)
	if err != nil {
		return nil, err
	}
	if !ok || !rng.Exists {
		return nil, ErrPeriodNotFound
	}
	return rng, nil
}

// PeriodSnapshotRange returns the snapshots taken while periodID was active.
func (e *Engine) PeriodSnapshotRange(periodID uint64) (*PeriodRange, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.periodRange(periodID)
}

// SnapshotAverage averages account's balance over the inclusive range.
func (e *Engine) SnapshotAverage(account common.Address, min, max uint64) (*big.Int, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if min > max {
		return nil, ErrInvalidRange
	}
	if max > cfg.SnapshotID {
		return nil, ErrSnapshotOutOfRange
	}
	points, err := e.checkpoints(account)
	if err != nil {
		return nil, err
	}
	return averageOver(points, min, max), nil
}

// PeriodSnapshotsAverage averages over a range inside the period's snapshot
// span. The average is computed on demand; the flag reports whether the
// cached period average has been calculated.
func (e *Engine) PeriodSnapshotsAverage(account common.Address, periodID, min, max uint64) (*big.Int, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	if min > max {
		return nil, false, ErrInvalidRange
	}
	rng, err := e.periodRange(periodID)
	if err != nil {
		return nil, false, err
	}
	if min < rng.Min || max > rng.Max {
		return nil, false, fmt.Errorf("%w: period %d spans [%d,%d]", ErrSnapshotOutOfRange, periodID, rng.Min, rng.Max)
	}
	avg, err := e.SnapshotAverage(account, min, max)
	if err != nil {
		return nil, false, err
	}
	cached, err := e.periodAverage(account, periodID)
	if err != nil {
		return nil, false, err
	}
	return avg, cached.IsCalculated, nil
}

func (e *Engine) periodAverage(account common.Address, periodID uint64) (*PeriodAverage, error) {
	avg := &PeriodAverage{Average: big.NewInt(0)}
	if _, err := e.state.KVGet(periodAverageKey(account, periodID), avg); err != nil {
		return nil, err
	}
	if avg.Average == nil {
		avg.Average = big.NewInt(0)
	}
	return avg, nil
}

// CalculatePeriodStakeAverage caches caller's average over the active
// period's snapshot range. It only runs inside the ticket buy window and only
// once per account and period.
func (e *Engine) CalculatePeriodStakeAverage(caller common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if cfg.ActivePeriod == 0 || e.periods == nil {
		return nil, ErrNoPeriod
	}
	period, err := e.periods.PeriodWindow(cfg.ActivePeriod)
	if err != nil {
		return nil, err
	}
	if !period.InBuyWindow(e.nowFn()) {
		return nil, ErrNotInBuyWindow
	}
	cached, err := e.periodAverage(caller, cfg.ActivePeriod)
	if err != nil {
		return nil, err
	}
	if cached.IsCalculated {
		return nil, ErrAlreadyCalculated
	}
	rng, err := e.periodRange(cfg.ActivePeriod)
	if err != nil {
		return nil, err
	}
	points, err := e.checkpoints(caller)
	if err != nil {
		return nil, err
	}
	avg := averageOver(points, rng.Min, rng.Max)
	if err := e.state.KVPut(periodAverageKey(caller, cfg.ActivePeriod), &PeriodAverage{Average: avg, IsCalculated: true}); err != nil {
		return nil, err
	}
	e.emit(EventTypeAverageCalculated, map[string]string{
		"account":  caller.Hex(),
		"periodId": strconv.FormatUint(cfg.ActivePeriod, 10),
		"average":  avg.String(),
	})
	return avg, nil
}

// PeriodStakeAverage returns the cached average for account and period.
func (e *Engine) PeriodStakeAverage(account common.Address, periodID uint64) (*big.Int, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	avg, err := e.periodAverage(account, periodID)
	if err != nil {
		return nil, false, err
	}
	return avg.Average, avg.IsCalculated, nil
}
