package staking_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"zizyhub/core/state"
	"zizyhub/native/assets"
	"zizyhub/native/staking"
	"zizyhub/storage"
)

const day = 24 * 60 * 60

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	factory   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	moderator = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	feeSink   = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	user      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	token     = common.HexToAddress("0x0000000000000000000000000000000000000e20")
)

type fakePeriods struct {
	periods map[uint64]*staking.Period
}

func (f *fakePeriods) PeriodWindow(id uint64) (*staking.Period, error) {
	p, ok := f.periods[id]
	if !ok {
		return nil, staking.ErrPeriodNotFound
	}
	return p, nil
}

func (f *fakePeriods) PeriodCount() (uint64, error) { return uint64(len(f.periods)), nil }

type fixture struct {
	engine  *staking.Engine
	ledger  *assets.Ledger
	periods *fakePeriods
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := assets.NewLedger(mgr, nil)
	require.NoError(t, ledger.RegisterToken(token, "ZIZY", 18))
	require.NoError(t, ledger.MintToken(token, user, big.NewInt(1_000_000)))

	f := &fixture{ledger: ledger, periods: &fakePeriods{periods: map[uint64]*staking.Period{}}, now: 1_700_000_000}
	engine := staking.NewEngine()
	engine.SetState(mgr)
	engine.SetAssets(ledger)
	engine.SetPeriods(f.periods)
	engine.SetNowFunc(func() int64 { return f.now })
	require.NoError(t, engine.Initialize(owner, token, feeSink))
	require.NoError(t, engine.SetCompetitionFactory(owner, factory))
	require.NoError(t, engine.SetLockModerator(owner, moderator))
	require.NoError(t, ledger.Approve(token, user, engine.Vault(), big.NewInt(1_000_000)))
	f.engine = engine
	return f
}

func (f *fixture) addPeriod(id uint64, start, end, buyStart, buyEnd int64) {
	f.periods.periods[id] = &staking.Period{
		ID:                 id,
		StartTime:          uint64(start),
		EndTime:            uint64(end),
		TicketBuyStartTime: uint64(buyStart),
		TicketBuyEndTime:   uint64(buyEnd),
	}
}

func TestSnapshotCarryForward(t *testing.T) {
	f := newFixture(t)
	f.addPeriod(1, f.now, f.now+10*day, f.now, f.now+day)

	require.NoError(t, f.engine.Stake(user, big.NewInt(100)))
	require.NoError(t, f.engine.SetPeriodID(factory, 1))
	require.NoError(t, f.engine.Stake(user, big.NewInt(100)))
	id, err := f.engine.Snapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)

	first, err := f.engine.SnapshotBalance(user, 1)
	require.NoError(t, err)
	require.Equal(t, int64(100), first.Int64())
	second, err := f.engine.SnapshotBalance(user, 2)
	require.NoError(t, err)
	require.Equal(t, int64(200), second.Int64())

	// Several snapshots without activity resolve to the last write.
	_, err = f.engine.Snapshot()
	require.NoError(t, err)
	_, err = f.engine.Snapshot()
	require.NoError(t, err)
	fourth, err := f.engine.SnapshotBalance(user, 4)
	require.NoError(t, err)
	require.Equal(t, int64(200), fourth.Int64())

	avg, err := f.engine.SnapshotAverage(user, 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(150), avg.Int64())
	avg, err = f.engine.SnapshotAverage(user, 0, 2)
	require.NoError(t, err)
	require.Equal(t, int64(100), avg.Int64())
	avg, err = f.engine.SnapshotAverage(user, 1, 4)
	require.NoError(t, err)
	require.Equal(t, int64(175), avg.Int64())

	_, err = f.engine.SnapshotAverage(user, 5, 3)
	require.ErrorIs(t, err, staking.ErrInvalidRange)
	_, err = f.engine.SnapshotAverage(user, 1, 999999)
	require.ErrorIs(t, err, staking.ErrSnapshotOutOfRange)

	rng, err := f.engine.PeriodSnapshotRange(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rng.Min)
	require.Equal(t, uint64(4), rng.Max)
}

func TestSnapshotRequiresActivePeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Snapshot()
	require.ErrorIs(t, err, staking.ErrNoActivePeriod)
	require.ErrorIs(t, f.engine.Stake(user, big.NewInt(100)), staking.ErrNoPeriod)
	_, err = f.engine.CalculatePeriodStakeAverage(user)
	require.ErrorIs(t, err, staking.ErrNoPeriod)
	require.ErrorIs(t, f.engine.SetPeriodID(user, 1), staking.ErrNotFactory)
	_, err = f.engine.PeriodSnapshotRange(999999)
	require.ErrorIs(t, err, staking.ErrPeriodNotFound)
	_, _, err = f.engine.PeriodSnapshotsAverage(common.Address{}, 50, 20, 10)
	require.ErrorIs(t, err, staking.ErrInvalidRange)
}

func TestPeriodAverageCachedOnce(t *testing.T) {
	f := newFixture(t)
	f.addPeriod(1, f.now-5, f.now+200, f.now+100, f.now+150)

	require.NoError(t, f.engine.Stake(user, big.NewInt(300)))
	require.NoError(t, f.engine.SetPeriodID(factory, 1))
	require.NoError(t, f.engine.Stake(user, big.NewInt(300)))
	_, err := f.engine.Snapshot()
	require.NoError(t, err)

	_, err = f.engine.CalculatePeriodStakeAverage(user)
	require.ErrorIs(t, err, staking.ErrNotInBuyWindow)

	onDemand, calculated, err := f.engine.PeriodSnapshotsAverage(user, 1, 1, 2)
	require.NoError(t, err)
	require.False(t, calculated)
	require.Equal(t, int64(450), onDemand.Int64())
	_, _, err = f.engine.PeriodSnapshotsAverage(user, 1, 1, 3)
	require.ErrorIs(t, err, staking.ErrSnapshotOutOfRange)

	f.now += 120
	cached, err := f.engine.CalculatePeriodStakeAverage(user)
	require.NoError(t, err)
	require.Equal(t, 0, cached.Cmp(onDemand))

	_, err = f.engine.CalculatePeriodStakeAverage(user)
	require.ErrorIs(t, err, staking.ErrAlreadyCalculated)

	// later activity does not move the cached value
	require.NoError(t, f.engine.Stake(user, big.NewInt(1000)))
	_, err = f.engine.Snapshot()
	require.NoError(t, err)
	avg, ok, err := f.engine.PeriodStakeAverage(user, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(450), avg.Int64())

	_, calculated, err = f.engine.PeriodSnapshotsAverage(user, 1, 1, 2)
	require.NoError(t, err)
	require.True(t, calculated)
}

func TestUnstakeFeeSchedule(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.UpdateCoolingOffSettings(owner, 10, 3, 5))
	cfg, err := f.engine.Config()
	require.NoError(t, err)
	require.Equal(t, uint64(10), cfg.CoolingPercentage)
	require.Equal(t, uint64(3*day), cfg.CoolingDelay)
	require.Equal(t, uint64(5*day), cfg.CoolestDelay)
	require.ErrorIs(t, f.engine.UpdateCoolingOffSettings(owner, 30, 3, 5), staking.ErrPercentageLimits)

	fee, rest, err := f.engine.CalculateUnstakeAmounts(big.NewInt(5000))
	require.NoError(t, err)
	require.Zero(t, fee.Sign())
	require.Equal(t, int64(5000), rest.Int64())

	f.addPeriod(1, f.now-1, f.now+8*day, f.now, f.now+50)
	require.NoError(t, f.engine.SetPeriodID(factory, 1))
	fee, rest, err = f.engine.CalculateUnstakeAmounts(big.NewInt(5000))
	require.NoError(t, err)
	require.Equal(t, int64(500), fee.Int64())
	require.Equal(t, int64(4500), rest.Int64())

	f.now += 5*day + 1
	fee, _, err = f.engine.CalculateUnstakeAmounts(big.NewInt(5000))
	require.NoError(t, err)
	require.Zero(t, fee.Sign())
}

func TestUnstakeFeeDecaysLinearly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.UpdateCoolingOffSettings(owner, 10, 6, 2))
	f.addPeriod(1, f.now, f.now+30*day, f.now, f.now+day)
	require.NoError(t, f.engine.SetPeriodID(factory, 1))

	f.now += 4 * day
	fee, rest, err := f.engine.CalculateUnstakeAmounts(big.NewInt(5000))
	require.NoError(t, err)
	require.Equal(t, int64(250), fee.Int64())
	require.Equal(t, int64(4750), rest.Int64())

	f.now += 2 * day
	fee, _, err = f.engine.CalculateUnstakeAmounts(big.NewInt(5000))
	require.NoError(t, err)
	require.Zero(t, fee.Sign())
}

func TestStakeAndUnstakeRouteFees(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.SetStakeFeePercentage(owner, 6), staking.ErrFeeOutOfLimits)
	require.NoError(t, f.engine.SetStakeFeePercentage(owner, 2))
	require.NoError(t, f.engine.UpdateCoolingOffSettings(owner, 10, 3, 5))
	f.addPeriod(1, f.now-1, f.now+8*day, f.now, f.now+50)
	require.NoError(t, f.engine.SetPeriodID(factory, 1))

	require.NoError(t, f.engine.Stake(user, big.NewInt(5000)))
	feeBal, _ := f.ledger.FungibleBalance(token, feeSink)
	require.Equal(t, int64(100), feeBal.Int64())
	cfg, _ := f.engine.Config()
	require.Equal(t, int64(4900), cfg.TotalStaked.Int64())

	details, err := f.engine.ActivityDetails(user)
	require.NoError(t, err)
	require.True(t, details.Exists)
	require.Greater(t, details.LastSnapshotID, uint64(0))
	require.Equal(t, int64(4900), details.LastActivityBalance.Int64())

	before, _ := f.ledger.FungibleBalance(token, user)
	require.ErrorIs(t, f.engine.Unstake(user, big.NewInt(4901)), staking.ErrInsufficientStake)
	require.NoError(t, f.engine.Unstake(user, big.NewInt(4900)))
	after, _ := f.ledger.FungibleBalance(token, user)
	require.Equal(t, int64(4410), new(big.Int).Sub(after, before).Int64())
	feeBal, _ = f.ledger.FungibleBalance(token, feeSink)
	require.Equal(t, int64(590), feeBal.Int64())

	bal, _ := f.engine.BalanceOf(user)
	require.Zero(t, bal.Sign())
}

func TestStakeWithoutAllowanceLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.addPeriod(1, f.now, f.now+day, f.now, f.now+day)
	require.NoError(t, f.ledger.Approve(token, user, f.engine.Vault(), big.NewInt(10)))

	require.ErrorIs(t, f.engine.Stake(user, big.NewInt(100)), assets.ErrInsufficientAllowance)
	bal, _ := f.engine.BalanceOf(user)
	require.Zero(t, bal.Sign())
	details, _ := f.engine.ActivityDetails(user)
	require.False(t, details.Exists)
}

func TestLockModeratorGatesUnstake(t *testing.T) {
	f := newFixture(t)
	f.addPeriod(1, f.now, f.now+day, f.now, f.now+day)
	require.NoError(t, f.engine.Stake(user, big.NewInt(100)))

	require.ErrorIs(t, f.engine.Lock(user, user), staking.ErrNotModerator)
	require.NoError(t, f.engine.Lock(moderator, user))
	require.ErrorIs(t, f.engine.Unstake(user, big.NewInt(50)), staking.ErrAccountLocked)
	require.NoError(t, f.engine.Unlock(moderator, user))
	require.NoError(t, f.engine.Unstake(user, big.NewInt(50)))
}

func TestConfigurationGuards(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.Initialize(owner, token, feeSink), staking.ErrAlreadyInitialized)
	require.ErrorIs(t, f.engine.SetFeeAddress(owner, common.Address{}), staking.ErrZeroAddress)
	require.ErrorIs(t, f.engine.SetFeeAddress(user, feeSink), staking.ErrUnauthorized)
	require.ErrorIs(t, f.engine.SetLockModerator(owner, common.Address{}), staking.ErrZeroAddress)
	require.ErrorIs(t, f.engine.SetCompetitionFactory(owner, common.Address{}), staking.ErrZeroAddress)

	fresh := staking.NewEngine()
	fresh.SetState(state.NewManager(storage.NewMemDB()))
	require.ErrorIs(t, fresh.Initialize(owner, common.Address{}, feeSink), staking.ErrZeroAddress)
	require.ErrorIs(t, fresh.Initialize(owner, token, common.Address{}), staking.ErrZeroAddress)

	require.NoError(t, f.engine.SetFeeAddress(owner, user))
	cfg, _ := f.engine.Config()
	require.Equal(t, user, cfg.FeeAddress)
	require.Equal(t, factory, cfg.CompetitionFactory)
	require.Equal(t, moderator, cfg.LockModerator)
	require.Equal(t, token, cfg.StakeToken)
}
