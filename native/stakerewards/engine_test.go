package stakerewards_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"zizyhub/core/events"
	"zizyhub/core/state"
	"zizyhub/native/assets"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/nft"
	"zizyhub/native/stakerewards"
	"zizyhub/storage"
)

const (
	localChain = 1
	otherChain = 56
	day        = 86400
	start      = int64(1_700_000_000)
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	definer = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	user1   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	user2   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	usdt    = common.HexToAddress("0x0000000000000000000000000000000000000e21")
	zizy    = common.HexToAddress("0x0000000000000000000000000000000000000e22")
)

// stakeStub serves fixed averages and balances per account.
type stakeStub struct {
	averages map[common.Address]int64
	balances map[common.Address]int64
}

func (s *stakeStub) SnapshotAverage(account common.Address, min, max uint64) (*big.Int, error) {
	return big.NewInt(s.averages[account]), nil
}

func (s *stakeStub) BalanceOf(addr common.Address) (*big.Int, error) {
	return big.NewInt(s.balances[addr]), nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

func (c *capturingEmitter) count(kind string) int {
	n := 0
	for _, e := range c.events {
		if e.EventType() == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	engine  *stakerewards.Engine
	state   *state.Manager
	ledger  *assets.Ledger
	nfts    *nft.Registry
	stakes  *stakeStub
	emitter *capturingEmitter
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	nfts := nft.NewRegistry(mgr)
	require.NoError(t, nfts.Initialize(owner))
	ledger := assets.NewLedger(mgr, nfts)
	require.NoError(t, ledger.RegisterToken(usdt, "USDT", 6))
	require.NoError(t, ledger.RegisterToken(zizy, "ZIZY", 8))
	require.NoError(t, ledger.CreditNative(owner, big.NewInt(100_000)))

	f := &fixture{
		state:   mgr,
		ledger:  ledger,
		nfts:    nfts,
		emitter: &capturingEmitter{},
		now:     start,
		stakes: &stakeStub{
			averages: map[common.Address]int64{user1: 5000, user2: 12_000},
			balances: map[common.Address]int64{user1: 5000, user2: 12_000},
		},
	}
	f.engine = stakerewards.NewEngine()
	f.engine.SetState(mgr)
	f.engine.SetStaking(f.stakes)
	f.engine.SetAssets(ledger)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(func() int64 { return f.now })
	require.NoError(t, f.engine.Initialize(owner, definer, localChain))
	ledger.RefuseNative(f.engine.Address(), true)

	require.NoError(t, f.engine.Treasury().Deposit(owner, big.NewInt(50_000)))
	require.NoError(t, ledger.MintToken(usdt, f.engine.Address(), big.NewInt(100_000)))
	require.NoError(t, ledger.MintToken(zizy, f.engine.Address(), big.NewInt(100_000)))
	return f
}

func tiers() []stakerewards.Tier {
	tier := func(min, max, amount int64) stakerewards.Tier {
		return stakerewards.Tier{StakeMin: big.NewInt(min), StakeMax: big.NewInt(max), RewardAmount: big.NewInt(amount)}
	}
	return []stakerewards.Tier{tier(0, 4000, 5000), tier(4001, 9000, 10_000), tier(9001, 20_000, 15_000)}
}

func TestPercentageReward(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetRewardConfig(definer, 5001, false, 0, 0, 0, 3, 3))
	require.ErrorIs(t, f.engine.SetStakePercentageReward(definer, 5001, zizy, big.NewInt(50_000), 0), stakerewards.ErrInvalidPercentage)
	require.NoError(t, f.engine.SetStakePercentageReward(definer, 5001, zizy, big.NewInt(50_000), 10))

	reward, err := f.engine.Reward(5001)
	require.NoError(t, err)
	require.Equal(t, zizy, reward.Address)
	require.Equal(t, uint64(localChain), reward.ChainID)
	require.Equal(t, uint64(10), reward.Percentage)
	require.Equal(t, stakerewards.ModePercentage, reward.Mode)

	require.NoError(t, f.engine.ClaimReward(user1, 5001, 0))
	bal, _ := f.ledger.FungibleBalance(zizy, user1)
	require.Equal(t, int64(500), bal.Int64())
	require.ErrorIs(t, f.engine.ClaimReward(user1, 5001, 0), stakerewards.ErrAlreadyClaimed)
	require.ErrorIs(t, f.engine.ClaimReward(user1, 5001, 1), stakerewards.ErrSliceOutOfBounds)

	avg, err := f.engine.SnapshotsAverageCalculation(user1, 3, 3)
	require.NoError(t, err)
	require.Positive(t, avg.Sign())
}

func TestPercentageRewardIsCappedByPool(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetRewardConfig(definer, 5002, false, 0, 0, 0, 1, 1))
	require.NoError(t, f.engine.SetStakePercentageReward(definer, 5002, zizy, big.NewInt(1500), 10))

	require.NoError(t, f.engine.ClaimReward(user2, 5002, 0))
	require.NoError(t, f.engine.ClaimReward(user1, 5002, 0))
	bal, _ := f.ledger.FungibleBalance(zizy, user1)
	require.Equal(t, int64(300), bal.Int64())

	f.stakes.averages[owner] = 1000
	ok, err := f.engine.IsRewardClaimable(owner, 5002, 0)
	require.NoError(t, err)
	require.False(t, ok)
	require.ErrorIs(t, f.engine.ClaimReward(owner, 5002, 0), stakerewards.ErrPoolExhausted)
}

func TestTieredNativeRewardWithBoosterOnOtherChain(t *testing.T) {
	f := newFixture(t)
	completed, err := f.engine.IsRewardConfigsCompleted(6001)
	require.NoError(t, err)
	require.False(t, completed)

	require.NoError(t, f.engine.SetRewardConfig(definer, 6001, false, 0, 0, 0, 3, 3))
	ok, err := f.engine.IsRewardClaimable(user1, 6001, 0)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, f.engine.SetRewardTiers(definer, 6001, tiers()))
	_, err = f.engine.RewardTier(6001, 55)
	require.ErrorIs(t, err, stakerewards.ErrTierIndexOutOfBounds)
	tier, err := f.engine.RewardTier(6001, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5000), tier.RewardAmount.Int64())
	count, err := f.engine.RewardTierCount(6001)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	collection, err := f.nfts.Deploy(owner, "Popa", "POPA")
	require.NoError(t, err)
	require.NoError(t, f.engine.SetBooster(definer, 6001, stakerewards.BoosterHoldingCollectible, collection, big.NewInt(0), 10))
	require.NoError(t, f.nfts.Mint(owner, collection, user1, 6001))

	boost, err := f.engine.AccountBoostPercentage(user1, 6001, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(10), boost)
	boost, err = f.engine.AccountBoostPercentage(user2, 6001, 0)
	require.NoError(t, err)
	require.Zero(t, boost)

	require.ErrorIs(t, f.engine.SetNativeReward(definer, 6001, otherChain, big.NewInt(0)), stakerewards.ErrRewardDataIncorrect)
	require.NoError(t, f.engine.SetNativeReward(definer, 6001, otherChain, big.NewInt(50_000)))
	reward, err := f.engine.Reward(6001)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, reward.Address)
	require.Equal(t, uint64(otherChain), reward.ChainID)

	before, _ := f.ledger.NativeBalance(f.engine.Address())
	require.NoError(t, f.engine.ClaimReward(user1, 6001, 0))
	require.NoError(t, f.engine.ClaimReward(user2, 6001, 0))
	require.Equal(t, 2, f.emitter.count(stakerewards.EventTypeRewardClaimedCrossChain))
	pending, err := nativecommon.PendingSettlements(f.state)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, stakerewards.EventTypeRewardClaimedCrossChain, pending[0].Type)
	require.Equal(t, user1.Hex(), pending[0].Event().Attr("account"))
	require.Equal(t, "0", pending[0].Event().Attr("vestingIndex"))
	require.Equal(t, user2.Hex(), pending[1].Event().Attr("account"))
	after, _ := f.ledger.NativeBalance(f.engine.Address())
	require.Equal(t, before.Int64(), after.Int64())

	slice, err := f.engine.AccountReward(user1, 6001, 0)
	require.NoError(t, err)
	require.Equal(t, int64(11_000), slice.Amount.Int64())
	require.Equal(t, uint64(10), slice.BoostPercentage)
	slice, err = f.engine.AccountReward(user2, 6001, 0)
	require.NoError(t, err)
	require.Equal(t, int64(15_000), slice.Amount.Int64())

	boost, err = f.engine.AccountBoostPercentage(user1, 6001, 0)
	require.NoError(t, err)
	require.Zero(t, boost)

	require.NoError(t, f.engine.RemoveBooster(definer, 6001))
	require.ErrorIs(t, f.engine.RemoveBooster(definer, 8888), stakerewards.ErrBoosterNotFound)
	require.ErrorIs(t, f.engine.SetNativeReward(definer, 6001, otherChain, big.NewInt(40_000)), stakerewards.ErrRewardHasClaims)
}

func TestVestedTokenReward(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetRewardConfig(definer, 8001, true, uint64(start-1), 1, 5, 3, 3))
	require.NoError(t, f.engine.SetRewardTiers(definer, 8001, tiers()))
	require.NoError(t, f.engine.SetTokenReward(definer, 8001, localChain, usdt, big.NewInt(20_000)))

	ok, err := f.engine.IsRewardClaimable(user1, 8001, 0)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.engine.IsRewardClaimable(user1, 8001, 1)
	require.NoError(t, err)
	require.False(t, ok)
	slice, err := f.engine.AccountReward(user1, 8001, 0)
	require.NoError(t, err)
	require.False(t, slice.Exists)

	require.NoError(t, f.engine.ClaimReward(user1, 8001, 0))
	slice, err = f.engine.AccountReward(user1, 8001, 0)
	require.NoError(t, err)
	require.True(t, slice.Exists)
	require.True(t, slice.IsClaimed)
	require.Equal(t, nativecommon.RewardToken, slice.Type)
	require.Equal(t, uint64(localChain), slice.ChainID)
	require.Equal(t, usdt, slice.Address)
	require.Equal(t, int64(2000), slice.Amount.Int64())
	bal, _ := f.ledger.FungibleBalance(usdt, user1)
	require.Equal(t, int64(2000), bal.Int64())

	second, err := f.engine.AccountReward(user1, 8001, 1)
	require.NoError(t, err)
	require.True(t, second.Exists)
	require.False(t, second.IsClaimed)
	require.ErrorIs(t, f.engine.ClaimReward(user1, 8001, 1), stakerewards.ErrSliceLocked)

	f.now = start + 4*day
	for i := uint64(1); i < 5; i++ {
		require.NoError(t, f.engine.ClaimReward(user1, 8001, i))
	}
	bal, _ = f.ledger.FungibleBalance(usdt, user1)
	require.Equal(t, int64(10_000), bal.Int64())
	require.ErrorIs(t, f.engine.ClaimReward(user1, 8001, 5), stakerewards.ErrSliceOutOfBounds)

	// Only 10_000 of the pool is left, user2's 15_000 tier is clamped.
	require.NoError(t, f.engine.ClaimReward(user2, 8001, 0))
	last, err := f.engine.AccountReward(user2, 8001, 4)
	require.NoError(t, err)
	require.Equal(t, int64(2000), last.Amount.Int64())
	reward, err := f.engine.Reward(8001)
	require.NoError(t, err)
	require.Zero(t, reward.Remaining().Sign())
}

func TestVestingRemainderLandsOnLastSlice(t *testing.T) {
	f := newFixture(t)
	table := []stakerewards.Tier{{StakeMin: big.NewInt(0), StakeMax: big.NewInt(10_000), RewardAmount: big.NewInt(1003)}}
	require.NoError(t, f.engine.SetRewardConfig(definer, 9001, true, uint64(start), 2, 4, 1, 2))
	require.NoError(t, f.engine.SetRewardTiers(definer, 9001, table))
	require.NoError(t, f.engine.SetTokenReward(definer, 9001, localChain, usdt, big.NewInt(5000)))
	require.NoError(t, f.engine.ClaimReward(user1, 9001, 0))

	var total int64
	for i := uint64(0); i < 4; i++ {
		s, err := f.engine.AccountReward(user1, 9001, i)
		require.NoError(t, err)
		require.Equal(t, uint64(start)+i*2*day, s.UnlockTime)
		total += s.Amount.Int64()
	}
	require.Equal(t, int64(1003), total)
	last, err := f.engine.AccountReward(user1, 9001, 3)
	require.NoError(t, err)
	require.Equal(t, int64(253), last.Amount.Int64())
}

func TestClaimWithoutMatchingTierOrFunds(t *testing.T) {
	f := newFixture(t)
	f.stakes.averages[owner] = 50_000
	require.NoError(t, f.engine.SetRewardConfig(definer, 7001, false, 0, 0, 0, 1, 1))
	require.NoError(t, f.engine.SetRewardTiers(definer, 7001, tiers()))
	require.NoError(t, f.engine.SetNativeReward(definer, 7001, localChain, big.NewInt(90_000)))

	ok, err := f.engine.IsRewardClaimable(owner, 7001, 0)
	require.NoError(t, err)
	require.False(t, ok)
	require.ErrorIs(t, f.engine.ClaimReward(owner, 7001, 0), stakerewards.ErrNothingToClaim)

	require.NoError(t, f.engine.Treasury().Withdraw(owner, big.NewInt(45_000)))
	require.ErrorIs(t, f.engine.ClaimReward(user1, 7001, 0), stakerewards.ErrInsufficientFunds)
	slice, err := f.engine.AccountReward(user1, 7001, 0)
	require.NoError(t, err)
	require.False(t, slice.Exists)
	reward, err := f.engine.Reward(7001)
	require.NoError(t, err)
	require.Zero(t, reward.ClaimCount)
	require.Zero(t, reward.Distributed.Sign())
}

func TestBoosterRegistry(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.BoosterIndex(1)
	require.ErrorIs(t, err, stakerewards.ErrBoosterNotFound)
	require.ErrorIs(t, f.engine.SetBooster(owner, 1, stakerewards.BoosterStakingBalance, common.Address{}, big.NewInt(10_000), 10), stakerewards.ErrNotRewardDefiner)
	require.ErrorIs(t, f.engine.SetBooster(definer, 1, stakerewards.BoosterHoldingCollectible, common.Address{}, nil, 10), stakerewards.ErrMissingBoosterAddress)

	require.NoError(t, f.engine.SetBooster(definer, 1, stakerewards.BoosterStakingBalance, common.Address{}, big.NewInt(10_000), 10))
	require.NoError(t, f.engine.SetBooster(definer, 2, stakerewards.BoosterStakingBalance, common.Address{}, big.NewInt(1_000), 5))
	require.NoError(t, f.engine.SetBooster(definer, 1, stakerewards.BoosterStakingBalance, common.Address{}, big.NewInt(10_000), 20))

	idx, err := f.engine.BoosterIndex(2)
	require.NoError(t, err)
	require.Equal(t, uint64(1), idx)
	b, err := f.engine.Booster(1)
	require.NoError(t, err)
	require.True(t, b.Exists)
	require.Equal(t, uint64(20), b.BoostPercentage)

	boost, err := f.engine.AccountBoostPercentage(user2, 1, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(25), boost)
	boost, err = f.engine.AccountBoostPercentage(user1, 1, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(5), boost)

	require.NoError(t, f.engine.RemoveBooster(definer, 1))
	b, err = f.engine.Booster(1)
	require.NoError(t, err)
	require.False(t, b.Exists)
	idx, err = f.engine.BoosterIndex(2)
	require.NoError(t, err)
	require.Zero(t, idx)
}

func TestDefinerGating(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.SetRewardConfig(user1, 1, false, 0, 0, 0, 1, 1), stakerewards.ErrNotRewardDefiner)
	require.ErrorIs(t, f.engine.SetRewardConfig(definer, 1, false, 0, 0, 0, 2, 1), stakerewards.ErrInvalidRange)
	require.ErrorIs(t, f.engine.SetRewardConfig(definer, 1, true, 0, 0, 5, 1, 1), stakerewards.ErrInvalidVesting)
	require.ErrorIs(t, f.engine.SetRewardTiers(definer, 1, nil), stakerewards.ErrEmptyTiers)
	require.ErrorIs(t, f.engine.SetTokenReward(definer, 1, localChain, common.Address{}, big.NewInt(1)), stakerewards.ErrRewardDataIncorrect)
	require.ErrorIs(t, f.engine.SetRewardDefiner(definer, user1), stakerewards.ErrUnauthorized)
	require.NoError(t, f.engine.SetRewardDefiner(owner, user1))
	require.NoError(t, f.engine.SetRewardConfig(user1, 1, false, 0, 0, 0, 1, 1))
}

var errStateDown = errors.New("state unavailable")

// brokenState fails every read once broken is set.
type brokenState struct {
	*state.Manager
	broken bool
}

func (s *brokenState) KVGet(key []byte, out interface{}) (bool, error) {
	if s.broken {
		return false, errStateDown
	}
	return s.Manager.KVGet(key, out)
}

func TestIsRewardClaimablePassesStateFailures(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetRewardConfig(definer, 6101, false, 0, 0, 0, 3, 3))
	require.NoError(t, f.engine.SetRewardTiers(definer, 6101, tiers()))
	require.NoError(t, f.engine.SetTokenReward(definer, 6101, localChain, usdt, big.NewInt(20_000)))

	ok, err := f.engine.IsRewardClaimable(user1, 6101, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.engine.ClaimReward(user1, 6101, 0))

	// Rejections read as "not claimable".
	ok, err = f.engine.IsRewardClaimable(user1, 6101, 0)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = f.engine.IsRewardClaimable(user1, 6101, 9)
	require.NoError(t, err)
	require.False(t, ok)

	broken := &brokenState{Manager: f.state, broken: true}
	f.engine.SetState(broken)
	_, err = f.engine.IsRewardClaimable(user2, 6101, 0)
	require.ErrorIs(t, err, errStateDown)

	// Same-chain claims never touch the settlement outbox.
	pending, err := nativecommon.PendingSettlements(f.state)
	require.NoError(t, err)
	require.Empty(t, pending)
}
