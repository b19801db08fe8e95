package rewardhub_test

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
	"zizyhub/native/rewardhub"
	"zizyhub/native/treasury"
	"zizyhub/storage"
)

const (
	localChain = 1
	otherChain = 56
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	definer = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	user1   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	user2   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	usdt    = common.HexToAddress("0x0000000000000000000000000000000000000e21")
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

func (c *capturingEmitter) last(kind string) map[string]string {
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].EventType() == kind {
			return events.Payload(c.events[i]).Attributes
		}
	}
	return nil
}

type fixture struct {
	hub     *rewardhub.Hub
	state   *state.Manager
	ledger  *assets.Ledger
	nfts    *nft.Registry
	ticket  common.Address
	prize   common.Address
	emitter *capturingEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	nfts := nft.NewRegistry(mgr)
	require.NoError(t, nfts.Initialize(owner))
	ledger := assets.NewLedger(mgr, nfts)
	require.NoError(t, ledger.RegisterToken(usdt, "USDT", 6))
	require.NoError(t, ledger.CreditNative(owner, big.NewInt(100_000)))

	f := &fixture{state: mgr, ledger: ledger, nfts: nfts, emitter: &capturingEmitter{}}
	f.hub = rewardhub.NewHub()
	f.hub.SetState(mgr)
	f.hub.SetAssets(ledger)
	f.hub.SetEmitter(f.emitter)
	require.NoError(t, f.hub.Initialize(owner, definer, localChain))
	ledger.RefuseNative(f.hub.Address(), true)

	require.NoError(t, f.hub.Treasury().Deposit(owner, big.NewInt(10_000)))
	require.NoError(t, ledger.MintToken(usdt, f.hub.Address(), big.NewInt(10_000)))

	var err error
	f.ticket, err = nfts.Deploy(owner, "Competition Ticket", "TCK")
	require.NoError(t, err)
	require.NoError(t, nfts.MintBatch(owner, f.ticket, user1, []uint64{100, 101, 102, 103, 104}))
	f.prize, err = nfts.Deploy(owner, "Prize", "PRZ")
	require.NoError(t, err)
	require.NoError(t, nfts.MintBatch(owner, f.prize, f.hub.Address(), []uint64{333, 334}))
	return f
}

func native(amount int64) rewardhub.RewardSpec {
	return rewardhub.RewardSpec{ChainID: localChain, Type: nativecommon.RewardNative, Amount: big.NewInt(amount)}
}

func token(chainID uint64, amount int64) rewardhub.RewardSpec {
	return rewardhub.RewardSpec{ChainID: chainID, Type: nativecommon.RewardToken, Address: usdt, Amount: big.NewInt(amount)}
}

func (f *fixture) collectible(id uint64) rewardhub.RewardSpec {
	return rewardhub.RewardSpec{ChainID: localChain, Type: nativecommon.RewardNFT, Address: f.prize, TokenID: id}
}

func TestCompetitionRewardClaimPaths(t *testing.T) {
	f := newFixture(t)
	specs := map[uint64]rewardhub.RewardSpec{
		100: native(500),
		101: token(localChain, 500),
		102: f.collectible(334),
		103: token(otherChain, 500),
	}
	for id, spec := range specs {
		require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, id, spec))
	}
	require.ErrorIs(t, f.hub.SetCompetitionReward(user1, 1, 1, f.ticket, 100, native(1)), rewardhub.ErrNotRewardDefiner)

	reward, err := f.hub.CompetitionReward(f.ticket, 101)
	require.NoError(t, err)
	require.True(t, reward.Exists)
	require.False(t, reward.IsClaimed)
	require.Equal(t, uint64(localChain), reward.ChainID)
	require.Equal(t, usdt, reward.Address)

	// Cross-chain rewards only flip the claimed flag.
	require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 103, token(otherChain, 500)))
	require.NotNil(t, f.emitter.last(rewardhub.EventTypeCompetitionRewardUpdated))
	missing := f.collectible(0)
	missing.Address = common.Address{}
	require.ErrorIs(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 103, missing), rewardhub.ErrMissingContract)
	require.ErrorIs(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 104), rewardhub.ErrRewardNotFound)
	require.ErrorIs(t, f.hub.ClaimCompetitionReward(user2, f.ticket, 103), rewardhub.ErrNotTicketOwner)
	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 103))
	attrs := f.emitter.last(rewardhub.EventTypeCompetitionClaimedCrossChain)
	require.Equal(t, "56", attrs["chainId"])
	require.Equal(t, user1.Hex(), attrs["account"])
	bal, _ := f.ledger.FungibleBalance(usdt, user1)
	require.Zero(t, bal.Sign())
	require.ErrorIs(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 103, f.collectible(250)), rewardhub.ErrClaimedReward)
	require.ErrorIs(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 103), rewardhub.ErrAlreadyClaimed)

	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 100))
	nativeBal, _ := f.ledger.NativeBalance(user1)
	require.Equal(t, int64(500), nativeBal.Int64())
	hubBal, _ := f.ledger.NativeBalance(f.hub.Address())
	require.Equal(t, int64(9_500), hubBal.Int64())

	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 101))
	bal, _ = f.ledger.FungibleBalance(usdt, user1)
	require.Equal(t, int64(500), bal.Int64())

	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 102))
	holder, _ := f.nfts.OwnerOf(f.prize, 334)
	require.Equal(t, user1, holder)

	for id := range specs {
		reward, err := f.hub.CompetitionReward(f.ticket, id)
		require.NoError(t, err)
		require.True(t, reward.IsClaimed, "ticket %d", id)
	}
}

func TestFailedNativeTransferLeavesRewardUnclaimed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 100, native(500)))
	require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 101, native(50_000)))

	f.ledger.SetReceiveHook(user1, func(common.Address, *big.Int) error { return errors.New("rejected") })
	err := f.hub.ClaimCompetitionReward(user1, f.ticket, 100)
	require.ErrorIs(t, err, treasury.ErrTransferFailed)
	reward, err := f.hub.CompetitionReward(f.ticket, 100)
	require.NoError(t, err)
	require.False(t, reward.IsClaimed)

	f.ledger.SetReceiveHook(user1, nil)
	require.ErrorIs(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 101), treasury.ErrInsufficientNative)
	reward, err = f.hub.CompetitionReward(f.ticket, 101)
	require.NoError(t, err)
	require.False(t, reward.IsClaimed)

	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 100))
}

func TestReentrantClaimIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 100, native(500)))
	require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 101, native(500)))

	var inner error
	f.ledger.SetReceiveHook(user1, func(common.Address, *big.Int) error {
		inner = f.hub.ClaimCompetitionReward(user1, f.ticket, 101)
		return nil
	})
	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 100))
	require.ErrorIs(t, inner, nativecommon.ErrReentrantCall)
	reward, _ := f.hub.CompetitionReward(f.ticket, 101)
	require.False(t, reward.IsClaimed)
}

func TestAirdropRemoveSwapsWithLast(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []int64{10, 20, 30} {
		require.NoError(t, f.hub.SetAirdropReward(definer, user2, 27, token(localChain, amount)))
	}
	require.ErrorIs(t, f.hub.RemoveAirdropReward(definer, user2, 27, 25), rewardhub.ErrIndexOutOfBounds)
	require.NoError(t, f.hub.RemoveAirdropReward(definer, user2, 27, 0))

	count, err := f.hub.AirdropRewardCount(user2, 27)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	moved, err := f.hub.AirdropReward(user2, 27, 0)
	require.NoError(t, err)
	require.Equal(t, int64(30), moved.Amount.Int64())
	_, err = f.hub.AirdropReward(user2, 27, 2)
	require.ErrorIs(t, err, rewardhub.ErrIndexOutOfBounds)

	require.NoError(t, f.hub.ClaimAirdropReward(user2, 27, 1))
	require.ErrorIs(t, f.hub.RemoveAirdropReward(definer, user2, 27, 1), rewardhub.ErrRemoveClaimed)
	require.ErrorIs(t, f.hub.ClaimAirdropReward(user2, 27, 1), rewardhub.ErrAlreadyClaimed)
	require.ErrorIs(t, f.hub.ClaimAirdropReward(user2, 27, 5), rewardhub.ErrIndexOutOfBounds)
	bal, _ := f.ledger.FungibleBalance(usdt, user2)
	require.Equal(t, int64(20), bal.Int64())
}

func TestClaimAllAirdropRewards(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 25, native(500)))
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 25, token(localChain, 500)))
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 25, f.collectible(333)))
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 25, token(otherChain, 250)))
	require.NoError(t, f.hub.ClaimAirdropReward(user2, 25, 3))

	unclaimed, err := f.hub.UnclaimedAirdropRewardCount(user2, 25)
	require.NoError(t, err)
	require.Equal(t, uint64(3), unclaimed)

	n, err := f.hub.ClaimAllAirdropRewards(user2, 25)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	unclaimed, err = f.hub.UnclaimedAirdropRewardCount(user2, 25)
	require.NoError(t, err)
	require.Zero(t, unclaimed)

	nativeBal, _ := f.ledger.NativeBalance(user2)
	require.Equal(t, int64(500), nativeBal.Int64())
	bal, _ := f.ledger.FungibleBalance(usdt, user2)
	require.Equal(t, int64(500), bal.Int64())
	holder, _ := f.nfts.OwnerOf(f.prize, 333)
	require.Equal(t, user2, holder)

	n, err = f.hub.ClaimAllAirdropRewards(user2, 25)
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = f.hub.ClaimAllAirdropRewards(user1, 99)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestBatchSetters(t *testing.T) {
	f := newFixture(t)
	amounts := []*big.Int{big.NewInt(2500)}

	require.ErrorIs(t, f.hub.SetAirdropNativeRewardBatch(definer, 7000, localChain, nil, nil), rewardhub.ErrEmptyRewards)
	require.ErrorIs(t, f.hub.SetAirdropNativeRewardBatch(definer, 7000, localChain, []common.Address{user1}, nil), rewardhub.ErrLengthMismatch)
	require.NoError(t, f.hub.SetAirdropNativeRewardBatch(definer, 7000, localChain, []common.Address{user1}, amounts))
	reward, err := f.hub.AirdropReward(user1, 7000, 0)
	require.NoError(t, err)
	require.Equal(t, nativecommon.RewardNative, reward.Type)
	require.Equal(t, common.Address{}, reward.Address)
	require.Equal(t, int64(2500), reward.Amount.Int64())

	require.ErrorIs(t, f.hub.SetAirdropTokenRewardBatch(definer, 8000, usdt, localChain, nil, nil), rewardhub.ErrEmptyRewards)
	require.NoError(t, f.hub.SetAirdropTokenRewardBatch(definer, 8000, usdt, localChain, []common.Address{user1}, amounts))
	reward, err = f.hub.AirdropReward(user1, 8000, 0)
	require.NoError(t, err)
	require.Equal(t, usdt, reward.Address)

	require.ErrorIs(t, f.hub.SetCompetitionNativeRewardBatch(definer, 88, 90, f.ticket, localChain, nil, nil), rewardhub.ErrEmptyRewards)
	require.ErrorIs(t, f.hub.SetCompetitionNativeRewardBatch(definer, 88, 90, f.ticket, localChain, []uint64{10}, nil), rewardhub.ErrLengthMismatch)
	require.NoError(t, f.hub.SetCompetitionNativeRewardBatch(definer, 88, 90, f.ticket, localChain, []uint64{10}, amounts))
	require.NoError(t, f.hub.SetCompetitionTokenRewardBatch(definer, 88, 90, f.ticket, localChain, usdt, []uint64{11}, amounts))
	reward, err = f.hub.CompetitionReward(f.ticket, 11)
	require.NoError(t, err)
	require.Equal(t, nativecommon.RewardToken, reward.Type)
	require.Equal(t, uint64(88), reward.PeriodID)
	require.Equal(t, uint64(90), reward.CompetitionID)

	// A bad entry aborts the whole batch.
	err = f.hub.SetCompetitionTokenRewardBatch(definer, 88, 90, f.ticket, localChain, usdt, []uint64{12, 13}, []*big.Int{big.NewInt(1), big.NewInt(0)})
	require.ErrorIs(t, err, rewardhub.ErrInvalidAmount)
	reward, err = f.hub.CompetitionReward(f.ticket, 12)
	require.NoError(t, err)
	require.False(t, reward.Exists)
}

func TestRewardDefinerRole(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.hub.SetRewardDefiner(user1, user1), rewardhub.ErrUnauthorized)
	require.ErrorIs(t, f.hub.SetRewardDefiner(owner, common.Address{}), rewardhub.ErrZeroAddress)
	require.NoError(t, f.hub.SetRewardDefiner(owner, user1))
	require.ErrorIs(t, f.hub.SetAirdropReward(definer, user2, 1, native(1)), rewardhub.ErrNotRewardDefiner)
	require.NoError(t, f.hub.SetAirdropReward(user1, user2, 1, native(1)))

	chain, err := f.hub.ChainID()
	require.NoError(t, err)
	require.Equal(t, uint64(localChain), chain)
}

func TestCrossChainClaimsAreStagedForSettlement(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 100, token(otherChain, 500)))
	require.NoError(t, f.hub.SetCompetitionReward(definer, 1, 1, f.ticket, 101, native(500)))
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 7, token(otherChain, 250)))
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 7, native(100)))

	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 100))
	require.NoError(t, f.hub.ClaimCompetitionReward(user1, f.ticket, 101))
	n, err := f.hub.ClaimAllAirdropRewards(user2, 7)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	pending, err := nativecommon.PendingSettlements(f.state)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, rewardhub.EventTypeCompetitionClaimedCrossChain, pending[0].Type)
	require.Equal(t, "100", pending[0].Event().Attr("ticketId"))
	require.Equal(t, "56", pending[0].Event().Attr("chainId"))
	require.Equal(t, rewardhub.EventTypeAirdropClaimedCrossChain, pending[1].Type)
	require.Equal(t, "0", pending[1].Event().Attr("index"))
	require.Equal(t, "250", pending[1].Event().Attr("amount"))
	require.Greater(t, pending[1].ID, pending[0].ID)

	removed, err := nativecommon.AckSettlements(f.state, []uint64{pending[0].ID, 999})
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	pending, err = nativecommon.PendingSettlements(f.state)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, rewardhub.EventTypeAirdropClaimedCrossChain, pending[0].Type)
}

func TestFailedBatchClaimStagesNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 8, token(otherChain, 250)))
	require.NoError(t, f.hub.SetAirdropReward(definer, user2, 8, native(50_000)))

	_, err := f.hub.ClaimAllAirdropRewards(user2, 8)
	require.Error(t, err)
	pending, err := nativecommon.PendingSettlements(f.state)
	require.NoError(t, err)
	require.Empty(t, pending)
	reward, err := f.hub.AirdropReward(user2, 8, 0)
	require.NoError(t, err)
	require.False(t, reward.IsClaimed)
}
