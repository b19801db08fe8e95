package core

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"zizyhub/core/genesis"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/treasury"
	"zizyhub/storage"
)

const testGenesis = `chainId: 7
owner: "0x00000000000000000000000000000000000000a1"
rewardDefiner: "0x00000000000000000000000000000000000000a2"
ticketMinter: "0x00000000000000000000000000000000000000a3"
paymentReceiver: "0x00000000000000000000000000000000000000a4"
native:
  "0x00000000000000000000000000000000000000a1": "100000"
tokens:
  - address: "0x0000000000000000000000000000000000000e22"
    symbol: ZIZY
    decimals: 8
staking:
  stakeToken: "0x0000000000000000000000000000000000000e22"
  feeAddress: "0x00000000000000000000000000000000000000a5"
popa:
  minter: "0x00000000000000000000000000000000000000a6"
  claimPayment: "10"
`

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user1 = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func newTestNode(t *testing.T, db storage.Database, clock clockwork.Clock) *Node {
	t.Helper()
	n, err := NewNode(db,
		WithClock(clock),
		WithQuota(nativecommon.Quota{MaxRequestsPerWindow: 3, WindowSeconds: 60}),
		WithEventHistory(64),
	)
	require.NoError(t, err)
	spec, err := genesis.ParseGenesisSpec([]byte(testGenesis))
	require.NoError(t, err)
	require.NoError(t, n.InitGenesis(spec))
	return n
}

func TestExecuteRequiresGenesis(t *testing.T) {
	n, err := NewNode(storage.NewMemDB())
	require.NoError(t, err)
	err = n.Execute(context.Background(), owner, func() error { return nil })
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = n.ChainID()
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = NewNode(nil)
	require.Error(t, err)
}

func TestGenesisPersistsAcrossRestart(t *testing.T) {
	db := storage.NewMemDB()
	n := newTestNode(t, db, clockwork.NewFakeClock())
	chainID, err := n.ChainID()
	require.NoError(t, err)
	require.Equal(t, uint64(7), chainID)

	reopened, err := NewNode(db)
	require.NoError(t, err)
	got, err := reopened.Owner()
	require.NoError(t, err)
	require.Equal(t, owner, got)

	spec, err := genesis.ParseGenesisSpec([]byte(testGenesis))
	require.NoError(t, err)
	require.NoError(t, reopened.InitGenesis(spec))
	spec.ChainID = 8
	require.ErrorIs(t, reopened.InitGenesis(spec), ErrGenesisMismatch)

	bal, err := reopened.Ledger().NativeBalance(owner)
	require.NoError(t, err)
	require.Equal(t, int64(100000), bal.Int64())
}

func TestExecuteCommitsOrRollsBack(t *testing.T) {
	n := newTestNode(t, storage.NewMemDB(), clockwork.NewFakeClock())
	ctx := context.Background()
	hub := n.RewardHub()
	seq := n.Events().Seq()

	require.NoError(t, n.Execute(ctx, owner, func() error {
		return hub.Treasury().Deposit(owner, big.NewInt(500))
	}))
	bal, err := n.Ledger().NativeBalance(hub.Address())
	require.NoError(t, err)
	require.Equal(t, int64(500), bal.Int64())

	history := n.Events().History()
	require.Greater(t, n.Events().Seq(), seq)
	require.Equal(t, treasury.EventTypeDeposit, history[len(history)-1].Event.Type)

	// A failing operation leaves neither state nor events behind.
	seq = n.Events().Seq()
	boom := errors.New("boom")
	err = n.Execute(ctx, owner, func() error {
		if err := hub.Treasury().Deposit(owner, big.NewInt(700)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	bal, err = n.Ledger().NativeBalance(hub.Address())
	require.NoError(t, err)
	require.Equal(t, int64(500), bal.Int64())
	require.Equal(t, seq, n.Events().Seq())

	// Reward vaults only take treasury deposits.
	err = n.Execute(ctx, owner, func() error {
		return n.Ledger().TransferNative(owner, hub.Address(), big.NewInt(1))
	})
	require.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, n.Execute(cancelled, owner, func() error { return nil }), context.Canceled)
}

func TestExecuteQuota(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_040, 0))
	n := newTestNode(t, storage.NewMemDB(), clock)
	ctx := context.Background()
	noop := func() error { return nil }

	for i := 0; i < 3; i++ {
		require.NoError(t, n.Execute(ctx, user1, noop))
	}
	require.ErrorIs(t, n.Execute(ctx, user1, noop), ErrQuotaExceeded)
	// Other callers keep their own window.
	require.NoError(t, n.Execute(ctx, owner, noop))

	clock.Advance(time.Minute)
	require.NoError(t, n.Execute(ctx, user1, noop))
}

func TestSetPaused(t *testing.T) {
	n := newTestNode(t, storage.NewMemDB(), clockwork.NewFakeClock())
	ctx := context.Background()

	require.ErrorIs(t, n.SetPaused(ctx, user1, "nft", true), ErrUnauthorized)
	require.ErrorIs(t, n.SetPaused(ctx, owner, "bridge", true), ErrUnknownModule)

	require.NoError(t, n.SetPaused(ctx, owner, " NFT ", true))
	require.True(t, n.Pauses().IsPaused("nft"))
	require.Equal(t, []string{"nft"}, n.Pauses().Paused())
	history := n.Events().History()
	require.Equal(t, EventTypeModulePause, history[len(history)-1].Event.Type)
	require.Equal(t, "true", history[len(history)-1].Event.Attr("paused"))

	err := n.Execute(ctx, owner, func() error {
		_, err := n.NFTs().Deploy(owner, "Tickets", "TIX")
		return err
	})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.NoError(t, n.SetPaused(ctx, owner, "nft", false))
	require.NoError(t, n.Execute(ctx, owner, func() error {
		_, err := n.NFTs().Deploy(owner, "Tickets", "TIX")
		return err
	}))
}

func TestPauseRegistrySeed(t *testing.T) {
	r := NewPauseRegistry(map[string]bool{"Staking": true, "popa": false})
	require.True(t, r.IsPaused("staking"))
	require.False(t, r.IsPaused("popa"))
	var nilRegistry *PauseRegistry
	require.False(t, nilRegistry.IsPaused("staking"))
}

func TestPauseFlagsSurviveRestart(t *testing.T) {
	db := storage.NewMemDB()
	n := newTestNode(t, db, clockwork.NewFakeClock())
	ctx := context.Background()
	require.NoError(t, n.SetPaused(ctx, owner, "staking", true))
	require.NoError(t, n.SetPaused(ctx, owner, "popa", true))
	require.NoError(t, n.SetPaused(ctx, owner, "popa", false))

	// Stored toggles win over the configured seeds.
	reopened, err := NewNode(db, WithPauses(map[string]bool{"popa": true, "nft": true}))
	require.NoError(t, err)
	require.True(t, reopened.Pauses().IsPaused("staking"))
	require.False(t, reopened.Pauses().IsPaused("popa"))
	require.True(t, reopened.Pauses().IsPaused("nft"))
	require.Equal(t, []string{"nft", "staking"}, reopened.Pauses().Paused())
}

func TestSettlementOutboxAck(t *testing.T) {
	n := newTestNode(t, storage.NewMemDB(), clockwork.NewFakeClock())
	ctx := context.Background()
	var ids []uint64
	require.NoError(t, n.Execute(ctx, owner, func() error {
		for _, ticket := range []string{"1", "2", "3"} {
			id, err := nativecommon.StageSettlement(n.state, "rewardhub.competition.claimed_cross_chain", map[string]string{"ticketId": ticket})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}))
	// A failed operation stages nothing.
	boom := errors.New("boom")
	require.ErrorIs(t, n.Execute(ctx, owner, func() error {
		if _, err := nativecommon.StageSettlement(n.state, "rewardhub.competition.claimed_cross_chain", map[string]string{"ticketId": "9"}); err != nil {
			return err
		}
		return boom
	}), boom)

	pending, err := n.PendingSettlements()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, ids, []uint64{pending[0].ID, pending[1].ID, pending[2].ID})
	require.Equal(t, "2", pending[1].Event().Attr("ticketId"))

	require.NoError(t, n.AckSettlements(ids[:2]))
	require.NoError(t, n.AckSettlements(nil))
	pending, err = n.PendingSettlements()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ids[2], pending[0].ID)
}
