package competition_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"zizyhub/core/state"
	"zizyhub/native/assets"
	"zizyhub/native/competition"
	"zizyhub/native/nft"
	"zizyhub/native/staking"
	"zizyhub/storage"
)

const day = 24 * 60 * 60

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	receiver = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	minter   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	feeSink  = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	stakeTok = common.HexToAddress("0x0000000000000000000000000000000000000e20")
	usdt     = common.HexToAddress("0x0000000000000000000000000000000000000e21")
)

type fixture struct {
	registry *competition.Registry
	staking  *staking.Engine
	ledger   *assets.Ledger
	tickets  *nft.Registry
	start    int64
	now      int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	f := &fixture{start: 1_700_000_000}
	f.now = f.start
	clock := func() int64 { return f.now }

	f.tickets = nft.NewRegistry(mgr)
	f.tickets.SetNowFunc(clock)
	require.NoError(t, f.tickets.Initialize(owner))

	f.ledger = assets.NewLedger(mgr, f.tickets)
	require.NoError(t, f.ledger.RegisterToken(stakeTok, "ZIZY", 18))
	require.NoError(t, f.ledger.RegisterToken(usdt, "USDT", 6))

	f.staking = staking.NewEngine()
	f.staking.SetState(mgr)
	f.staking.SetAssets(f.ledger)
	f.staking.SetNowFunc(clock)

	f.registry = competition.NewRegistry()
	f.registry.SetState(mgr)
	f.registry.SetStaking(f.staking)
	f.registry.SetTickets(f.tickets)
	f.registry.SetAssets(f.ledger)
	f.registry.SetNowFunc(clock)
	f.staking.SetPeriods(f.registry)

	require.NoError(t, f.staking.Initialize(owner, stakeTok, feeSink))
	require.NoError(t, f.staking.SetCompetitionFactory(owner, f.registry.Address()))
	require.NoError(t, f.tickets.SetDeployer(owner, f.registry.Address(), true))
	require.NoError(t, f.registry.Initialize(owner, receiver, minter))

	for _, acct := range []common.Address{alice, bob} {
		require.NoError(t, f.ledger.MintToken(stakeTok, acct, big.NewInt(1_000_000)))
		require.NoError(t, f.ledger.MintToken(usdt, acct, big.NewInt(1_000_000)))
		require.NoError(t, f.ledger.Approve(stakeTok, acct, f.staking.Vault(), big.NewInt(1_000_000)))
		require.NoError(t, f.ledger.Approve(usdt, acct, f.registry.Address(), big.NewInt(1_000_000)))
	}
	return f
}

func (f *fixture) createPeriod(t *testing.T, id uint64) {
	t.Helper()
	s := uint64(f.start)
	require.NoError(t, f.registry.CreatePeriod(owner, id, s, s+30*day, s+10*day, s+20*day))
}

// openCompetition runs the period up to its buy window with the standard
// three tiers configured.
func (f *fixture) openCompetition(t *testing.T, stakes map[common.Address]int64) {
	t.Helper()
	f.createPeriod(t, 1)
	for acct, amount := range stakes {
		require.NoError(t, f.staking.Stake(acct, big.NewInt(amount)))
	}
	require.NoError(t, f.registry.SetActivePeriod(owner, 1))
	for i := 0; i < 2; i++ {
		_, err := f.staking.Snapshot()
		require.NoError(t, err)
	}
	_, err := f.registry.CreateCompetition(owner, 1, 1, "Competition Ticket", "TCK")
	require.NoError(t, err)
	require.NoError(t, f.registry.SetCompetitionPayment(owner, 1, 1, usdt, big.NewInt(2)))
	require.NoError(t, f.registry.SetCompetitionSnapshotRange(owner, 1, 1, 1, 3))
	require.NoError(t, f.registry.SetCompetitionTiers(owner, 1, 1,
		[]*big.Int{big.NewInt(100), big.NewInt(4001), big.NewInt(10001)},
		[]*big.Int{big.NewInt(4000), big.NewInt(10000), big.NewInt(50000)},
		[]uint64{50, 100, 150},
	))
	f.now = f.start + 10*day + 1
	for acct := range stakes {
		_, err := f.staking.CalculatePeriodStakeAverage(acct)
		require.NoError(t, err)
	}
}

func TestPeriodLifecycle(t *testing.T) {
	f := newFixture(t)
	s := uint64(f.start)

	require.ErrorIs(t, f.registry.UpdatePeriod(owner, 1, s, s+day, s, s), competition.ErrNoPeriod)
	require.ErrorIs(t, f.registry.CreatePeriod(owner, 0, s, s+day, s, s), competition.ErrInvalidPeriodID)
	require.ErrorIs(t, f.registry.CreatePeriod(alice, 1, s, s+day, s, s), competition.ErrUnauthorized)
	f.createPeriod(t, 1)
	require.ErrorIs(t, f.registry.CreatePeriod(owner, 1, s, s+day, s, s), competition.ErrPeriodExists)
	f.createPeriod(t, 2)

	require.ErrorIs(t, f.registry.SetActivePeriod(owner, 9), competition.ErrPeriodNotFound)
	require.NoError(t, f.registry.SetActivePeriod(owner, 1))
	require.ErrorIs(t, f.registry.SetActivePeriod(owner, 1), competition.ErrPeriodAlreadyActive)

	snap, err := f.staking.SnapshotID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap)

	require.NoError(t, f.registry.SetActivePeriod(owner, 2))
	view, err := f.registry.Period(1)
	require.NoError(t, err)
	require.True(t, view.IsOver)
	require.False(t, view.IsActive)
	require.ErrorIs(t, f.registry.SetActivePeriod(owner, 1), competition.ErrPeriodOver)
	_, err = f.registry.CreateCompetition(owner, 1, 1, "Late", "LT")
	require.ErrorIs(t, err, competition.ErrPeriodOver)

	// Moving the end time into the past ends the active period too.
	require.NoError(t, f.registry.UpdatePeriod(owner, 2, s-2*day, s-day, s-2*day, s-day))
	view, err = f.registry.Period(2)
	require.NoError(t, err)
	require.True(t, view.IsOver)
	require.True(t, view.IsActive)

	count, err := f.registry.PeriodCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}

func TestCreateCompetitionDeploysTicketLedger(t *testing.T) {
	f := newFixture(t)
	f.createPeriod(t, 1)

	ticket, err := f.registry.CreateCompetition(owner, 1, 7, "Competition Ticket", "TCK")
	require.NoError(t, err)
	collection, err := f.tickets.Collection(ticket)
	require.NoError(t, err)
	require.Equal(t, f.registry.Address(), collection.Owner)

	_, err = f.registry.CreateCompetition(owner, 1, 7, "Again", "AG")
	require.ErrorIs(t, err, competition.ErrCompetitionExists)

	id, err := f.registry.CompetitionIDWithIndex(1, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(7), id)
	_, err = f.registry.CompetitionIDWithIndex(1, 1)
	require.ErrorIs(t, err, competition.ErrIndexOutOfBounds)

	total, err := f.registry.CompetitionCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)

	require.ErrorIs(t, f.registry.SetCompetitionPayment(owner, 1, 7, common.Address{}, big.NewInt(2)), competition.ErrZeroPaymentToken)
	require.ErrorIs(t, f.registry.SetCompetitionPayment(owner, 1, 7, usdt, big.NewInt(0)), competition.ErrZeroTicketPrice)
	require.ErrorIs(t, f.registry.SetCompetitionPayment(owner, 1, 8, usdt, big.NewInt(2)), competition.ErrCompetitionNotFound)
	require.ErrorIs(t, f.registry.SetCompetitionTiers(owner, 1, 7, nil, nil, nil), competition.ErrEmptyTiers)
	require.ErrorIs(t, f.registry.SetCompetitionTiers(owner, 1, 7,
		[]*big.Int{big.NewInt(1)}, []*big.Int{}, []uint64{1}), competition.ErrTierLengthMismatch)
	require.ErrorIs(t, f.registry.SetCompetitionSnapshotRange(owner, 1, 7, 3, 1), competition.ErrInvalidRange)
	// The period has not been activated so it spans no snapshots yet.
	require.ErrorIs(t, f.registry.SetCompetitionSnapshotRange(owner, 1, 7, 1, 1), competition.ErrRangeOutsidePeriod)
}

func TestAllocationUsesFirstMatchingTier(t *testing.T) {
	f := newFixture(t)
	f.openCompetition(t, map[common.Address]int64{alice: 5000, bob: 99})

	alloc, err := f.registry.Allocation(alice, 1, 1)
	require.NoError(t, err)
	require.True(t, alloc.HasAllocation)
	require.Equal(t, uint64(100), alloc.Max)
	require.Zero(t, alloc.Bought)

	alloc, err = f.registry.Allocation(bob, 1, 1)
	require.NoError(t, err)
	require.False(t, alloc.HasAllocation)
	require.Zero(t, alloc.Max)

	err = f.registry.BuyTicket(bob, 1, 1, 1)
	require.ErrorIs(t, err, competition.ErrMaxAllocationExceeded)
}

func TestAllocationReadsCachedPeriodAverageOnly(t *testing.T) {
	f := newFixture(t)
	f.openCompetition(t, map[common.Address]int64{alice: 5000})

	// Stake enough for the top tier and point the competition at the new snapshot.
	require.NoError(t, f.staking.Stake(alice, big.NewInt(40_000)))
	id, err := f.staking.Snapshot()
	require.NoError(t, err)
	require.NoError(t, f.registry.SetCompetitionSnapshotRange(owner, 1, 1, id, id))
	c, err := f.registry.Competition(1, 1)
	require.NoError(t, err)
	require.Equal(t, id, c.SnapshotMin)

	alloc, err := f.registry.Allocation(alice, 1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), alloc.Max)
}

func TestBuyTicketPaysReceiverAndEnforcesCeiling(t *testing.T) {
	f := newFixture(t)
	f.createPeriod(t, 1)
	require.NoError(t, f.staking.Stake(alice, big.NewInt(5000)))
	require.NoError(t, f.registry.SetActivePeriod(owner, 1))
	_, err := f.registry.CreateCompetition(owner, 1, 1, "Competition Ticket", "TCK")
	require.NoError(t, err)

	ok, err := f.registry.CanTicketBuy(1, 1)
	require.NoError(t, err)
	require.False(t, ok, "payment not configured")
	require.NoError(t, f.registry.SetCompetitionPayment(owner, 1, 1, usdt, big.NewInt(2)))
	ok, err = f.registry.CanTicketBuy(1, 1)
	require.NoError(t, err)
	require.False(t, ok, "outside buy window")
	require.ErrorIs(t, f.registry.BuyTicket(alice, 1, 1, 1), competition.ErrNotInBuyStage)

	require.NoError(t, f.registry.SetCompetitionTiers(owner, 1, 1,
		[]*big.Int{big.NewInt(100), big.NewInt(4001), big.NewInt(10001)},
		[]*big.Int{big.NewInt(4000), big.NewInt(10000), big.NewInt(50000)},
		[]uint64{50, 100, 150},
	))
	f.now = f.start + 10*day + 1
	_, err = f.staking.CalculatePeriodStakeAverage(alice)
	require.NoError(t, err)

	require.ErrorIs(t, f.registry.BuyTicket(alice, 1, 1, 0), competition.ErrInvalidTicketCount)
	require.NoError(t, f.registry.BuyTicket(alice, 1, 1, 5))
	paid, err := f.ledger.FungibleBalance(usdt, receiver)
	require.NoError(t, err)
	require.Equal(t, int64(10), paid.Int64())

	require.NoError(t, f.registry.BuyTicket(alice, 1, 1, 10))
	require.ErrorIs(t, f.registry.BuyTicket(alice, 1, 1, 86), competition.ErrMaxAllocationExceeded)

	alloc, err := f.registry.Allocation(alice, 1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(15), alloc.Bought)
	c, err := f.registry.Competition(1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(15), c.TicketSold)

	bought, limit, err := f.registry.Participation(alice, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(15), bought)
	require.Equal(t, uint64(100), limit)
}

func TestBuyTicketWithoutAllowanceLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.openCompetition(t, map[common.Address]int64{alice: 5000})
	require.NoError(t, f.ledger.Approve(usdt, alice, f.registry.Address(), big.NewInt(1)))

	err := f.registry.BuyTicket(alice, 1, 1, 5)
	require.ErrorIs(t, err, assets.ErrInsufficientAllowance)

	pur, err := f.registry.Purchase(alice, 1, 1)
	require.NoError(t, err)
	require.Zero(t, pur.Bought)
	c, err := f.registry.Competition(1, 1)
	require.NoError(t, err)
	require.Zero(t, c.TicketSold)
}

func TestMintNeverExceedsBought(t *testing.T) {
	f := newFixture(t)
	f.openCompetition(t, map[common.Address]int64{alice: 5000})
	require.NoError(t, f.registry.BuyTicket(alice, 1, 1, 15))

	batch := make([]uint64, 14)
	for i := range batch {
		batch[i] = uint64(100_000 + i)
	}
	require.ErrorIs(t, f.registry.MintBatchTicket(bob, 1, 1, alice, batch), competition.ErrNotMinter)
	require.ErrorIs(t, f.registry.MintBatchTicket(minter, 1, 1, alice, nil), competition.ErrEmptyTicketIDs)
	require.NoError(t, f.registry.MintBatchTicket(minter, 1, 1, alice, batch))

	supply, err := f.registry.TotalSupplyOfCompetition(1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(14), supply)

	require.NoError(t, f.registry.PauseCompetitionTransfer(owner, 1, 1))
	require.NoError(t, f.registry.UnpauseCompetitionTransfer(owner, 1, 1))
	require.NoError(t, f.registry.SetCompetitionBaseURI(owner, 1, 1, "https://random.host/"))

	require.ErrorIs(t, f.registry.MintBatchTicket(minter, 1, 1, alice, batch), competition.ErrMaximumTicketsMinted)
	require.ErrorIs(t, f.registry.MintTicket(bob, 1, 1, alice, 200_000), competition.ErrNotMinter)
	require.ErrorIs(t, f.registry.MintTicket(minter, 1, 999999, alice, 200_000), competition.ErrCompetitionNotFound)
	require.NoError(t, f.registry.MintTicket(minter, 1, 1, alice, 200_000))
	err = f.registry.MintTicket(minter, 1, 1, alice, 200_001)
	if !errors.Is(err, competition.ErrMaximumTicketsMinted) {
		t.Fatalf("expected over-mint to fail, got %v", err)
	}

	c, err := f.registry.Competition(1, 1)
	require.NoError(t, err)
	holder, err := f.tickets.OwnerOf(c.Ticket, 200_000)
	require.NoError(t, err)
	require.Equal(t, alice, holder)
	uri, err := f.tickets.TokenURI(c.Ticket, 200_000)
	require.NoError(t, err)
	require.Equal(t, "https://random.host/200000", uri)
}

func TestSettersRequireOwnerAndNonZero(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.registry.SetPaymentReceiver(alice, bob), competition.ErrUnauthorized)
	require.ErrorIs(t, f.registry.SetPaymentReceiver(owner, common.Address{}), competition.ErrZeroPaymentReceiver)
	require.NoError(t, f.registry.SetPaymentReceiver(owner, bob))
	require.ErrorIs(t, f.registry.SetTicketMinter(owner, common.Address{}), competition.ErrZeroMinter)
	require.NoError(t, f.registry.SetTicketMinter(owner, bob))

	cfg, err := f.registry.Config()
	require.NoError(t, err)
	require.Equal(t, bob, cfg.PaymentReceiver)
	require.Equal(t, bob, cfg.TicketMinter)
	require.ErrorIs(t, f.registry.Initialize(owner, receiver, minter), competition.ErrAlreadyInitialized)
}
