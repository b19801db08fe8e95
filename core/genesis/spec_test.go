package genesis_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"zizyhub/core/genesis"
	"zizyhub/core/state"
	"zizyhub/native/assets"
	"zizyhub/native/competition"
	"zizyhub/native/nft"
	"zizyhub/native/popa"
	"zizyhub/native/rewardhub"
	"zizyhub/native/stakerewards"
	"zizyhub/native/staking"
	"zizyhub/storage"
)

const sampleSpec = `chainId: 56
owner: "0x00000000000000000000000000000000000000a1"
rewardDefiner: "0x00000000000000000000000000000000000000a2"
ticketMinter: "0x00000000000000000000000000000000000000a3"
paymentReceiver: "0x00000000000000000000000000000000000000a4"
native:
  "0x00000000000000000000000000000000000000a1": "1_000_000"
  "0x00000000000000000000000000000000000000b1": 0
tokens:
  - address: "0x0000000000000000000000000000000000000e22"
    symbol: ZIZY
    decimals: 8
    balances:
      "0x00000000000000000000000000000000000000b1": 250000
      "0x00000000000000000000000000000000000000b2": "1000"
staking:
  stakeToken: "0x0000000000000000000000000000000000000e22"
  feeAddress: "0x00000000000000000000000000000000000000a5"
  stakeFeePercentage: 2
  cooling:
    percentage: 15
    coolingDays: 15
    coolestDays: 0
popa:
  minter: "0x00000000000000000000000000000000000000a6"
  claimPayment: "1000"
  allocationPercentage: 25
`

var (
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user1      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	user2      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	stakeToken = common.HexToAddress("0x0000000000000000000000000000000000000e22")
)

func TestLoadGenesisSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpec), 0o644))

	spec, err := genesis.LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, uint64(56), spec.ChainID)
	require.Equal(t, owner, spec.Owner.Address)
	require.Equal(t, "1000000", spec.Native[strings.ToLower(owner.Hex())].String())
	require.Len(t, spec.Tokens, 1)
	require.Equal(t, uint8(8), spec.Tokens[0].Decimals)
	require.Equal(t, uint64(15), spec.Staking.Cooling.Percentage)
	require.Nil(t, spec.Staking.LockModerator)
	require.Equal(t, int64(1000), spec.Popa.ClaimPayment.Big().Int64())

	_, err = genesis.LoadGenesisSpec(" ")
	require.Error(t, err)
}

func TestParseGenesisSpecRejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		from, to string
		want     string
	}{
		"unregistered stake token": {
			from: `stakeToken: "0x0000000000000000000000000000000000000e22"`,
			to:   `stakeToken: "0x0000000000000000000000000000000000000e99"`,
			want: "not registered",
		},
		"negative amount": {
			from: `claimPayment: "1000"`,
			to:   `claimPayment: "-5"`,
			want: "must not be negative",
		},
		"bad address": {
			from: `owner: "0x00000000000000000000000000000000000000a1"`,
			to:   `owner: "nope"`,
			want: "invalid address",
		},
		"unknown field": {
			from: "chainId: 56",
			to:   "chainId: 56\nvalidators: []",
			want: "validators",
		},
		"percentage": {
			from: "allocationPercentage: 25",
			to:   "allocationPercentage: 250",
			want: "allocationPercentage",
		},
		"missing chain id": {
			from: "chainId: 56",
			to:   "chainId: 0",
			want: "chainId",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := genesis.ParseGenesisSpec([]byte(strings.Replace(sampleSpec, tc.from, tc.to, 1)))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func newModules(mgr *state.Manager) genesis.Modules {
	nfts := nft.NewRegistry(mgr)
	ledger := assets.NewLedger(mgr, nfts)
	st := staking.NewEngine()
	st.SetState(mgr)
	st.SetAssets(ledger)
	comp := competition.NewRegistry()
	comp.SetState(mgr)
	comp.SetStaking(st)
	comp.SetTickets(nfts)
	comp.SetAssets(ledger)
	st.SetPeriods(comp)
	hub := rewardhub.NewHub()
	hub.SetState(mgr)
	hub.SetAssets(ledger)
	rewards := stakerewards.NewEngine()
	rewards.SetState(mgr)
	rewards.SetStaking(st)
	rewards.SetAssets(ledger)
	gate := popa.NewGate()
	gate.SetState(mgr)
	gate.SetCollectibles(nfts)
	gate.SetCompetition(comp)
	gate.SetAssets(ledger)
	return genesis.Modules{
		Ledger:       ledger,
		NFTs:         nfts,
		Staking:      st,
		Competition:  comp,
		RewardHub:    hub,
		StakeRewards: rewards,
		Popa:         gate,
	}
}

func TestApply(t *testing.T) {
	spec, err := genesis.ParseGenesisSpec([]byte(sampleSpec))
	require.NoError(t, err)

	mgr := state.NewManager(storage.NewMemDB())
	m := newModules(mgr)
	require.NoError(t, genesis.Apply(spec, m))
	require.NoError(t, mgr.Commit())

	native, err := m.Ledger.NativeBalance(owner)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), native.Int64())
	bal, err := m.Ledger.FungibleBalance(stakeToken, user1)
	require.NoError(t, err)
	require.Equal(t, int64(250000), bal.Int64())
	bal, err = m.Ledger.FungibleBalance(stakeToken, user2)
	require.NoError(t, err)
	require.Equal(t, int64(1000), bal.Int64())

	stCfg, err := m.Staking.Config()
	require.NoError(t, err)
	require.Equal(t, owner, stCfg.Owner)
	require.Equal(t, uint64(2), stCfg.StakeFeePercentage)
	require.Equal(t, uint64(15), stCfg.CoolingPercentage)
	require.Equal(t, m.Competition.Address(), stCfg.CompetitionFactory)

	hubCfg, err := m.RewardHub.Config()
	require.NoError(t, err)
	require.Equal(t, uint64(56), hubCfg.ChainID)

	pct, err := m.Popa.AllocationPercentage()
	require.NoError(t, err)
	require.Equal(t, uint64(25), pct)

	// A second apply hits already-initialized modules.
	require.Error(t, genesis.Apply(spec, m))
	require.Error(t, genesis.Apply(nil, m))
	require.Error(t, genesis.Apply(spec, genesis.Modules{}))
}
