package genesis

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/assets"
	"zizyhub/native/competition"
	"zizyhub/native/nft"
	"zizyhub/native/popa"
	"zizyhub/native/rewardhub"
	"zizyhub/native/stakerewards"
	"zizyhub/native/staking"
)

// Modules are the engines a genesis spec initializes. All of them must share
// one state backend.
type Modules struct {
	Ledger       *assets.Ledger
	NFTs         *nft.Registry
	Staking      *staking.Engine
	Competition  *competition.Registry
	RewardHub    *rewardhub.Hub
	StakeRewards *stakerewards.Engine
	Popa         *popa.Gate
}

func (m Modules) validate() error {
	if m.Ledger == nil || m.NFTs == nil || m.Staking == nil || m.Competition == nil ||
		m.RewardHub == nil || m.StakeRewards == nil || m.Popa == nil {
		return fmt.Errorf("genesis modules incomplete")
	}
	return nil
}

// Apply writes the genesis state through the engines. Balances are applied
// in address order so two nodes build byte-identical state. The caller owns
// commit or rollback of the shared state.
func Apply(spec *GenesisSpec, m Modules) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if err := m.validate(); err != nil {
		return err
	}
	owner := spec.Owner.Address

	// 1) Collectible registry and the modules allowed to deploy collections.
	if err := m.NFTs.Initialize(owner); err != nil {
		return fmt.Errorf("nft: %w", err)
	}
	for _, deployer := range []common.Address{m.Competition.Address(), m.Popa.Address()} {
		if err := m.NFTs.SetDeployer(owner, deployer, true); err != nil {
			return fmt.Errorf("nft deployer %s: %w", deployer.Hex(), err)
		}
	}

	// 2) Tokens (sorted by address) and their holders.
	tokens := append([]TokenSpec(nil), spec.Tokens...)
	sort.Slice(tokens, func(i, j int) bool {
		return bytes.Compare(tokens[i].Address.Bytes(), tokens[j].Address.Bytes()) < 0
	})
	for i := range tokens {
		token := &tokens[i]
		if err := m.Ledger.RegisterToken(token.Address.Address, token.Symbol, token.Decimals); err != nil {
			return fmt.Errorf("register token %q: %w", token.Symbol, err)
		}
		for _, holder := range sortedHolders(token.Balances) {
			amount := token.Balances[holder].Big()
			if amount.Sign() == 0 {
				continue
			}
			if err := m.Ledger.MintToken(token.Address.Address, common.HexToAddress(holder), amount); err != nil {
				return fmt.Errorf("token %q alloc %s: %w", token.Symbol, holder, err)
			}
		}
	}

	// 3) Native allocations.
	for _, holder := range sortedHolders(spec.Native) {
		amount := spec.Native[holder].Big()
		if amount.Sign() == 0 {
			continue
		}
		if err := m.Ledger.CreditNative(common.HexToAddress(holder), amount); err != nil {
			return fmt.Errorf("native alloc %s: %w", holder, err)
		}
	}

	// 4) Staking ledger.
	st := spec.Staking
	if err := m.Staking.Initialize(owner, st.StakeToken.Address, st.FeeAddress.Address); err != nil {
		return fmt.Errorf("staking: %w", err)
	}
	if st.StakeFeePercentage != nil {
		if err := m.Staking.SetStakeFeePercentage(owner, *st.StakeFeePercentage); err != nil {
			return fmt.Errorf("staking fee: %w", err)
		}
	}
	if c := st.Cooling; c != nil {
		if err := m.Staking.UpdateCoolingOffSettings(owner, c.Percentage, c.CoolingDays, c.CoolestDays); err != nil {
			return fmt.Errorf("staking cooling: %w", err)
		}
	}
	if st.LockModerator != nil {
		if err := m.Staking.SetLockModerator(owner, st.LockModerator.Address); err != nil {
			return fmt.Errorf("staking lock moderator: %w", err)
		}
	}
	if err := m.Staking.SetCompetitionFactory(owner, m.Competition.Address()); err != nil {
		return fmt.Errorf("staking factory: %w", err)
	}

	// 5) Competitions and rewards.
	if err := m.Competition.Initialize(owner, spec.PaymentReceiver.Address, spec.TicketMinter.Address); err != nil {
		return fmt.Errorf("competition: %w", err)
	}
	if err := m.RewardHub.Initialize(owner, spec.RewardDefiner.Address, spec.ChainID); err != nil {
		return fmt.Errorf("rewardhub: %w", err)
	}
	if err := m.StakeRewards.Initialize(owner, spec.RewardDefiner.Address, spec.ChainID); err != nil {
		return fmt.Errorf("stakerewards: %w", err)
	}

	// 6) Collectible claim gate.
	p := spec.Popa
	if err := m.Popa.Initialize(owner, p.Minter.Address, m.Competition.Address(), p.ClaimPayment.Big()); err != nil {
		return fmt.Errorf("popa: %w", err)
	}
	if p.AllocationPercentage != nil {
		if err := m.Popa.SetAllocationPercentage(owner, *p.AllocationPercentage); err != nil {
			return fmt.Errorf("popa allocation: %w", err)
		}
	}
	return nil
}

func sortedHolders(balances map[string]Amount) []string {
	holders := make([]string, 0, len(balances))
	for holder := range balances {
		holders = append(holders, holder)
	}
	sort.Slice(holders, func(i, j int) bool {
		return bytes.Compare(common.HexToAddress(holders[i]).Bytes(), common.HexToAddress(holders[j]).Bytes()) < 0
	})
	return holders
}
