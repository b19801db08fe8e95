package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Amount is a non-negative base-10 integer. YAML may carry it as a string
// or a plain integer; underscores are accepted as digit separators.
type Amount struct {
	*big.Int
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	value, err := parseAmountString(strings.ReplaceAll(node.Value, "_", ""))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	a.Int = value
	return nil
}

func (a Amount) MarshalYAML() (interface{}, error) {
	return a.Big().String(), nil
}

// Big returns a copy of the amount, mapping unset values to zero.
func (a Amount) Big() *big.Int {
	if a.Int == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.Int)
}

// Address is a 0x-prefixed hex account.
type Address struct {
	common.Address
}

func (a *Address) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if !common.IsHexAddress(raw) {
		return fmt.Errorf("line %d: invalid address %q", node.Line, node.Value)
	}
	a.Address = common.HexToAddress(raw)
	return nil
}

func (a Address) MarshalYAML() (interface{}, error) {
	return a.Hex(), nil
}

type GenesisSpec struct {
	ChainID         uint64            `yaml:"chainId"`
	Owner           Address           `yaml:"owner"`
	RewardDefiner   Address           `yaml:"rewardDefiner"`
	TicketMinter    Address           `yaml:"ticketMinter"`
	PaymentReceiver Address           `yaml:"paymentReceiver"`
	Native          map[string]Amount `yaml:"native"`
	Tokens          []TokenSpec       `yaml:"tokens"`
	Staking         StakingSpec       `yaml:"staking"`
	Popa            PopaSpec          `yaml:"popa"`
}

type TokenSpec struct {
	Address  Address           `yaml:"address"`
	Symbol   string            `yaml:"symbol"`
	Decimals uint8             `yaml:"decimals"`
	Balances map[string]Amount `yaml:"balances"`
}

type StakingSpec struct {
	StakeToken         Address      `yaml:"stakeToken"`
	FeeAddress         Address      `yaml:"feeAddress"`
	StakeFeePercentage *uint64      `yaml:"stakeFeePercentage"`
	LockModerator      *Address     `yaml:"lockModerator"`
	Cooling            *CoolingSpec `yaml:"cooling"`
}

// CoolingSpec overrides the unstake fee schedule.
type CoolingSpec struct {
	Percentage  uint64 `yaml:"percentage"`
	CoolingDays uint64 `yaml:"coolingDays"`
	CoolestDays uint64 `yaml:"coolestDays"`
}

type PopaSpec struct {
	Minter               Address `yaml:"minter"`
	ClaimPayment         Amount  `yaml:"claimPayment"`
	AllocationPercentage *uint64 `yaml:"allocationPercentage"`
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes a YAML document, rejecting unknown fields.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) validate() error {
	if s.ChainID == 0 {
		return fmt.Errorf("chainId must be positive")
	}
	roles := []struct {
		name string
		addr common.Address
	}{
		{"owner", s.Owner.Address},
		{"rewardDefiner", s.RewardDefiner.Address},
		{"ticketMinter", s.TicketMinter.Address},
		{"paymentReceiver", s.PaymentReceiver.Address},
		{"staking.stakeToken", s.Staking.StakeToken.Address},
		{"staking.feeAddress", s.Staking.FeeAddress.Address},
		{"popa.minter", s.Popa.Minter.Address},
	}
	for _, role := range roles {
		if role.addr == (common.Address{}) {
			return fmt.Errorf("%s must be set", role.name)
		}
	}
	for holder := range s.Native {
		if !common.IsHexAddress(holder) {
			return fmt.Errorf("native holder %q is not an address", holder)
		}
	}
	seen := make(map[common.Address]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		if err := s.Tokens[i].validate(); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		addr := s.Tokens[i].Address.Address
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("token %s listed twice", addr.Hex())
		}
		seen[addr] = struct{}{}
	}
	if _, ok := seen[s.Staking.StakeToken.Address]; !ok {
		return fmt.Errorf("stake token %s is not registered", s.Staking.StakeToken.Hex())
	}
	if pct := s.Staking.StakeFeePercentage; pct != nil && *pct > 100 {
		return fmt.Errorf("staking.stakeFeePercentage must be <= 100")
	}
	if c := s.Staking.Cooling; c != nil && c.Percentage > 100 {
		return fmt.Errorf("staking.cooling.percentage must be <= 100")
	}
	if pct := s.Popa.AllocationPercentage; pct != nil && *pct > 100 {
		return fmt.Errorf("popa.allocationPercentage must be <= 100")
	}
	return nil
}

func (t *TokenSpec) validate() error {
	if t.Address.Address == (common.Address{}) {
		return fmt.Errorf("address must be set")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol must be set")
	}
	for holder := range t.Balances {
		if !common.IsHexAddress(holder) {
			return fmt.Errorf("holder %q is not an address", holder)
		}
	}
	return nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
