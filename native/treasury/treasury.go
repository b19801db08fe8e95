package treasury

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
	nativecommon "zizyhub/native/common"
)

const (
	// EventTypeDeposit is emitted when the owner funds a module vault.
	EventTypeDeposit = "treasury.deposit"
	// EventTypeWithdraw is emitted for every asset leaving a module vault.
	EventTypeWithdraw = "treasury.withdraw"
)

var (
	ErrUnauthorized       = errors.New("treasury: caller is not the owner")
	ErrInvalidAmount      = errors.New("treasury: amount must be positive")
	ErrInsufficientNative = errors.New("treasury: insufficient native balance")
	ErrTransferFailed     = errors.New("treasury: native coin transfer failed")
	ErrNotTokenOwner      = errors.New("treasury: vault is not owner of given tokenId")
	ErrZeroAddress        = errors.New("treasury: zero address")
)

// Assets is the ledger surface a vault needs.
type Assets interface {
	Deposit(from, vault common.Address, amount *big.Int) error
	TransferNative(from, to common.Address, amount *big.Int) error
	NativeBalance(addr common.Address) (*big.Int, error)
	TransferFungible(token, from, to common.Address, amount *big.Int) error
	TransferNonFungible(collection, from, to common.Address, tokenID uint64) error
	OwnerOf(collection common.Address, tokenID uint64) (common.Address, error)
}

// Vault lets a module owner move funds in and out of the module account.
type Vault struct {
	module  string
	address common.Address
	assets  Assets
	owner   func() (common.Address, error)
	emitter events.Emitter
}

// New builds the vault for module. owner resolves the account allowed to use it.
func New(module string, assets Assets, owner func() (common.Address, error)) *Vault {
	return &Vault{
		module:  module,
		address: nativecommon.ModuleAddress(module),
		assets:  assets,
		owner:   owner,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// Address returns the vault account.
func (v *Vault) Address() common.Address { return v.address }

func (v *Vault) authorize(caller common.Address) error {
	owner, err := v.owner()
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(owner) || caller != owner {
		return ErrUnauthorized
	}
	return nil
}

// Deposit moves native currency from the owner into the vault.
func (v *Vault) Deposit(caller common.Address, amount *big.Int) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if err := v.assets.Deposit(caller, v.address, amount); err != nil {
		return err
	}
	v.emit(EventTypeDeposit, map[string]string{"from": caller.Hex(), "amount": amount.String()})
	return nil
}

// Withdraw sends native currency back to the owner.
func (v *Vault) Withdraw(caller common.Address, amount *big.Int) error {
	return v.WithdrawTo(caller, caller, amount)
}

// WithdrawTo sends native currency to an arbitrary recipient.
func (v *Vault) WithdrawTo(caller, to common.Address, amount *big.Int) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroAddress
	}
	if err := v.PayNative(to, amount); err != nil {
		return err
	}
	v.emit(EventTypeWithdraw, map[string]string{"asset": "native", "to": to.Hex(), "amount": amount.String()})
	return nil
}

// WithdrawToken sends a fungible token back to the owner.
func (v *Vault) WithdrawToken(caller, token common.Address, amount *big.Int) error {
	return v.WithdrawTokenTo(caller, caller, token, amount)
}

// WithdrawTokenTo sends a fungible token to an arbitrary recipient.
func (v *Vault) WithdrawTokenTo(caller, to, token common.Address, amount *big.Int) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if err := v.assets.TransferFungible(token, v.address, to, amount); err != nil {
		return err
	}
	v.emit(EventTypeWithdraw, map[string]string{"asset": token.Hex(), "to": to.Hex(), "amount": amount.String()})
	return nil
}

// WithdrawNFT sends a non-fungible token held by the vault back to the owner.
func (v *Vault) WithdrawNFT(caller, collection common.Address, tokenID uint64) error {
	return v.WithdrawNFTTo(caller, caller, collection, tokenID)
}

// WithdrawNFTTo sends a non-fungible token held by the vault to a recipient.
func (v *Vault) WithdrawNFTTo(caller, to, collection common.Address, tokenID uint64) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	holder, err := v.assets.OwnerOf(collection, tokenID)
	if err != nil {
		return err
	}
	if holder != v.address {
		return ErrNotTokenOwner
	}
	if err := v.assets.TransferNonFungible(collection, v.address, to, tokenID); err != nil {
		return err
	}
	v.emit(EventTypeWithdraw, map[string]string{
		"asset":   collection.Hex(),
		"to":      to.Hex(),
		"tokenId": strconv.FormatUint(tokenID, 10),
	})
	return nil
}

// PayNative sends native currency from the vault without the owner check.
// Engines use it to pay out rewards.
func (v *Vault) PayNative(to common.Address, amount *big.Int) error {
	balance, err := v.assets.NativeBalance(v.address)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientNative, balance, amount)
	}
	if err := v.assets.TransferNative(v.address, to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// Send pays out of the vault on the ledger selected by kind.
func (v *Vault) Send(kind nativecommon.RewardType, asset, to common.Address, amount *big.Int, tokenID uint64) error {
	switch kind {
	case nativecommon.RewardToken:
		return v.assets.TransferFungible(asset, v.address, to, amount)
	case nativecommon.RewardNFT:
		return v.assets.TransferNonFungible(asset, v.address, to, tokenID)
	case nativecommon.RewardNative:
		return v.PayNative(to, amount)
	default:
		return fmt.Errorf("%w: %d", nativecommon.ErrUnknownRewardType, kind)
	}
}

func (v *Vault) emit(kind string, attrs map[string]string) {
	attrs["module"] = v.module
	attrs["vault"] = v.address.Hex()
	v.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}
