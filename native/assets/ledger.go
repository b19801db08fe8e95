package assets

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
	"zizyhub/observability/metrics"
)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// NFTLedger is the non-fungible surface the adapter delegates to.
type NFTLedger interface {
	Transfer(caller, collection, from, to common.Address, tokenID uint64) error
	OwnerOf(collection common.Address, tokenID uint64) (common.Address, error)
	BalanceOf(collection, owner common.Address) (uint64, error)
}

// Ledger is the asset adapter every engine moves value through: native
// currency, registered fungible tokens with allowances, and non-fungible
// tokens held in the collection registry.
type Ledger struct {
	st       ledgerState
	nft      NFTLedger
	emitter  events.Emitter
	metrics  *metrics.LedgerMetrics
	refusing map[common.Address]bool
	hooks    map[common.Address]ReceiveHook
}

// NewLedger builds an adapter over the provided state.
func NewLedger(st ledgerState, nft NFTLedger) *Ledger {
	return &Ledger{
		st:       st,
		nft:      nft,
		emitter:  events.NoopEmitter{},
		metrics:  metrics.Ledger(),
		refusing: make(map[common.Address]bool),
		hooks:    make(map[common.Address]ReceiveHook),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// RefuseNative marks addr as an account that rejects plain native transfers.
// Module vaults use this so that value only enters them through deposits.
func (l *Ledger) RefuseNative(addr common.Address, refuse bool) {
	if refuse {
		l.refusing[addr] = true
		return
	}
	delete(l.refusing, addr)
}

// SetReceiveHook installs callee code that runs when addr receives native currency.
func (l *Ledger) SetReceiveHook(addr common.Address, hook ReceiveHook) {
	if hook == nil {
		delete(l.hooks, addr)
		return
	}
	l.hooks[addr] = hook
}

func (l *Ledger) balance(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := l.st.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (l *Ledger) move(fromKey, toKey []byte, amount *big.Int) error {
	fromBal, err := l.balance(fromKey)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amount)
	}
	if err := l.st.KVPut(fromKey, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := l.balance(toKey)
	if err != nil {
		return err
	}
	sum, err := nativecommon.Add(toBal, amount)
	if err != nil {
		return err
	}
	return l.st.KVPut(toKey, sum)
}

// NativeBalance returns the native balance of addr.
func (l *Ledger) NativeBalance(addr common.Address) (*big.Int, error) {
	if l == nil || l.st == nil {
		return nil, ErrNilState
	}
	return l.balance(nativeBalanceKey(addr))
}

// CreditNative mints native currency into addr. Used by genesis and tests.
func (l *Ledger) CreditNative(addr common.Address, amount *big.Int) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	bal, err := l.balance(nativeBalanceKey(addr))
	if err != nil {
		return err
	}
	sum, err := nativecommon.Add(bal, amount)
	if err != nil {
		return err
	}
	return l.st.KVPut(nativeBalanceKey(addr), sum)
}

// Deposit moves native currency into a vault, bypassing the vault's refusal
// of plain transfers.
func (l *Ledger) Deposit(from, vault common.Address, amount *big.Int) error {
	return l.transferNative(from, vault, amount, true)
}

// TransferNative moves native currency. Recipients that refuse native
// transfers or whose receive hook fails abort the transfer.
func (l *Ledger) TransferNative(from, to common.Address, amount *big.Int) error {
	return l.transferNative(from, to, amount, false)
}

func (l *Ledger) transferNative(from, to common.Address, amount *big.Int, deposit bool) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroAddress
	}
	if !deposit && l.refusing[to] {
		return ErrTransferRejected
	}
	err := nativecommon.Atomic(l.st, func() error {
		if err := l.move(nativeBalanceKey(from), nativeBalanceKey(to), amount); err != nil {
			return err
		}
		if hook := l.hooks[to]; hook != nil {
			if err := hook(from, new(big.Int).Set(amount)); err != nil {
				return fmt.Errorf("%w: %w", ErrTransferRejected, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.metrics.RecordTransfer("native")
	l.emit(NativeTransferEvent(from, to, amount))
	return nil
}

// RegisterToken adds a fungible token to the ledger.
func (l *Ledger) RegisterToken(token common.Address, symbol string, decimals uint8) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	if nativecommon.IsZeroAddress(token) {
		return ErrZeroAddress
	}
	exists, err := l.st.KVGet(tokenKey(token), nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrTokenExists
	}
	record := &Token{Address: token, Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Decimals: decimals}
	if err := l.st.KVPut(tokenKey(token), record); err != nil {
		return err
	}
	l.emit(TokenRegisteredEvent(record))
	return nil
}

// Token returns the registered token metadata.
func (l *Ledger) Token(token common.Address) (*Token, error) {
	record := new(Token)
	ok, err := l.st.KVGet(tokenKey(token), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return record, nil
}

// MintToken credits amount of token to addr. Used by genesis and tests.
func (l *Ledger) MintToken(token, to common.Address, amount *big.Int) error {
	if _, err := l.Token(token); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	bal, err := l.balance(tokenBalanceKey(token, to))
	if err != nil {
		return err
	}
	sum, err := nativecommon.Add(bal, amount)
	if err != nil {
		return err
	}
	if err := l.st.KVPut(tokenBalanceKey(token, to), sum); err != nil {
		return err
	}
	l.emit(TokenTransferEvent(token, common.Address{}, to, amount))
	return nil
}

// FungibleBalance returns owner's balance of token.
func (l *Ledger) FungibleBalance(token, owner common.Address) (*big.Int, error) {
	if l == nil || l.st == nil {
		return nil, ErrNilState
	}
	return l.balance(tokenBalanceKey(token, owner))
}

// Allowance returns how much spender may pull from owner.
func (l *Ledger) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	return l.balance(allowanceKey(token, owner, spender))
}

// Approve sets spender's allowance over owner's tokens.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	if _, err := l.Token(token); err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(spender) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, err := nativecommon.ToUint256(amount); err != nil {
		return err
	}
	if err := l.st.KVPut(allowanceKey(token, owner, spender), new(big.Int).Set(amount)); err != nil {
		return err
	}
	l.emit(TokenApprovalEvent(token, owner, spender, amount))
	return nil
}

// TransferFungible moves tokens the sender holds itself.
func (l *Ledger) TransferFungible(token, from, to common.Address, amount *big.Int) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	if _, err := l.Token(token); err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroAddress
	}
	if err := l.move(tokenBalanceKey(token, from), tokenBalanceKey(token, to), amount); err != nil {
		return err
	}
	l.metrics.RecordTransfer("fungible")
	l.emit(TokenTransferEvent(token, from, to, amount))
	return nil
}

// TransferFungibleFrom moves tokens on behalf of from, consuming spender's allowance.
func (l *Ledger) TransferFungibleFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	allowance, err := l.balance(allowanceKey(token, from, spender))
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := l.TransferFungible(token, from, to, amount); err != nil {
		return err
	}
	return l.st.KVPut(allowanceKey(token, from, spender), new(big.Int).Sub(allowance, amount))
}

// TransferNonFungible moves a token held by from.
func (l *Ledger) TransferNonFungible(collection, from, to common.Address, tokenID uint64) error {
	if l == nil || l.nft == nil {
		return ErrNFTNotConfigured
	}
	if err := l.nft.Transfer(from, collection, from, to, tokenID); err != nil {
		return err
	}
	l.metrics.RecordTransfer("nft")
	return nil
}

// OwnerOf returns the holder of a non-fungible token.
func (l *Ledger) OwnerOf(collection common.Address, tokenID uint64) (common.Address, error) {
	if l == nil || l.nft == nil {
		return common.Address{}, ErrNFTNotConfigured
	}
	return l.nft.OwnerOf(collection, tokenID)
}

// BalanceOf returns how many tokens of collection owner holds.
func (l *Ledger) BalanceOf(collection, owner common.Address) (uint64, error) {
	if l == nil || l.nft == nil {
		return 0, ErrNFTNotConfigured
	}
	return l.nft.BalanceOf(collection, owner)
}
