package assets_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"zizyhub/core/state"
	"zizyhub/native/assets"
	"zizyhub/native/nft"
	"zizyhub/storage"
)

var (
	token = common.HexToAddress("0x0000000000000000000000000000000000000e20")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	vault = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func newLedger(t *testing.T) (*assets.Ledger, *nft.Registry, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	registry := nft.NewRegistry(mgr)
	require.NoError(t, registry.Initialize(alice))
	ledger := assets.NewLedger(mgr, registry)
	require.NoError(t, ledger.RegisterToken(token, " zzy ", 18))
	return ledger, registry, mgr
}

func TestNativeTransfer(t *testing.T) {
	ledger, _, _ := newLedger(t)
	require.NoError(t, ledger.CreditNative(alice, big.NewInt(100)))
	require.NoError(t, ledger.TransferNative(alice, bob, big.NewInt(40)))

	bal, err := ledger.NativeBalance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(60), bal.Int64())
	bal, _ = ledger.NativeBalance(bob)
	require.Equal(t, int64(40), bal.Int64())

	err = ledger.TransferNative(alice, bob, big.NewInt(61))
	require.ErrorIs(t, err, assets.ErrInsufficientBalance)
	require.ErrorIs(t, ledger.TransferNative(alice, bob, big.NewInt(0)), assets.ErrInvalidAmount)
	require.ErrorIs(t, ledger.TransferNative(alice, common.Address{}, big.NewInt(1)), assets.ErrZeroAddress)
}

func TestRefusingVaultOnlyAcceptsDeposits(t *testing.T) {
	ledger, _, _ := newLedger(t)
	require.NoError(t, ledger.CreditNative(alice, big.NewInt(100)))
	ledger.RefuseNative(vault, true)

	require.ErrorIs(t, ledger.TransferNative(alice, vault, big.NewInt(10)), assets.ErrTransferRejected)
	require.NoError(t, ledger.Deposit(alice, vault, big.NewInt(10)))
	bal, _ := ledger.NativeBalance(vault)
	require.Equal(t, int64(10), bal.Int64())

	ledger.RefuseNative(vault, false)
	require.NoError(t, ledger.TransferNative(alice, vault, big.NewInt(10)))
}

func TestReceiveHookFailureRevertsBalances(t *testing.T) {
	ledger, _, _ := newLedger(t)
	require.NoError(t, ledger.CreditNative(alice, big.NewInt(100)))

	var seen *big.Int
	ledger.SetReceiveHook(bob, func(from common.Address, amount *big.Int) error {
		seen = amount
		return errors.New("no thanks")
	})
	err := ledger.TransferNative(alice, bob, big.NewInt(30))
	require.ErrorIs(t, err, assets.ErrTransferRejected)
	require.Equal(t, int64(30), seen.Int64())

	bal, _ := ledger.NativeBalance(alice)
	require.Equal(t, int64(100), bal.Int64())
	bal, _ = ledger.NativeBalance(bob)
	require.Zero(t, bal.Sign())

	ledger.SetReceiveHook(bob, nil)
	require.NoError(t, ledger.TransferNative(alice, bob, big.NewInt(30)))
}

func TestFungibleAllowances(t *testing.T) {
	ledger, _, _ := newLedger(t)
	meta, err := ledger.Token(token)
	require.NoError(t, err)
	require.Equal(t, "ZZY", meta.Symbol)
	require.ErrorIs(t, ledger.RegisterToken(token, "ZZY", 18), assets.ErrTokenExists)

	require.NoError(t, ledger.MintToken(token, alice, big.NewInt(1000)))
	err = ledger.TransferFungibleFrom(token, bob, alice, bob, big.NewInt(10))
	require.ErrorIs(t, err, assets.ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve(token, alice, bob, big.NewInt(300)))
	require.NoError(t, ledger.TransferFungibleFrom(token, bob, alice, vault, big.NewInt(200)))

	allowance, err := ledger.Allowance(token, alice, bob)
	require.NoError(t, err)
	require.Equal(t, int64(100), allowance.Int64())
	bal, _ := ledger.FungibleBalance(token, vault)
	require.Equal(t, int64(200), bal.Int64())
	bal, _ = ledger.FungibleBalance(token, alice)
	require.Equal(t, int64(800), bal.Int64())

	unknown := common.HexToAddress("0x0000000000000000000000000000000000000e21")
	require.ErrorIs(t, ledger.TransferFungible(unknown, alice, bob, big.NewInt(1)), assets.ErrUnknownToken)
}

func TestNonFungiblePassthrough(t *testing.T) {
	ledger, registry, _ := newLedger(t)
	collection, err := registry.Deploy(alice, "Prize", "PRZ")
	require.NoError(t, err)
	require.NoError(t, registry.Mint(alice, collection, vault, 7))

	require.NoError(t, ledger.TransferNonFungible(collection, vault, bob, 7))
	holder, err := ledger.OwnerOf(collection, 7)
	require.NoError(t, err)
	require.Equal(t, bob, holder)
	count, err := ledger.BalanceOf(collection, vault)
	require.NoError(t, err)
	require.Zero(t, count)

	require.ErrorIs(t, ledger.TransferNonFungible(collection, vault, bob, 7), nft.ErrNotTokenOwner)

	bare := assets.NewLedger(state.NewManager(storage.NewMemDB()), nil)
	require.ErrorIs(t, bare.TransferNonFungible(collection, vault, bob, 7), assets.ErrNFTNotConfigured)
}
