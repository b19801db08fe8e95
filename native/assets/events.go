package assets

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
)

const (
	// EventTypeNativeTransfer is emitted for native currency movements.
	EventTypeNativeTransfer = "assets.native.transfer"
	// EventTypeTokenTransfer is emitted for fungible token movements, including mints.
	EventTypeTokenTransfer = "assets.token.transfer"
	// EventTypeTokenApproval is emitted when an allowance changes.
	EventTypeTokenApproval = "assets.token.approval"
	// EventTypeTokenRegistered is emitted when a fungible token is registered.
	EventTypeTokenRegistered = "assets.token.registered"
)

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || evt == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(events.Wrap(evt))
}

// NativeTransferEvent describes a native currency movement.
func NativeTransferEvent(from, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeNativeTransfer,
		Attributes: map[string]string{
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.String(),
		},
	}
}

// TokenTransferEvent describes a fungible token movement.
func TokenTransferEvent(token, from, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenTransfer,
		Attributes: map[string]string{
			"token":  token.Hex(),
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.String(),
		},
	}
}

// TokenApprovalEvent describes an allowance update.
func TokenApprovalEvent(token, owner, spender common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenApproval,
		Attributes: map[string]string{
			"token":   token.Hex(),
			"owner":   owner.Hex(),
			"spender": spender.Hex(),
			"amount":  amount.String(),
		},
	}
}

// TokenRegisteredEvent announces a new fungible token.
func TokenRegisteredEvent(token *Token) *types.Event {
	return &types.Event{
		Type: EventTypeTokenRegistered,
		Attributes: map[string]string{
			"token":    token.Address.Hex(),
			"symbol":   token.Symbol,
			"decimals": strconv.FormatUint(uint64(token.Decimals), 10),
		},
	}
}
