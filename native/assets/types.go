package assets

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes a registered fungible asset.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// ReceiveHook runs when an account receives native currency. Returning an
// error rejects the transfer.
type ReceiveHook func(from common.Address, amount *big.Int) error
