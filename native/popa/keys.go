package popa

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	configKey       = []byte("popa/config")
	deployedListKey = []byte("popa/deployed")
)

func periodCollectionKey(periodID uint64) []byte {
	return []byte(fmt.Sprintf("popa/period/%d", periodID))
}

func claimKey(account common.Address, periodID uint64) []byte {
	return []byte(fmt.Sprintf("popa/claim/%x/%d", account.Bytes(), periodID))
}
