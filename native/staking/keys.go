package staking

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var configKey = []byte("staking/config")

func accountKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("staking/account/%x", addr.Bytes()))
}

func checkpointsKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("staking/checkpoints/%x", addr.Bytes()))
}

func periodRangeKey(periodID uint64) []byte {
	return []byte(fmt.Sprintf("staking/period/%d", periodID))
}

func periodAverageKey(addr common.Address, periodID uint64) []byte {
	return []byte(fmt.Sprintf("staking/average/%x/%d", addr.Bytes(), periodID))
}
