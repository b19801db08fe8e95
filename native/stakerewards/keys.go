package stakerewards

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	configKey      = []byte("stakerewards/config")
	boosterListKey = []byte("stakerewards/boosters")
)

func rewardKey(id uint64) []byte {
	return []byte(fmt.Sprintf("stakerewards/reward/%d", id))
}

func sliceKey(account common.Address, rewardID, index uint64) []byte {
	return []byte(fmt.Sprintf("stakerewards/slice/%x/%d/%d", account.Bytes(), rewardID, index))
}
