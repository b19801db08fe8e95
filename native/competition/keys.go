package competition

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	configKey     = []byte("competition/config")
	periodListKey = []byte("competition/periods")
)

func periodKey(id uint64) []byte {
	return []byte(fmt.Sprintf("competition/period/%d", id))
}

func competitionKey(periodID, id uint64) []byte {
	return []byte(fmt.Sprintf("competition/entry/%d/%d", periodID, id))
}

func purchaseKey(periodID, id uint64, account common.Address) []byte {
	return []byte(fmt.Sprintf("competition/purchase/%d/%d/%x", periodID, id, account.Bytes()))
}
