package rewardhub

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var configKey = []byte("rewardhub/config")

func competitionRewardKey(ticket common.Address, ticketID uint64) []byte {
	return []byte(fmt.Sprintf("rewardhub/competition/%x/%d", ticket.Bytes(), ticketID))
}

func airdropListKey(account common.Address, campaignID uint64) []byte {
	return []byte(fmt.Sprintf("rewardhub/airdrop/%x/%d", account.Bytes(), campaignID))
}
