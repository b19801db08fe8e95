package popa

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
)

const (
	EventTypeDeployed                    = "popa.deployed"
	EventTypeClaimed                     = "popa.claimed"
	EventTypeMinted                      = "popa.minted"
	EventTypeMinterUpdated               = "popa.minter.updated"
	EventTypeClaimPaymentUpdated         = "popa.claim_payment.updated"
	EventTypeAllocationPercentageUpdated = "popa.allocation_percentage.updated"
	EventTypeCompetitionFactoryUpdated   = "popa.competition_factory.updated"
)

func (g *Gate) emit(kind string, attrs map[string]string) {
	if g.emitter == nil {
		return
	}
	g.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}

func claimAttributes(account common.Address, periodID uint64, collection common.Address) map[string]string {
	return map[string]string{
		"account":    account.Hex(),
		"periodId":   strconv.FormatUint(periodID, 10),
		"collection": collection.Hex(),
	}
}
