package competition

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
)

const (
	EventTypePeriodCreated          = "competition.period.created"
	EventTypePeriodUpdated          = "competition.period.updated"
	EventTypePeriodActivated        = "competition.period.activated"
	EventTypeCompetitionCreated     = "competition.created"
	EventTypePaymentUpdated         = "competition.payment.updated"
	EventTypeSnapshotRangeUpdated   = "competition.snapshot_range.updated"
	EventTypeTiersUpdated           = "competition.tiers.updated"
	EventTypeTicketBought           = "competition.ticket.bought"
	EventTypeTicketMinted           = "competition.ticket.minted"
	EventTypePaymentReceiverUpdated = "competition.payment_receiver.updated"
	EventTypeTicketMinterUpdated    = "competition.ticket_minter.updated"
)

func (r *Registry) emit(kind string, attrs map[string]string) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}

func periodEvent(kind string, p *Period) (string, map[string]string) {
	return kind, map[string]string{
		"periodId":           strconv.FormatUint(p.ID, 10),
		"startTime":          strconv.FormatUint(p.StartTime, 10),
		"endTime":            strconv.FormatUint(p.EndTime, 10),
		"ticketBuyStartTime": strconv.FormatUint(p.TicketBuyStartTime, 10),
		"ticketBuyEndTime":   strconv.FormatUint(p.TicketBuyEndTime, 10),
	}
}

func competitionEvent(kind string, c *Competition, extra map[string]string) (string, map[string]string) {
	attrs := map[string]string{
		"periodId":      strconv.FormatUint(c.PeriodID, 10),
		"competitionId": strconv.FormatUint(c.ID, 10),
		"ticket":        c.Ticket.Hex(),
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return kind, attrs
}

func ticketEvent(kind string, c *Competition, account common.Address, count uint64) (string, map[string]string) {
	return competitionEvent(kind, c, map[string]string{
		"account": account.Hex(),
		"count":   strconv.FormatUint(count, 10),
	})
}
