package rpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/competition"
)

type periodParams struct {
	ID            uint64 `json:"id"`
	StartTime     uint64 `json:"startTime,omitempty"`
	EndTime       uint64 `json:"endTime,omitempty"`
	BuyStartTime  uint64 `json:"ticketBuyStartTime,omitempty"`
	BuyEndTime    uint64 `json:"ticketBuyEndTime,omitempty"`
	Update        bool   `json:"update,omitempty"`
	Index         uint64 `json:"index,omitempty"`
	Account       string `json:"account,omitempty"`
	IncludeCounts bool   `json:"includeCounts,omitempty"`
}

type competitionParams struct {
	PeriodID    uint64   `json:"periodId"`
	ID          uint64   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Symbol      string   `json:"symbol,omitempty"`
	Token       string   `json:"token,omitempty"`
	Price       string   `json:"price,omitempty"`
	SnapshotMin uint64   `json:"snapshotMin,omitempty"`
	SnapshotMax uint64   `json:"snapshotMax,omitempty"`
	Mins        []string `json:"mins,omitempty"`
	Maxs        []string `json:"maxs,omitempty"`
	Allocations []uint64 `json:"allocations,omitempty"`
	Account     string   `json:"account,omitempty"`
	Count       uint64   `json:"count,omitempty"`
	To          string   `json:"to,omitempty"`
	TicketIDs   []uint64 `json:"ticketIds,omitempty"`
	BaseURI     string   `json:"baseUri,omitempty"`
	Paused      bool     `json:"paused,omitempty"`
}

type participationResult struct {
	Bought uint64 `json:"bought"`
	Limit  uint64 `json:"limit"`
}

func (s *Server) registerCompetitionMethods() {
	s.register("competition_config", "competition", false, s.handleCompetitionConfig)
	s.register("competition_period", "competition", false, s.handlePeriod)
	s.register("competition_periodCount", "competition", false, s.handlePeriodCount)
	s.register("competition_get", "competition", false, s.handleCompetition)
	s.register("competition_idWithIndex", "competition", false, s.handleCompetitionIDWithIndex)
	s.register("competition_purchase", "competition", false, s.handlePurchase)
	s.register("competition_allocation", "competition", false, s.handleAllocation)
	s.register("competition_participation", "competition", false, s.handleParticipation)
	s.register("competition_canTicketBuy", "competition", false, s.handleCanTicketBuy)

	s.register("competition_createPeriod", "competition", true, s.handleCreatePeriod)
	s.register("competition_setActivePeriod", "competition", true, s.handleSetActivePeriod)
	s.register("competition_create", "competition", true, s.handleCreateCompetition)
	s.register("competition_setPayment", "competition", true, s.handleSetCompetitionPayment)
	s.register("competition_setSnapshotRange", "competition", true, s.handleSetCompetitionSnapshotRange)
	s.register("competition_setTiers", "competition", true, s.handleSetCompetitionTiers)
	s.register("competition_buyTicket", "competition", true, s.handleBuyTicket)
	s.register("competition_mintTickets", "competition", true, s.handleMintTickets)
	s.register("competition_setTransferPaused", "competition", true, s.handleSetTransferPaused)
	s.register("competition_setBaseURI", "competition", true, s.handleSetCompetitionBaseURI)
	s.register("competition_setPaymentReceiver", "competition", true, s.handleSetPaymentReceiver)
	s.register("competition_setTicketMinter", "competition", true, s.handleSetTicketMinter)
}

func (s *Server) handleCompetitionConfig(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	return view(s, s.node.Competition().Config)
}

func (s *Server) handlePeriod(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[periodParams](raw)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*competition.PeriodView, error) { return s.node.Competition().Period(params.ID) })
}

func (s *Server) handlePeriodCount(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	type counts struct {
		Periods      uint64 `json:"periods"`
		Competitions uint64 `json:"competitions"`
		ActivePeriod uint64 `json:"activePeriod"`
	}
	return view(s, func() (counts, error) {
		var out counts
		var err error
		reg := s.node.Competition()
		if out.Periods, err = reg.PeriodCount(); err != nil {
			return out, err
		}
		if out.Competitions, err = reg.CompetitionCount(); err != nil {
			return out, err
		}
		out.ActivePeriod, err = reg.ActivePeriodID()
		return out, err
	})
}

func (s *Server) handleCompetition(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*competition.Competition, error) {
		return s.node.Competition().Competition(params.PeriodID, params.ID)
	})
}

func (s *Server) handleCompetitionIDWithIndex(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[periodParams](raw)
	if err != nil {
		return nil, err
	}
	id, err := view(s, func() (uint64, error) {
		return s.node.Competition().CompetitionIDWithIndex(params.ID, params.Index)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"competitionId": id}, nil
}

func (s *Server) handlePurchase(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*competition.Purchase, error) {
		return s.node.Competition().Purchase(account, params.PeriodID, params.ID)
	})
}

func (s *Server) handleAllocation(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*competition.Allocation, error) {
		return s.node.Competition().Allocation(account, params.PeriodID, params.ID)
	})
}

func (s *Server) handleParticipation(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[periodParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	return view(s, func() (participationResult, error) {
		bought, limit, err := s.node.Competition().Participation(account, params.ID)
		return participationResult{Bought: bought, Limit: limit}, err
	})
}

func (s *Server) handleCanTicketBuy(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	ok, err := view(s, func() (bool, error) { return s.node.Competition().CanTicketBuy(params.PeriodID, params.ID) })
	if err != nil {
		return nil, err
	}
	return map[string]bool{"canBuy": ok}, nil
}

// handleCreatePeriod creates a period, or rewrites its times when update is set.
func (s *Server) handleCreatePeriod(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[periodParams](raw)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, caller, func() error {
		reg := s.node.Competition()
		if params.Update {
			return reg.UpdatePeriod(caller, params.ID, params.StartTime, params.EndTime, params.BuyStartTime, params.BuyEndTime)
		}
		return reg.CreatePeriod(caller, params.ID, params.StartTime, params.EndTime, params.BuyStartTime, params.BuyEndTime)
	})
	if err != nil {
		return nil, err
	}
	return view(s, func() (*competition.PeriodView, error) { return s.node.Competition().Period(params.ID) })
}

func (s *Server) handleSetActivePeriod(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[periodParams](raw)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Competition().SetActivePeriod(caller, params.ID)
	}); err != nil {
		return nil, err
	}
	return map[string]uint64{"activePeriod": params.ID}, nil
}

func (s *Server) handleCreateCompetition(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	var ticket common.Address
	err = s.mutate(ctx, caller, func() error {
		var err error
		ticket, err = s.node.Competition().CreateCompetition(caller, params.PeriodID, params.ID, params.Name, params.Symbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"ticket": ticket.Hex()}, nil
}

func (s *Server) handleSetCompetitionPayment(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	price, err := parseQuantity(params.Price)
	if err != nil {
		return nil, err
	}
	return s.competitionMutation(ctx, caller, params, func() error {
		return s.node.Competition().SetCompetitionPayment(caller, params.PeriodID, params.ID, token, price)
	})
}

func (s *Server) handleSetCompetitionSnapshotRange(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	return s.competitionMutation(ctx, caller, params, func() error {
		return s.node.Competition().SetCompetitionSnapshotRange(caller, params.PeriodID, params.ID, params.SnapshotMin, params.SnapshotMax)
	})
}

func (s *Server) handleSetCompetitionTiers(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	mins, err := parseQuantities(params.Mins)
	if err != nil {
		return nil, err
	}
	maxs, err := parseQuantities(params.Maxs)
	if err != nil {
		return nil, err
	}
	return s.competitionMutation(ctx, caller, params, func() error {
		return s.node.Competition().SetCompetitionTiers(caller, params.PeriodID, params.ID, mins, maxs, params.Allocations)
	})
}

func (s *Server) handleBuyTicket(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Competition().BuyTicket(caller, params.PeriodID, params.ID, params.Count)
	}); err != nil {
		return nil, err
	}
	return view(s, func() (*competition.Purchase, error) {
		return s.node.Competition().Purchase(caller, params.PeriodID, params.ID)
	})
}

func (s *Server) handleMintTickets(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("recipient", params.To)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		reg := s.node.Competition()
		if len(params.TicketIDs) == 1 {
			return reg.MintTicket(caller, params.PeriodID, params.ID, to, params.TicketIDs[0])
		}
		return reg.MintBatchTicket(caller, params.PeriodID, params.ID, to, params.TicketIDs)
	}); err != nil {
		return nil, err
	}
	supply, err := view(s, func() (uint64, error) {
		return s.node.Competition().TotalSupplyOfCompetition(params.PeriodID, params.ID)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"totalSupply": supply}, nil
}

func (s *Server) handleSetTransferPaused(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	return s.competitionMutation(ctx, caller, params, func() error {
		if params.Paused {
			return s.node.Competition().PauseCompetitionTransfer(caller, params.PeriodID, params.ID)
		}
		return s.node.Competition().UnpauseCompetitionTransfer(caller, params.PeriodID, params.ID)
	})
}

func (s *Server) handleSetCompetitionBaseURI(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[competitionParams](raw)
	if err != nil {
		return nil, err
	}
	return s.competitionMutation(ctx, caller, params, func() error {
		return s.node.Competition().SetCompetitionBaseURI(caller, params.PeriodID, params.ID, params.BaseURI)
	})
}

// competitionMutation commits fn and returns the updated competition.
func (s *Server) competitionMutation(ctx context.Context, caller common.Address, params competitionParams, fn func() error) (interface{}, error) {
	if err := s.mutate(ctx, caller, fn); err != nil {
		return nil, err
	}
	return view(s, func() (*competition.Competition, error) {
		return s.node.Competition().Competition(params.PeriodID, params.ID)
	})
}

func (s *Server) handleSetPaymentReceiver(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
		return s.node.Competition().SetPaymentReceiver(caller, addr)
	})
}

func (s *Server) handleSetTicketMinter(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	return s.adminAddress(ctx, caller, raw, func(addr common.Address) error {
		return s.node.Competition().SetTicketMinter(caller, addr)
	})
}
