package rpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/popa"
)

type popaParams struct {
	PeriodID   uint64  `json:"periodId"`
	Name       string  `json:"name,omitempty"`
	Symbol     string  `json:"symbol,omitempty"`
	BaseURI    string  `json:"baseUri,omitempty"`
	Account    string  `json:"account,omitempty"`
	Payment    string  `json:"payment,omitempty"`
	TokenID    uint64  `json:"tokenId,omitempty"`
	Index      uint64  `json:"index,omitempty"`
	Amount     string  `json:"amount,omitempty"`
	Percentage *uint64 `json:"percentage,omitempty"`
}

type popaStatusResult struct {
	PeriodID   uint64 `json:"periodId"`
	Collection string `json:"collection"`
	Claimable  bool   `json:"claimable"`
	Claimed    bool   `json:"claimed"`
	Minted     bool   `json:"minted"`
}

func (s *Server) registerPopaMethods() {
	s.register("popa_config", "popa", false, s.handlePopaConfig)
	s.register("popa_contract", "popa", false, s.handlePopaContract)
	s.register("popa_status", "popa", false, s.handlePopaStatus)

	s.register("popa_deploy", "popa", true, s.handlePopaDeploy)
	s.register("popa_setBaseURI", "popa", true, s.handlePopaSetBaseURI)
	s.register("popa_setMinter", "popa", true, s.handleSetPopaMinter)
	s.register("popa_setCompetitionFactory", "popa", true, s.handleSetPopaFactory)
	s.register("popa_setClaimPayment", "popa", true, s.handleSetClaimPayment)
	s.register("popa_setAllocationPercentage", "popa", true, s.handleSetAllocationPercentage)
	s.register("popa_claim", "popa", true, s.handlePopaClaim)
	s.register("popa_mintClaimed", "popa", true, s.handleMintClaimedPopa)
}

func (s *Server) handlePopaConfig(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	return view(s, s.node.Popa().Config)
}

// handlePopaContract resolves a deployment by period, or by index when the
// period is zero.
func (s *Server) handlePopaContract(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	if params.PeriodID == 0 {
		return view(s, func() (*popa.Deployment, error) { return s.node.Popa().PopaContractWithIndex(params.Index) })
	}
	addr, err := view(s, func() (common.Address, error) { return s.node.Popa().PopaContract(params.PeriodID) })
	if err != nil {
		return nil, err
	}
	return map[string]string{"collection": addr.Hex()}, nil
}

func (s *Server) handlePopaStatus(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	return view(s, func() (popaStatusResult, error) {
		gate := s.node.Popa()
		out := popaStatusResult{PeriodID: params.PeriodID}
		collection, err := gate.PopaContract(params.PeriodID)
		if err != nil {
			return out, err
		}
		out.Collection = collection.Hex()
		if out.Claimed, err = gate.PopaClaimed(account, params.PeriodID); err != nil {
			return out, err
		}
		if out.Minted, err = gate.PopaMinted(account, params.PeriodID); err != nil {
			return out, err
		}
		out.Claimable, err = gate.ClaimableCheck(account, params.PeriodID)
		return out, err
	})
}

func (s *Server) handlePopaDeploy(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	var collection common.Address
	err = s.mutate(ctx, caller, func() error {
		var err error
		collection, err = s.node.Popa().Deploy(caller, params.Name, params.Symbol, params.PeriodID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"collection": collection.Hex()}, nil
}

func (s *Server) handlePopaSetBaseURI(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Popa().SetPopaBaseURI(caller, params.PeriodID, params.BaseURI)
	}); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSetPopaMinter(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	minter, err := parseAddress("minter", params.Account)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error { return s.node.Popa().SetPopaMinter(caller, minter) }); err != nil {
		return nil, err
	}
	return view(s, s.node.Popa().Config)
}

func (s *Server) handleSetPopaFactory(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	factory, err := parseAddress("factory", params.Account)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error { return s.node.Popa().SetCompetitionFactory(caller, factory) }); err != nil {
		return nil, err
	}
	return view(s, s.node.Popa().Config)
}

func (s *Server) handleSetClaimPayment(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	amount, err := parseQuantity(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error { return s.node.Popa().SetClaimPaymentAmount(caller, amount) }); err != nil {
		return nil, err
	}
	return view(s, s.node.Popa().Config)
}

func (s *Server) handleSetAllocationPercentage(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	if params.Percentage == nil {
		return nil, invalidParams("percentage is required")
	}
	pct := *params.Percentage
	if err := s.mutate(ctx, caller, func() error { return s.node.Popa().SetAllocationPercentage(caller, pct) }); err != nil {
		return nil, err
	}
	return view(s, s.node.Popa().Config)
}

func (s *Server) handlePopaClaim(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	payment, err := parseQuantity(params.Payment)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error { return s.node.Popa().Claim(caller, params.PeriodID, payment) }); err != nil {
		return nil, err
	}
	return map[string]interface{}{"periodId": params.PeriodID, "claimed": true}, nil
}

func (s *Server) handleMintClaimedPopa(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[popaParams](raw)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Popa().MintClaimedPopa(caller, account, params.PeriodID, params.TokenID)
	}); err != nil {
		return nil, err
	}
	return map[string]interface{}{"account": account.Hex(), "tokenId": params.TokenID}, nil
}
