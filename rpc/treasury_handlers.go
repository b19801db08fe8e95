package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/treasury"
)

type treasuryParams struct {
	Kind       string `json:"kind"`
	To         string `json:"to,omitempty"`
	Token      string `json:"token,omitempty"`
	Collection string `json:"collection,omitempty"`
	Amount     string `json:"amount,omitempty"`
	TokenID    uint64 `json:"tokenId,omitempty"`
}

// registerTreasuryMethods exposes deposit and withdraw for a module vault as
// <prefix>_deposit and <prefix>_withdraw.
func (s *Server) registerTreasuryMethods(prefix, module string, vault func() *treasury.Vault) {
	s.register(prefix+"_deposit", module, true, func(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
		params, err := decodeParams[treasuryParams](raw)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(params.Amount)
		if err != nil {
			return nil, err
		}
		if err := s.mutate(ctx, caller, func() error { return vault().Deposit(caller, amount) }); err != nil {
			return nil, err
		}
		return map[string]string{"vault": vault().Address().Hex(), "deposited": amount.String()}, nil
	})
	s.register(prefix+"_withdraw", module, true, func(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
		params, err := decodeParams[treasuryParams](raw)
		if err != nil {
			return nil, err
		}
		to, err := parseOptionalAddress("recipient", params.To)
		if err != nil {
			return nil, err
		}
		if to == (common.Address{}) {
			to = caller
		}
		var apply func() error
		switch strings.ToLower(strings.TrimSpace(params.Kind)) {
		case "native", "":
			amount, err := parseAmount(params.Amount)
			if err != nil {
				return nil, err
			}
			apply = func() error { return vault().WithdrawTo(caller, to, amount) }
		case "token":
			token, err := parseAddress("token", params.Token)
			if err != nil {
				return nil, err
			}
			amount, err := parseAmount(params.Amount)
			if err != nil {
				return nil, err
			}
			apply = func() error { return vault().WithdrawTokenTo(caller, to, token, amount) }
		case "nft":
			collection, err := parseAddress("collection", params.Collection)
			if err != nil {
				return nil, err
			}
			apply = func() error { return vault().WithdrawNFTTo(caller, to, collection, params.TokenID) }
		default:
			return nil, invalidParams("kind must be native, token or nft")
		}
		if err := s.mutate(ctx, caller, apply); err != nil {
			return nil, err
		}
		return map[string]string{"vault": vault().Address().Hex(), "to": to.Hex()}, nil
	})
}
