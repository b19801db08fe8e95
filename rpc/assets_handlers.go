package rpc

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/native/assets"
	"zizyhub/native/nft"
)

type accountParams struct {
	Address string `json:"address"`
}

type tokenQueryParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner,omitempty"`
	Spender string `json:"spender,omitempty"`
}

type transferParams struct {
	Token  string `json:"token,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveParams struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type collectionParams struct {
	Collection string `json:"collection"`
	Owner      string `json:"owner,omitempty"`
	TokenID    uint64 `json:"tokenId,omitempty"`
	Index      uint64 `json:"index,omitempty"`
}

type nftTransferParams struct {
	Collection string `json:"collection"`
	From       string `json:"from"`
	To         string `json:"to"`
	TokenID    uint64 `json:"tokenId"`
}

type balanceResult struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
	Balance string `json:"balance"`
}

func (s *Server) registerAssetMethods() {
	s.register("assets_nativeBalance", "assets", false, s.handleNativeBalance)
	s.register("assets_tokenBalance", "assets", false, s.handleTokenBalance)
	s.register("assets_allowance", "assets", false, s.handleAllowance)
	s.register("assets_token", "assets", false, s.handleToken)
	s.register("assets_transferNative", "assets", true, s.handleTransferNative)
	s.register("assets_transferToken", "assets", true, s.handleTransferToken)
	s.register("assets_approve", "assets", true, s.handleApprove)

	s.register("nft_collection", "nft", false, s.handleCollection)
	s.register("nft_ownerOf", "nft", false, s.handleOwnerOf)
	s.register("nft_balanceOf", "nft", false, s.handleNFTBalanceOf)
	s.register("nft_tokenOfOwnerByIndex", "nft", false, s.handleTokenOfOwnerByIndex)
	s.register("nft_tokenURI", "nft", false, s.handleTokenURI)
	s.register("nft_transfer", "nft", true, s.handleNFTTransfer)
}

func (s *Server) handleNativeBalance(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[accountParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("account", params.Address)
	if err != nil {
		return nil, err
	}
	bal, err := view(s, func() (*big.Int, error) { return s.node.Ledger().NativeBalance(addr) })
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: addr.Hex(), Balance: formatAmount(bal)}, nil
}

func (s *Server) handleTokenBalance(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[tokenQueryParams](raw)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	bal, err := view(s, func() (*big.Int, error) { return s.node.Ledger().FungibleBalance(token, owner) })
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: owner.Hex(), Token: token.Hex(), Balance: formatAmount(bal)}, nil
}

func (s *Server) handleAllowance(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[tokenQueryParams](raw)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", params.Spender)
	if err != nil {
		return nil, err
	}
	allowance, err := view(s, func() (*big.Int, error) { return s.node.Ledger().Allowance(token, owner, spender) })
	if err != nil {
		return nil, err
	}
	return map[string]string{"allowance": formatAmount(allowance)}, nil
}

func (s *Server) handleToken(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[tokenQueryParams](raw)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*assets.Token, error) { return s.node.Ledger().Token(token) })
}

func (s *Server) handleTransferNative(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[transferParams](raw)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("recipient", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Ledger().TransferNative(caller, to, amount)
	}); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// handleTransferToken moves caller's tokens, or spends an allowance when a
// distinct from address is given.
func (s *Server) handleTransferToken(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[transferParams](raw)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	from, err := parseOptionalAddress("sender", params.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("recipient", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, caller, func() error {
		if from == (common.Address{}) || from == caller {
			return s.node.Ledger().TransferFungible(token, caller, to, amount)
		}
		return s.node.Ledger().TransferFungibleFrom(token, caller, from, to, amount)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleApprove(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[approveParams](raw)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", params.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := parseQuantity(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.Ledger().Approve(token, caller, spender, amount)
	}); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleCollection(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[collectionParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("collection", params.Collection)
	if err != nil {
		return nil, err
	}
	return view(s, func() (*nft.Collection, error) { return s.node.NFTs().Collection(addr) })
}

func (s *Server) handleOwnerOf(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[collectionParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("collection", params.Collection)
	if err != nil {
		return nil, err
	}
	owner, err := view(s, func() (common.Address, error) { return s.node.NFTs().OwnerOf(addr, params.TokenID) })
	if err != nil {
		return nil, err
	}
	return map[string]string{"owner": owner.Hex()}, nil
}

func (s *Server) handleNFTBalanceOf(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[collectionParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("collection", params.Collection)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	count, err := view(s, func() (uint64, error) { return s.node.NFTs().BalanceOf(addr, owner) })
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"balance": count}, nil
}

func (s *Server) handleTokenOfOwnerByIndex(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[collectionParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("collection", params.Collection)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	id, err := view(s, func() (uint64, error) {
		return s.node.NFTs().TokenOfOwnerByIndex(addr, owner, params.Index)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"tokenId": id}, nil
}

func (s *Server) handleTokenURI(_ context.Context, _ common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[collectionParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("collection", params.Collection)
	if err != nil {
		return nil, err
	}
	uri, err := view(s, func() (string, error) { return s.node.NFTs().TokenURI(addr, params.TokenID) })
	if err != nil {
		return nil, err
	}
	return map[string]string{"uri": uri}, nil
}

func (s *Server) handleNFTTransfer(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[nftTransferParams](raw)
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress("collection", params.Collection)
	if err != nil {
		return nil, err
	}
	from, err := parseAddress("sender", params.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("recipient", params.To)
	if err != nil {
		return nil, err
	}
	if err := s.mutate(ctx, caller, func() error {
		return s.node.NFTs().Transfer(caller, addr, from, to, params.TokenID)
	}); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
