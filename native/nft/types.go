package nft

import (
	"github.com/ethereum/go-ethereum/common"
)

// Collection is an enumerable non-fungible ledger. Ticket ledgers and
// per-period collectibles are both collections deployed through the registry.
type Collection struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Owner       common.Address `json:"owner"`
	Minter      common.Address `json:"minter"`
	BaseURI     string         `json:"baseUri"`
	Paused      bool           `json:"paused"`
	TotalSupply uint64         `json:"totalSupply"`
	CreatedAt   uint64         `json:"createdAt"`
}

// Clone returns a copy of the collection.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Token records ownership of a single token id.
type Token struct {
	Collection common.Address `json:"collection"`
	ID         uint64         `json:"id"`
	Owner      common.Address `json:"owner"`
	// OwnerIndex is the position of the token in its owner's enumeration list.
	OwnerIndex uint64 `json:"ownerIndex"`
}

type registryConfig struct {
	Owner     common.Address
	Deployers []common.Address
}
