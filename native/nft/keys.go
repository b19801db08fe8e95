package nft

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	configKey        = []byte("nft/config")
	deployedListKey  = []byte("nft/deployed")
	collectionPrefix = "nft/collection/%x"
)

func collectionKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf(collectionPrefix, addr.Bytes()))
}

func deployNonceKey(deployer common.Address) []byte {
	return []byte(fmt.Sprintf("nft/nonce/%x", deployer.Bytes()))
}

func tokenKey(collection common.Address, id uint64) []byte {
	return []byte(fmt.Sprintf("nft/token/%x/%d", collection.Bytes(), id))
}

func ownedListKey(collection, owner common.Address) []byte {
	return []byte(fmt.Sprintf("nft/owned/%x/%x", collection.Bytes(), owner.Bytes()))
}
