package assets

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

func nativeBalanceKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("assets/native/%x", addr.Bytes()))
}

func tokenKey(token common.Address) []byte {
	return []byte(fmt.Sprintf("assets/token/%x", token.Bytes()))
}

func tokenBalanceKey(token, owner common.Address) []byte {
	return []byte(fmt.Sprintf("assets/balance/%x/%x", token.Bytes(), owner.Bytes()))
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf("assets/allowance/%x/%x/%x", token.Bytes(), owner.Bytes(), spender.Bytes()))
}
