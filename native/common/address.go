package common

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr ethcommon.Address) bool {
	return addr == (ethcommon.Address{})
}

// HexAddr renders addr in checksummed hex.
func HexAddr(addr ethcommon.Address) string {
	return addr.Hex()
}

// ModuleAddress derives the vault account owned by a native module.
func ModuleAddress(module string) ethcommon.Address {
	return ethcommon.BytesToAddress(ethcrypto.Keccak256([]byte("module/" + module))[12:])
}
