package common

import (
	"errors"
	"fmt"
	"strings"
)

// RewardType tags which asset ledger a reward is paid from.
type RewardType uint8

const (
	RewardToken RewardType = iota
	RewardNFT
	RewardNative
)

var ErrUnknownRewardType = errors.New("unknown reward type")

func (t RewardType) String() string {
	switch t {
	case RewardToken:
		return "token"
	case RewardNFT:
		return "nft"
	case RewardNative:
		return "native"
	default:
		return fmt.Sprintf("RewardType(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the known tags.
func (t RewardType) Valid() bool { return t <= RewardNative }

// NeedsContract reports whether rewards of this type reference an asset contract.
func (t RewardType) NeedsContract() bool { return t == RewardToken || t == RewardNFT }

// ParseRewardType accepts the lower-case names used on the wire.
func ParseRewardType(s string) (RewardType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "token":
		return RewardToken, nil
	case "nft":
		return RewardNFT, nil
	case "native":
		return RewardNative, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRewardType, s)
}
