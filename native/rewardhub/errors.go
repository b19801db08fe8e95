package rewardhub

import "errors"

var (
	ErrNilState           = errors.New("rewardhub: state not configured")
	ErrUnauthorized       = errors.New("rewardhub: unauthorized")
	ErrNotRewardDefiner   = errors.New("rewardhub: only call from reward definer")
	ErrAlreadyInitialized = errors.New("rewardhub: already initialized")
	ErrZeroAddress        = errors.New("rewardhub: zero address")
	ErrInvalidRewardType  = errors.New("rewardhub: invalid reward type")
	ErrMissingContract    = errors.New("rewardhub: token or NFT reward must has contract address")
	ErrInvalidAmount      = errors.New("rewardhub: reward amount must be positive")
	ErrClaimedReward      = errors.New("rewardhub: cant update claimed reward")
	ErrRewardNotFound     = errors.New("rewardhub: reward does not exist")
	ErrNotTicketOwner     = errors.New("rewardhub: you are not owner of this ticket")
	ErrAlreadyClaimed     = errors.New("rewardhub: reward already claimed")
	ErrIndexOutOfBounds   = errors.New("rewardhub: reward index out of boundaries")
	ErrRemoveClaimed      = errors.New("rewardhub: can not remove claimed reward")
	ErrEmptyRewards       = errors.New("rewardhub: rewards is not filled")
	ErrLengthMismatch     = errors.New("rewardhub: rewards length does not match")
)
