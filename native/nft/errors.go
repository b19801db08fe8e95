package nft

import "errors"

var (
	ErrNilState            = errors.New("nft: state not configured")
	ErrUnauthorized        = errors.New("nft: unauthorized")
	ErrZeroAddress         = errors.New("nft: zero address")
	ErrCollectionNotFound  = errors.New("nft: collection not found")
	ErrTokenExists         = errors.New("nft: token already minted")
	ErrTokenNotFound       = errors.New("nft: invalid token id")
	ErrNotTokenOwner       = errors.New("nft: transfer from incorrect owner")
	ErrPaused              = errors.New("nft: paused")
	ErrNotPaused           = errors.New("nft: not paused")
	ErrIndexOutOfBounds    = errors.New("nft: index out of bounds")
	ErrEmptyBatch          = errors.New("nft: empty batch")
	ErrInvalidCollectionID = errors.New("nft: name and symbol required")
)
