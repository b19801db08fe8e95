package assets

import "errors"

var (
	ErrNilState              = errors.New("assets: state not configured")
	ErrInvalidAmount         = errors.New("assets: amount must be positive")
	ErrZeroAddress           = errors.New("assets: zero address")
	ErrUnknownToken          = errors.New("assets: token not registered")
	ErrTokenExists           = errors.New("assets: token already registered")
	ErrInsufficientBalance   = errors.New("assets: insufficient balance")
	ErrInsufficientAllowance = errors.New("assets: insufficient allowance")
	ErrTransferRejected      = errors.New("assets: native transfer rejected by recipient")
	ErrNFTNotConfigured      = errors.New("assets: non-fungible ledger not configured")
)
