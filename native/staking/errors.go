package staking

import "errors"

var (
	ErrNilState           = errors.New("staking: state not configured")
	ErrUnauthorized       = errors.New("staking: unauthorized")
	ErrNotFactory         = errors.New("staking: only call from factory")
	ErrNotModerator       = errors.New("staking: only call from lock moderator")
	ErrAlreadyInitialized = errors.New("staking: already initialized")
	ErrZeroAddress        = errors.New("staking: params cant be zero address")
	ErrInvalidAmount      = errors.New("staking: amount must be positive")
	ErrInsufficientStake  = errors.New("staking: insufficient stake balance")
	ErrAccountLocked      = errors.New("staking: account is locked")
	ErrNoPeriod           = errors.New("staking: there is no period exist")
	ErrNoActivePeriod     = errors.New("staking: no active period exist")
	ErrPeriodNotFound     = errors.New("staking: period does not exist")
	ErrInvalidRange       = errors.New("staking: min should be higher than max")
	ErrSnapshotOutOfRange = errors.New("staking: snapshot id out of range")
	ErrNotInBuyWindow     = errors.New("staking: period not in ticket buy range")
	ErrAlreadyCalculated  = errors.New("staking: already calculated")
	ErrFeeOutOfLimits     = errors.New("staking: fee percentage is not within limits")
	ErrPercentageLimits   = errors.New("staking: percentage should be in 0-25 range")
)
