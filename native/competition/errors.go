package competition

import "errors"

var (
	ErrNilState              = errors.New("competition: state not configured")
	ErrNotConfigured         = errors.New("competition: collaborators not configured")
	ErrUnauthorized          = errors.New("competition: unauthorized")
	ErrNotMinter             = errors.New("competition: only call from minter")
	ErrAlreadyInitialized    = errors.New("competition: already initialized")
	ErrInvalidPeriodID       = errors.New("competition: new period id should be higher than zero")
	ErrPeriodExists          = errors.New("competition: period id already exist")
	ErrNoPeriod              = errors.New("competition: there is no period exist")
	ErrPeriodNotFound        = errors.New("competition: period does not exist")
	ErrPeriodAlreadyActive   = errors.New("competition: already active")
	ErrPeriodOver            = errors.New("competition: this period is over")
	ErrInvalidPeriodTimes    = errors.New("competition: invalid period times")
	ErrCompetitionExists     = errors.New("competition: competition already exist")
	ErrCompetitionNotFound   = errors.New("competition: competition does not exist")
	ErrInvalidRange          = errors.New("competition: min should be higher")
	ErrRangeOutsidePeriod    = errors.New("competition: range should between period snapshot ranges")
	ErrZeroPaymentToken      = errors.New("competition: payment token can not be zero address")
	ErrZeroTicketPrice       = errors.New("competition: ticket price can not be zero")
	ErrEmptyTiers            = errors.New("competition: tiers should be higher than 1")
	ErrTierLengthMismatch    = errors.New("competition: should be same length")
	ErrInvalidTier           = errors.New("competition: tier min should not exceed max")
	ErrNotInBuyStage         = errors.New("competition: period is not in buy stage")
	ErrMaxAllocationExceeded = errors.New("competition: max allocation limit exceeded")
	ErrInvalidTicketCount    = errors.New("competition: requested ticket count should be higher than zero")
	ErrEmptyTicketIDs        = errors.New("competition: ticket ids length should be higher than zero")
	ErrMaximumTicketsMinted  = errors.New("competition: maximum ticket allocation bought")
	ErrIndexOutOfBounds      = errors.New("competition: out of boundaries")
	ErrZeroPaymentReceiver   = errors.New("competition: payment receiver can not be zero address")
	ErrZeroMinter            = errors.New("competition: minter address can not be zero")
	ErrZeroAddress           = errors.New("competition: zero address")
)
