package stakerewards

import "errors"

var (
	ErrNilState              = errors.New("stakerewards: state not configured")
	ErrNotConfigured         = errors.New("stakerewards: collaborators not configured")
	ErrUnauthorized          = errors.New("stakerewards: unauthorized")
	ErrNotRewardDefiner      = errors.New("stakerewards: only call from reward definer")
	ErrAlreadyInitialized    = errors.New("stakerewards: already initialized")
	ErrZeroAddress           = errors.New("stakerewards: zero address")
	ErrInvalidRange          = errors.New("stakerewards: snapshot min should be lower than max")
	ErrInvalidVesting        = errors.New("stakerewards: vesting interval and slice count must be positive")
	ErrInvalidTier           = errors.New("stakerewards: tier min should be lower than max")
	ErrEmptyTiers            = errors.New("stakerewards: reward tiers are not filled")
	ErrTierIndexOutOfBounds  = errors.New("stakerewards: tier index out of boundaries")
	ErrRewardDataIncorrect   = errors.New("stakerewards: reward data is not correct")
	ErrInvalidPercentage     = errors.New("stakerewards: percentage should between 1-100")
	ErrRewardHasClaims       = errors.New("stakerewards: this rewardId has claimed reward. cant update")
	ErrRewardNotFound        = errors.New("stakerewards: reward does not exist")
	ErrConfigsIncomplete     = errors.New("stakerewards: reward configurations are not completed")
	ErrSliceOutOfBounds      = errors.New("stakerewards: vesting index out of boundaries")
	ErrSliceLocked           = errors.New("stakerewards: vesting date has not come")
	ErrAlreadyClaimed        = errors.New("stakerewards: reward already claimed")
	ErrNothingToClaim        = errors.New("stakerewards: no reward for this account")
	ErrPoolExhausted         = errors.New("stakerewards: reward pool exhausted")
	ErrInsufficientFunds     = errors.New("stakerewards: insufficient reward balance")
	ErrInvalidBoosterType    = errors.New("stakerewards: invalid booster type")
	ErrInvalidBoostPercent   = errors.New("stakerewards: boost percentage should between 1-100")
	ErrBoosterNotFound       = errors.New("stakerewards: booster does not exist")
	ErrMissingBoosterAddress = errors.New("stakerewards: holding booster must has contract address")
)
