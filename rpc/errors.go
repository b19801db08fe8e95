package rpc

import (
	"context"
	"errors"
	"net/http"

	"zizyhub/core"
	"zizyhub/native/assets"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/competition"
	"zizyhub/native/nft"
	"zizyhub/native/popa"
	"zizyhub/native/rewardhub"
	"zizyhub/native/stakerewards"
	"zizyhub/native/staking"
	"zizyhub/native/treasury"
)

// paramError marks malformed request parameters.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func invalidParams(msg string) error { return &paramError{msg: msg} }

var authorizationErrors = []error{
	core.ErrUnauthorized,
	staking.ErrUnauthorized, staking.ErrNotFactory, staking.ErrNotModerator,
	competition.ErrUnauthorized, competition.ErrNotMinter,
	rewardhub.ErrUnauthorized, rewardhub.ErrNotRewardDefiner, rewardhub.ErrNotTicketOwner,
	stakerewards.ErrUnauthorized, stakerewards.ErrNotRewardDefiner,
	popa.ErrUnauthorized, popa.ErrNotMinter,
	nft.ErrUnauthorized, nft.ErrNotTokenOwner,
	treasury.ErrUnauthorized,
}

var resourceErrors = []error{
	assets.ErrInsufficientBalance, assets.ErrInsufficientAllowance, assets.ErrTransferRejected,
	staking.ErrInsufficientStake,
	stakerewards.ErrInsufficientFunds, stakerewards.ErrPoolExhausted,
	treasury.ErrInsufficientNative, treasury.ErrTransferFailed, treasury.ErrNotTokenOwner,
	popa.ErrTransferFailed, popa.ErrInsufficientPayment, popa.ErrOverpayment,
}

var stateErrors = []error{
	nativecommon.ErrReentrantCall,
	staking.ErrAlreadyInitialized, staking.ErrAccountLocked, staking.ErrNoPeriod, staking.ErrNoActivePeriod,
	staking.ErrPeriodNotFound, staking.ErrNotInBuyWindow, staking.ErrAlreadyCalculated,
	competition.ErrAlreadyInitialized, competition.ErrPeriodExists, competition.ErrNoPeriod,
	competition.ErrPeriodNotFound, competition.ErrPeriodAlreadyActive, competition.ErrPeriodOver,
	competition.ErrCompetitionExists, competition.ErrCompetitionNotFound, competition.ErrNotInBuyStage,
	competition.ErrMaxAllocationExceeded, competition.ErrMaximumTicketsMinted,
	rewardhub.ErrAlreadyInitialized, rewardhub.ErrClaimedReward, rewardhub.ErrRewardNotFound,
	rewardhub.ErrAlreadyClaimed, rewardhub.ErrRemoveClaimed,
	stakerewards.ErrAlreadyInitialized, stakerewards.ErrRewardHasClaims, stakerewards.ErrRewardNotFound,
	stakerewards.ErrConfigsIncomplete, stakerewards.ErrSliceLocked, stakerewards.ErrAlreadyClaimed,
	stakerewards.ErrNothingToClaim, stakerewards.ErrBoosterNotFound,
	popa.ErrAlreadyInitialized, popa.ErrAlreadyDeployed, popa.ErrUnknownPeriod, popa.ErrAlreadyClaimed,
	popa.ErrConditionsNotMet, popa.ErrNotClaimed, popa.ErrAlreadyMinted,
	nft.ErrCollectionNotFound, nft.ErrTokenExists, nft.ErrTokenNotFound, nft.ErrPaused, nft.ErrNotPaused,
	assets.ErrTokenExists, assets.ErrUnknownToken,
	competition.ErrNotConfigured, stakerewards.ErrNotConfigured, popa.ErrNotConfigured,
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify maps an operation error to an HTTP status, a JSON-RPC code and a
// client-facing message.
func classify(err error) (int, int, string) {
	var perr *paramError
	switch {
	case errors.As(err, &perr):
		return http.StatusBadRequest, codeInvalidParams, perr.msg
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, codeServerError, "request cancelled"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeUnavailable, "module paused"
	case errors.Is(err, core.ErrNotInitialized):
		return http.StatusServiceUnavailable, codeUnavailable, "genesis not applied"
	case errors.Is(err, core.ErrQuotaExceeded):
		return http.StatusTooManyRequests, codeRateLimited, "quota exceeded"
	case matchesAny(err, authorizationErrors):
		return http.StatusForbidden, codeForbidden, "unauthorized"
	case matchesAny(err, resourceErrors):
		return http.StatusUnprocessableEntity, codeResource, "insufficient resources"
	case matchesAny(err, stateErrors):
		return http.StatusConflict, codeStateConflict, "state conflict"
	case isModuleError(err):
		return http.StatusBadRequest, codeInvalidParams, "validation failed"
	default:
		return http.StatusInternalServerError, codeServerError, "internal error"
	}
}

var validationErrors = []error{
	core.ErrUnknownModule,
	nativecommon.ErrAmountOverflow, nativecommon.ErrNegativeAmount, nativecommon.ErrUnknownRewardType,
	staking.ErrZeroAddress, staking.ErrInvalidAmount, staking.ErrInvalidRange, staking.ErrSnapshotOutOfRange,
	staking.ErrFeeOutOfLimits, staking.ErrPercentageLimits,
	competition.ErrInvalidPeriodID, competition.ErrInvalidPeriodTimes, competition.ErrInvalidRange,
	competition.ErrRangeOutsidePeriod, competition.ErrZeroPaymentToken, competition.ErrZeroTicketPrice,
	competition.ErrEmptyTiers, competition.ErrTierLengthMismatch, competition.ErrInvalidTier,
	competition.ErrInvalidTicketCount, competition.ErrEmptyTicketIDs, competition.ErrIndexOutOfBounds,
	competition.ErrZeroPaymentReceiver, competition.ErrZeroMinter, competition.ErrZeroAddress,
	rewardhub.ErrZeroAddress, rewardhub.ErrInvalidRewardType, rewardhub.ErrMissingContract,
	rewardhub.ErrInvalidAmount, rewardhub.ErrIndexOutOfBounds, rewardhub.ErrEmptyRewards,
	rewardhub.ErrLengthMismatch,
	stakerewards.ErrZeroAddress, stakerewards.ErrInvalidRange, stakerewards.ErrInvalidVesting,
	stakerewards.ErrInvalidTier, stakerewards.ErrEmptyTiers, stakerewards.ErrTierIndexOutOfBounds,
	stakerewards.ErrRewardDataIncorrect, stakerewards.ErrInvalidPercentage, stakerewards.ErrSliceOutOfBounds,
	stakerewards.ErrInvalidBoosterType, stakerewards.ErrInvalidBoostPercent, stakerewards.ErrMissingBoosterAddress,
	popa.ErrZeroAddress, popa.ErrZeroMinter, popa.ErrZeroFactory, popa.ErrIndexOutOfBounds,
	popa.ErrInvalidPercentage,
	nft.ErrZeroAddress, nft.ErrIndexOutOfBounds, nft.ErrEmptyBatch, nft.ErrInvalidCollectionID,
	assets.ErrInvalidAmount, assets.ErrZeroAddress,
	treasury.ErrInvalidAmount, treasury.ErrZeroAddress,
}

func isModuleError(err error) bool { return matchesAny(err, validationErrors) }
