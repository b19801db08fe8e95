package popa

import "errors"

var (
	ErrNilState            = errors.New("popa: state not configured")
	ErrNotConfigured       = errors.New("popa: collaborators not configured")
	ErrUnauthorized        = errors.New("popa: caller is not the owner")
	ErrAlreadyInitialized  = errors.New("popa: already initialized")
	ErrZeroAddress         = errors.New("popa: zero address")
	ErrZeroMinter          = errors.New("popa: minter account can not be zero")
	ErrZeroFactory         = errors.New("popa: competition factory cant be zero address")
	ErrAlreadyDeployed     = errors.New("popa: period popa already deployed")
	ErrIndexOutOfBounds    = errors.New("popa: out of index")
	ErrInvalidPercentage   = errors.New("popa: allocation percentage should between 0-100")
	ErrInsufficientPayment = errors.New("popa: insufficient claim payment")
	ErrOverpayment         = errors.New("popa: overpayment. please reduce your payment amount")
	ErrUnknownPeriod       = errors.New("popa: unknown period id")
	ErrTransferFailed      = errors.New("popa: transfer failed")
	ErrAlreadyClaimed      = errors.New("popa: you already claimed this popa nft")
	ErrConditionsNotMet    = errors.New("popa: claim conditions not met")
	ErrNotMinter           = errors.New("popa: only call from minter")
	ErrNotClaimed          = errors.New("popa: not claimed by claimer")
	ErrAlreadyMinted       = errors.New("popa: already minted")
)
