package game

import "errors"

// Rejections returned to the caller of a bet, cancel, cash-out or intent.
var (
	ErrInvalidStake       = errors.New("invalid stake")
	ErrInvalidAutoCashout = errors.New("auto cash-out must be at least 1.00x")
	ErrMissingWagerID     = errors.New("wager id is required")
	ErrDuplicateWager     = errors.New("wager id already used this round")
	ErrWrongPhase         = errors.New("not allowed in the current phase")
	ErrWagerNotFound      = errors.New("wager not found")
	ErrNotOwner           = errors.New("wager belongs to another player")
	ErrNotActive          = errors.New("wager is already settled")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrQueueFull          = errors.New("engine queue full")
	ErrTimeout            = errors.New("engine did not answer in time")
	ErrStopped            = errors.New("engine stopped")
)

// errAlreadySettled marks an internal double settlement. It never reaches a bettor.
var errAlreadySettled = errors.New("wager settled twice")
