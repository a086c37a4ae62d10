package services

import "errors"

var (
	// ErrInvalidTransition rejects a step the session's state does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrStepPending rejects a step while another is awaiting settlement.
	ErrStepPending = errors.New("step already pending")
	// ErrComputationAborted is returned when the compute service aborted the step.
	ErrComputationAborted = errors.New("computation aborted")
	// ErrConsistency is returned when a settlement payload does not fit the session.
	ErrConsistency = errors.New("settlement consistency violation")
	// ErrPayoutTransfer is returned when the payout could not be transferred.
	ErrPayoutTransfer = errors.New("payout transfer failed")
	// ErrDispatchFailed is returned when the compute service did not accept a
	// request. The step is released and may be requested again.
	ErrDispatchFailed = errors.New("dispatch failed")
	// ErrStaleSettlement rejects a settlement for a handle that is no longer pending.
	ErrStaleSettlement = errors.New("stale settlement")

	ErrGameNotFound      = errors.New("game not found")
	ErrNotOwner          = errors.New("game belongs to another player")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInvalidBet        = errors.New("invalid bet")

	errNoChange = errors.New("no change")
)
