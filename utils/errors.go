package utils

import "errors"

// Sentinel errors shared across the economy. Callers classify failures
// with errors.Is; wrapped messages carry the human-readable detail.
var (
	// ErrInsufficientFunds is returned when a debit would take a
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTarget is returned when a transfer names the sender
	// itself or a disallowed account.
	ErrInvalidTarget = errors.New("invalid transfer target")

	// ErrNotSessionOwner is returned when someone interacts with a game
	// they did not start.
	ErrNotSessionOwner = errors.New("not the session owner")

	// ErrSessionNotActive is returned for actions on a finished session
	// or on a reel that is not currently spinning.
	ErrSessionNotActive = errors.New("session not active")

	// ErrSessionTimedOut is returned for actions on a session that was
	// forfeited by the idle timeout.
	ErrSessionTimedOut = errors.New("session timed out")

	// ErrValidation flags caller input that fails a precondition.
	ErrValidation = errors.New("validation failed")

	// ErrArithmeticDomain flags probability inputs outside the valid
	// domain (negative sizes, draws larger than the deck).
	ErrArithmeticDomain = errors.New("arithmetic domain error")

	// ErrPersistence wraps database failures.
	ErrPersistence = errors.New("persistence failure")
)
