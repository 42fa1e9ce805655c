package service

import (
	"errors"
	"fmt"

	"wagerbook/models"
)

// Sentinel errors for expected business outcomes. These are returned, never
// panicked, and callers are expected to match them with errors.Is/errors.As.
var (
	// ErrWagerNotFound indicates the wager id does not exist
	ErrWagerNotFound = errors.New("wager not found")

	// ErrWagerNotAvailable indicates the caller lost an atomic transition
	// race: the wager moved out of the expected status between read and
	// write. Callers should refresh state rather than retry blindly.
	ErrWagerNotAvailable = errors.New("wager is no longer available")

	// ErrEscrowNotFound indicates the escrow id does not exist
	ErrEscrowNotFound = errors.New("escrow not found")

	// ErrEscrowConflict indicates the escrow is already in a terminal state
	// different from the one requested. This is a consistency fault, not a
	// replay, and must be surfaced.
	ErrEscrowConflict = errors.New("escrow already resolved to a different terminal state")
)

// ValidationError reports malformed input rejected before any side effect
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientFundsError reports a failed affordability check with the exact
// shortfall so callers can render it directly
type InsufficientFundsError struct {
	PartyID   string
	Required  int64
	Shortfall int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("party %s has insufficient funds: needs %d more (required %d)", e.PartyID, e.Shortfall, e.Required)
}

// UnbalancedStakesError reports stakes outside tolerance together with the
// cash top-up that would restore balance
type UnbalancedStakesError struct {
	RequiredBy  models.WagerSide
	Amount      int64
	Suggestions []string
}

func (e *UnbalancedStakesError) Error() string {
	return fmt.Sprintf("stakes are not balanced: %s side must add %d in cash", e.RequiredBy, e.Amount)
}

// InvalidTransitionError reports a state machine violation naming both the
// current and the requested status
type InvalidTransitionError struct {
	WagerID   int64
	Current   models.WagerStatus
	Requested models.WagerStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("wager %d cannot transition from %s to %s", e.WagerID, e.Current, e.Requested)
}

// IsBusinessError reports whether err is an expected business failure rather
// than a collaborator fault. The HTTP layer uses this to pick the response
// envelope.
func IsBusinessError(err error) bool {
	var (
		validation   *ValidationError
		insufficient *InsufficientFundsError
		unbalanced   *UnbalancedStakesError
		transition   *InvalidTransitionError
	)
	return errors.Is(err, ErrWagerNotFound) ||
		errors.Is(err, ErrWagerNotAvailable) ||
		errors.Is(err, ErrEscrowNotFound) ||
		errors.Is(err, ErrEscrowConflict) ||
		errors.As(err, &validation) ||
		errors.As(err, &insufficient) ||
		errors.As(err, &unbalanced) ||
		errors.As(err, &transition)
}
