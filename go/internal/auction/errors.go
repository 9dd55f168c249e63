package auction

import (
	"errors"
	"fmt"
)

// Code identifies why an engine operation was refused. Codes are stable and
// machine-readable; the accompanying message carries the exact numeric
// threshold where one applies.
type Code string

const (
	CodeNoActiveLot       Code = "NO_ACTIVE_LOT"
	CodeTeamFull          Code = "TEAM_FULL"
	CodeNationalityCap    Code = "NATIONALITY_CAP"
	CodeBelowMinIncrement Code = "BELOW_MIN_INCREMENT"
	CodeExceedsBudget     Code = "EXCEEDS_BUDGET"
	CodeStaleLot          Code = "STALE_LOT"
	CodeNotOpen           Code = "NOT_OPEN"
	CodeNotPaused         Code = "NOT_PAUSED"
	CodeNoActiveTimer     Code = "NO_ACTIVE_TIMER"
	CodeLotNotFound       Code = "LOT_NOT_FOUND"
	CodeLotAlreadySold    Code = "LOT_ALREADY_SOLD"
	CodeLotInProgress     Code = "LOT_IN_PROGRESS"
)

// Error is a refusal the caller can act on: bad bid amount, wrong cycle
// state, cap violation. Engine state is never changed when one is returned.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an engine error with a formatted human message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is an engine error carrying the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// ErrNotFound is returned by stores when a game, lot or participant does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrInvariant marks a programming-invariant violation, e.g. an open cycle
// with no recorded lot. These are logged and surfaced, never swallowed.
var ErrInvariant = errors.New("auction invariant violated")
