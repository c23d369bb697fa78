package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveSession      = errors.New("no active session")
	ErrNotOwner             = errors.New("caller is not the session owner")
	ErrInvalidPositionState = errors.New("action incompatible with position state")
	ErrInvalidNumericInput  = errors.New("invalid numeric input")
	ErrPlayerLiquidated     = errors.New("player is liquidated")
)

const noActiveSessionMessage = "There is currently no active simulation. Use /sim to start a new simulation."

// Error carries the reply shown to the player alongside one of the sentinel
// kinds above, so callers can branch with errors.Is and still answer the user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// An ended session stays readable but accepts no more changes.
func errSessionEnded() *Error {
	return newError(ErrNoActiveSession, "The simulation is over. Use /sim to start a new simulation.")
}

func notOwner(what string) *Error {
	return newError(ErrNotOwner, "Only the user who started the simulation can %s.", what)
}

// UserMessage extracts the player-facing text from err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong. Please try again."
}
