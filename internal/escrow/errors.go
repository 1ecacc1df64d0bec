package escrow

import (
	"errors"
	"fmt"
)

// customErrorOffset is where program error codes start, as for on-chain custom errors.
const customErrorOffset = 6000

// ProgramError is a rejected state transition. It is never retriable.
type ProgramError struct {
	Code uint32
	Name string
	Msg  string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

func newProgramError(index uint32, name, msg string) *ProgramError {
	return &ProgramError{Code: customErrorOffset + index, Name: name, Msg: msg}
}

// State machine errors
var (
	ErrInvalidStatus          = newProgramError(0, "InvalidStatus", "invalid race status for this operation")
	ErrAlreadyJoined          = newProgramError(1, "AlreadyJoined", "second participant is already set")
	ErrNotAParticipant        = newProgramError(2, "NotAParticipant", "caller is not a participant in this race")
	ErrResultAlreadySubmitted = newProgramError(3, "ResultAlreadySubmitted", "result already submitted for this participant")
	ErrResultsNotComplete     = newProgramError(4, "ResultsNotComplete", "both results must be submitted before settling")
	ErrNotWinner              = newProgramError(5, "NotWinner", "only the winner can claim the prize")
	ErrSelfJoin               = newProgramError(6, "SelfJoin", "creator cannot join their own race")
)

// Argument errors
var (
	ErrInvalidEntryFee = errors.New("entry fee must be greater than zero")
	ErrRaceIDTooLong   = fmt.Errorf("race id exceeds %d bytes", MaxRaceIDLength)
	ErrOverflow        = errors.New("arithmetic overflow")
)

// Errors returned by Ledger implementations.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountSize       = errors.New("data size does not match allocated account space")
)

// Record validation errors
var (
	ErrAccountNotOwned       = errors.New("account is not owned by the race program")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrLayout                = errors.New("malformed race record")
)

// ErrorCode returns a stable label for err, suitable for metrics and logs.
func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Name
	}
	switch {
	case errors.Is(err, ErrInvalidEntryFee):
		return "InvalidEntryFee"
	case errors.Is(err, ErrRaceIDTooLong):
		return "RaceIDTooLong"
	case errors.Is(err, ErrOverflow):
		return "Overflow"
	case errors.Is(err, ErrAccountNotFound):
		return "AccountNotFound"
	case errors.Is(err, ErrAccountExists):
		return "AccountExists"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrAccountSize):
		return "AccountSize"
	case errors.Is(err, ErrAccountNotOwned):
		return "AccountNotOwned"
	case errors.Is(err, ErrDiscriminatorMismatch):
		return "DiscriminatorMismatch"
	case errors.Is(err, ErrLayout):
		return "Layout"
	default:
		return "internal"
	}
}
