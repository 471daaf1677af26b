package app

import (
	"errors"
	"fmt"

	"unostake/internal/domain"
	"unostake/internal/token"
)

// Kind classifies an error by who is at fault and whether retrying can help.
type Kind string

const (
	// KindValidation marks malformed input. Never retried.
	KindValidation Kind = "validation"
	// KindStateConflict marks a request that does not fit the match's current state.
	KindStateConflict Kind = "state_conflict"
	// KindLedger marks a failed or reverted ledger call.
	KindLedger Kind = "ledger"
	// KindResourceExhausted marks an empty deck or a deal without enough cards.
	KindResourceExhausted Kind = "resource_exhausted"
	// KindInternal is anything unclassified.
	KindInternal Kind = "internal"
)

// Code is a stable machine-readable error identifier.
type Code string

// Error is a coded application error. Two Errors match under errors.Is when
// their codes are equal, so sentinel values can carry a request-specific message.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// withf returns a copy of e with a formatted message.
func (e *Error) withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrInvalidAddress     = &Error{Kind: KindValidation, Code: "INVALID_ADDRESS", Message: "invalid player address"}
	ErrInvalidStake       = &Error{Kind: KindValidation, Code: "INVALID_STAKE", Message: "stake must be a positive amount"}
	ErrInvalidAmount      = &Error{Kind: KindValidation, Code: "INVALID_AMOUNT", Message: "amount must be a positive amount"}
	ErrInvalidMatchID     = &Error{Kind: KindValidation, Code: "INVALID_MATCH_ID", Message: "invalid match id"}
	ErrInvalidColor       = &Error{Kind: KindValidation, Code: "INVALID_COLOR", Message: "invalid color"}
	ErrDuplicateMatch     = &Error{Kind: KindStateConflict, Code: "DUPLICATE_MATCH", Message: "match already exists"}
	ErrUnknownMatch       = &Error{Kind: KindStateConflict, Code: "UNKNOWN_MATCH", Message: "match not found"}
	ErrUnauthorizedPlayer = &Error{Kind: KindStateConflict, Code: "UNAUTHORIZED_PLAYER", Message: "player is not part of the match"}
	ErrStakesPending      = &Error{Kind: KindStateConflict, Code: "STAKES_PENDING", Message: "both stakes must be confirmed before play"}
	ErrGameNotStarted     = &Error{Kind: KindStateConflict, Code: "GAME_NOT_STARTED", Message: "no move has been played yet"}
	ErrMatchClosed        = &Error{Kind: KindStateConflict, Code: "MATCH_CLOSED", Message: "match is closed"}
	ErrWinnerMismatch     = &Error{Kind: KindStateConflict, Code: "WINNER_MISMATCH", Message: "reported winner differs from the game result"}
	ErrLedgerCall         = &Error{Kind: KindLedger, Code: "LEDGER_CALL_FAILED", Message: "ledger call failed"}
	ErrLedgerReverted     = &Error{Kind: KindLedger, Code: "LEDGER_REVERTED", Message: "ledger transaction reverted"}
)

func ledgerCallError(op string, cause error) *Error {
	e := ErrLedgerCall.withf("ledger %s failed", op)
	e.Cause = cause
	return e
}

func ledgerRevertError(op, reason string) *Error {
	if reason == "" {
		reason = "no reason given"
	}
	return ErrLedgerReverted.withf("ledger %s reverted: %s", op, reason)
}

func engineError(message string, err error) *Error {
	return &Error{Kind: KindOf(err), Code: codeOf(err), Message: message, Cause: err}
}

func codeOf(err error) Code {
	switch {
	case errors.Is(err, domain.ErrGameOver):
		return "GAME_OVER"
	case errors.Is(err, domain.ErrIllegalMove):
		return "ILLEGAL_MOVE"
	case errors.Is(err, domain.ErrEmptyDeck):
		return "EMPTY_DECK"
	case errors.Is(err, domain.ErrInsufficientCards):
		return "INSUFFICIENT_CARDS"
	}
	return "INTERNAL"
}

// KindOf classifies err, including the domain and token sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" && e.Kind != KindInternal {
		return e.Kind
	}
	switch {
	case errors.Is(err, domain.ErrIllegalMove), errors.Is(err, domain.ErrGameOver):
		return KindStateConflict
	case errors.Is(err, domain.ErrEmptyDeck), errors.Is(err, domain.ErrInsufficientCards):
		return KindResourceExhausted
	case errors.Is(err, token.ErrInvalidAmount), errors.Is(err, token.ErrInvalidRate):
		return KindValidation
	}
	return KindInternal
}

// Failure is the structured form of an error handed to transports.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Describe converts err into a Failure.
func Describe(err error) Failure {
	var e *Error
	if errors.As(err, &e) {
		return Failure{Kind: KindOf(err), Code: e.Code, Message: err.Error()}
	}
	return Failure{Kind: KindOf(err), Code: codeOf(err), Message: err.Error()}
}
