package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups error codes by how callers are expected to react.
type ErrorKind string

const (
	// KindValidation is reported to the caller and never retried.
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	// KindConflict is expected under concurrency; callers re-read state.
	KindConflict ErrorKind = "conflict"
	// KindTransient marks infrastructure failures that are safe to retry.
	KindTransient ErrorKind = "transient"
	KindFatal     ErrorKind = "fatal"
)

type ErrorCode string

const (
	CodeBattleNotFound      ErrorCode = "BATTLE_NOT_FOUND"
	CodeCardNotFound        ErrorCode = "CARD_NOT_FOUND"
	CodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	CodeCardNotOwned        ErrorCode = "CARD_NOT_OWNED"
	CodeInvalidCardType     ErrorCode = "INVALID_CARD_TYPE"
	CodeInvalidCard         ErrorCode = "INVALID_CARD"
	CodeInvalidBattleStatus ErrorCode = "INVALID_BATTLE_STATUS"
	CodeInvalidChallenge    ErrorCode = "INVALID_CHALLENGE"
	CodeNotAParticipant     ErrorCode = "NOT_A_PARTICIPANT"
	CodeCardAlreadySelected ErrorCode = "CARD_ALREADY_SELECTED"
	CodeCardAlreadyStaked   ErrorCode = "CARD_ALREADY_STAKED"
	CodeMissingSelection    ErrorCode = "MISSING_SELECTION"
	CodeStaleStatus         ErrorCode = "STALE_STATUS"
	CodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	CodeResolutionFailed    ErrorCode = "RESOLUTION_FAILED"
	CodeUnknownStatus       ErrorCode = "UNKNOWN_STATUS"
	CodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	CodeDisplayNameTaken    ErrorCode = "DISPLAY_NAME_TAKEN"
	CodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
)

// Error is a coded domain error. Two Errors match under errors.Is when their
// codes are equal, so sentinels below can be compared against wrapped copies.
type Error struct {
	Code    ErrorCode
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func newError(code ErrorCode, kind ErrorKind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

var (
	ErrBattleNotFound      = newError(CodeBattleNotFound, KindNotFound, "battle not found")
	ErrCardNotFound        = newError(CodeCardNotFound, KindNotFound, "card not found")
	ErrUserNotFound        = newError(CodeUserNotFound, KindNotFound, "user not found")
	ErrCardNotOwned        = newError(CodeCardNotOwned, KindValidation, "card is not owned by player")
	ErrInvalidCardType     = newError(CodeInvalidCardType, KindValidation, "card type cannot battle")
	ErrInvalidCard         = newError(CodeInvalidCard, KindValidation, "invalid card")
	ErrInvalidBattleStatus = newError(CodeInvalidBattleStatus, KindValidation, "battle is not in a valid status for this operation")
	ErrInvalidChallenge    = newError(CodeInvalidChallenge, KindValidation, "invalid challenge")
	ErrNotAParticipant     = newError(CodeNotAParticipant, KindValidation, "player is not a participant in this battle")
	ErrCardAlreadySelected = newError(CodeCardAlreadySelected, KindConflict, "a card has already been selected for this battle")
	ErrCardAlreadyStaked   = newError(CodeCardAlreadyStaked, KindValidation, "card is already staked in another battle")
	ErrMissingSelection    = newError(CodeMissingSelection, KindFatal, "battle is missing a participant's selection")
	ErrStaleStatus         = newError(CodeStaleStatus, KindConflict, "battle status changed concurrently")
	ErrStoreUnavailable    = newError(CodeStoreUnavailable, KindTransient, "store unavailable")
	ErrResolutionFailed    = newError(CodeResolutionFailed, KindTransient, "battle resolution failed")
	ErrUnknownStatus       = newError(CodeUnknownStatus, KindFatal, "unknown battle status")
	ErrUnauthorized        = newError(CodeUnauthorized, KindValidation, "unauthorized")
	ErrDisplayNameTaken    = newError(CodeDisplayNameTaken, KindConflict, "display name already exists")
	ErrInvalidRequest      = newError(CodeInvalidRequest, KindValidation, "invalid request")
)

// KindOf reports the kind of a domain error. Errors that carry no code are fatal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFatal
}

// CodeOf returns the error code, or an empty code for uncoded errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// UserMessage is the text shown to a player for err. Conflicts on selection
// tell the client to re-read instead of reporting a failure.
func UserMessage(err error) string {
	var de *Error
	if !errors.As(err, &de) {
		return "Internal error"
	}
	switch de.Code {
	case CodeCardAlreadySelected:
		return "Card already selected, refreshing..."
	case CodeStoreUnavailable, CodeResolutionFailed:
		return "Temporarily unavailable, please retry"
	}
	return de.Message
}
