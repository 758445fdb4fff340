package game

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotAPlayer        Code = "NOT_A_PLAYER"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeNameTaken         Code = "NAME_TAKEN"
	CodeAlreadyInBattle   Code = "ALREADY_IN_BATTLE"
	CodeNotFound          Code = "NOT_FOUND"
	CodeNotPending        Code = "NOT_PENDING"
	CodeNotStarted        Code = "NOT_STARTED"
	CodeAlreadyEnded      Code = "ALREADY_ENDED"
	CodeSelfJoin          Code = "SELF_JOIN"
	CodeNotAParticipant   Code = "NOT_A_PARTICIPANT"
	CodeMoveAlreadySet    Code = "MOVE_ALREADY_SET"
	CodeInvalidChoice     Code = "INVALID_CHOICE"
	CodeInsufficientMana  Code = "INSUFFICIENT_MANA"
	CodeNoToken           Code = "NO_TOKEN"
	CodeInvalidName       Code = "INVALID_NAME"
	CodeInvalidActor      Code = "INVALID_ACTOR"
	CodeInvalidSnapshot   Code = "INVALID_SNAPSHOT"
	CodeMintFailed        Code = "MINT_FAILED"
)

// Error is a recoverable, user-facing engine error. The operation that returned
// it left all state unchanged.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by code so errors.Is works against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotAPlayer        = &Error{Code: CodeNotAPlayer, Message: "not a registered player"}
	ErrAlreadyRegistered = &Error{Code: CodeAlreadyRegistered, Message: "player already registered"}
	ErrNameTaken         = &Error{Code: CodeNameTaken, Message: "battle name already taken"}
	ErrAlreadyInBattle   = &Error{Code: CodeAlreadyInBattle, Message: "player already in a battle"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrNotPending        = &Error{Code: CodeNotPending, Message: "battle is not pending"}
	ErrNotStarted        = &Error{Code: CodeNotStarted, Message: "battle is not started"}
	ErrAlreadyEnded      = &Error{Code: CodeAlreadyEnded, Message: "battle already ended"}
	ErrSelfJoin          = &Error{Code: CodeSelfJoin, Message: "cannot join own battle"}
	ErrNotAParticipant   = &Error{Code: CodeNotAParticipant, Message: "not a participant of this battle"}
	ErrMoveAlreadySet    = &Error{Code: CodeMoveAlreadySet, Message: "move already submitted this round"}
	ErrInvalidChoice     = &Error{Code: CodeInvalidChoice, Message: "invalid move choice"}
	ErrInsufficientMana  = &Error{Code: CodeInsufficientMana, Message: "insufficient mana"}
	ErrNoToken           = &Error{Code: CodeNoToken, Message: "player has no token"}
	ErrInvalidName       = &Error{Code: CodeInvalidName, Message: "invalid name"}
	ErrInvalidActor      = &Error{Code: CodeInvalidActor, Message: "invalid actor address"}
	ErrInvalidSnapshot   = &Error{Code: CodeInvalidSnapshot, Message: "invalid snapshot"}
	ErrMintFailed        = &Error{Code: CodeMintFailed, Message: "mint token"}
)

// errorf derives a detailed error from a sentinel, keeping its code.
func errorf(base *Error, format string, args ...any) *Error {
	return &Error{Code: base.Code, Message: base.Message + ": " + fmt.Sprintf(format, args...), Cause: base.Cause}
}

// CodeOf extracts the engine code from err, or "" if err is not an engine error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// assertf guards internal invariants. A failure is a programming error, never a
// user-facing condition.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("game: invariant violated: "+format, args...))
	}
}

func check(err error) {
	if err != nil {
		panic(fmt.Sprintf("game: invariant violated: %v", err))
	}
}
