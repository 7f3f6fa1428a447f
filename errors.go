package leaderboard

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure per spec.md §7. NotFound is deliberately
// absent: queried-member and cycle-key absence is surfaced as a zero value
// plus ok=false in every read path, never as an error.
type ErrorCode int

const (
	// CodeUnknown is returned by CodeOf for an error with no recognized code.
	CodeUnknown ErrorCode = iota
	// CodeConnectionFailure is a transport-layer failure from the pool or socket.
	CodeConnectionFailure
	// CodeProtocolError is an unexpected script reply shape or a non-numeric
	// value in a numeric pipeline position.
	CodeProtocolError
	// CodeUnsupportedType marks a declared NumericType outside {int32,int64,float64}.
	CodeUnsupportedType
	// CodeOverflow marks a decoded int32 outside its representable range.
	CodeOverflow
	// CodeInvalidCycle marks a PeriodicOptions.Cycle that names neither a
	// known tag nor a user function.
	CodeInvalidCycle
	// CodeInterrupted marks a retry backoff interrupted by context cancellation.
	CodeInterrupted
)

// leaderboardError pairs a sentinel error with its classification and an
// optional wrapped cause, following the teacher's fmt.Errorf("%w: %v", ...) idiom.
type leaderboardError struct {
	code ErrorCode
	msg  string
	err  error
}

func (e *leaderboardError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *leaderboardError) Unwrap() error { return e.err }

func newErr(code ErrorCode, msg string) error {
	return &leaderboardError{code: code, msg: msg}
}

// wrapErr wraps cause under one of the taxonomy's sentinels. If cause is
// already a leaderboardError (typically a sentinel passed in as its own
// cause), it is nested rather than returned bare: the new layer keeps
// cause's code, so CodeOf and errors.Is(_, cause) still classify the error
// the way the original sentinel intended, but msg becomes the outer,
// reported message, so the caller's more specific description isn't
// silently discarded.
func wrapErr(code ErrorCode, msg string, cause error) error {
	var existing *leaderboardError
	if errors.As(cause, &existing) {
		return &leaderboardError{code: existing.code, msg: msg, err: existing}
	}
	return &leaderboardError{code: code, msg: msg, err: cause}
}

// Sentinel errors for errors.Is comparisons.
var (
	// ErrConnectionFailure is the sentinel matched by errors.Is for any
	// transport-layer failure. Retried (only this) inside Update.
	ErrConnectionFailure = newErr(CodeConnectionFailure, "leaderboard: connection failure")

	// ErrProtocolError marks a script-reply shape mismatch or a non-numeric
	// pipeline result in a numeric slot. Never retried.
	ErrProtocolError = newErr(CodeProtocolError, "leaderboard: protocol error")

	// ErrUnsupportedType marks a NumericType outside {int32,int64,float64}.
	ErrUnsupportedType = newErr(CodeUnsupportedType, "leaderboard: unsupported numeric type")

	// ErrOverflow marks a decoded int32 outside [math.MinInt32, math.MaxInt32].
	ErrOverflow = newErr(CodeOverflow, "leaderboard: int32 overflow")

	// ErrInvalidCycle marks a CycleSpec that resolves to neither a known tag
	// nor a user function.
	ErrInvalidCycle = newErr(CodeInvalidCycle, "leaderboard: invalid cycle")

	// ErrInterrupted marks a retry backoff interrupted by context cancellation.
	ErrInterrupted = newErr(CodeInterrupted, "leaderboard: retry interrupted")
)

// CodeOf classifies err per the taxonomy in spec.md §7. It returns
// CodeUnknown for any error not produced by this package (including a bare
// context.Canceled/DeadlineExceeded, or a raw go-redis error that was never
// wrapped — callers that need to distinguish those should check err directly).
func CodeOf(err error) ErrorCode {
	var e *leaderboardError
	if errors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}

// IsConnectionFailure reports whether err (or something it wraps) is a
// ConnectionFailure — the only class retried by Leaderboard.Update.
func IsConnectionFailure(err error) bool {
	return errors.Is(err, ErrConnectionFailure) || CodeOf(err) == CodeConnectionFailure
}
